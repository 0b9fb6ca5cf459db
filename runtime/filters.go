package runtime

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var (
	titleCaser = cases.Title(language.Und)
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
	numPrinter = message.NewPrinter(language.English)
)

// DefaultFilters returns a new registry holding the built-in filters.
func DefaultFilters() *FilterRegistry {
	r := NewFilterRegistry()
	registerBuiltinFilters(r)
	return r
}

// registerBuiltinFilters registers all built-in filters
func registerBuiltinFilters(r *FilterRegistry) {
	add := func(name string, arity Arity, fn FilterFunc) {
		if err := r.Register(name, arity, fn); err != nil {
			panic(err)
		}
	}

	// String filters
	add("upper", Exactly(0), filterUpper)
	add("lower", Exactly(0), filterLower)
	add("title", Exactly(0), filterTitle)
	add("capitalize", Exactly(0), filterCapitalize)
	add("trim", Between(0, 1), filterTrim)
	add("replace", Exactly(1), filterReplace)
	add("split", Between(1, 2), filterSplit)
	add("format", AtLeast(0), filterFormat)
	add("escape", Between(0, 1), filterEscape)
	add("e", Between(0, 1), filterEscape)
	add("url_encode", Exactly(0), filterURLEncode)
	add("raw", Exactly(0), filterRaw)

	// Number filters
	add("abs", Exactly(0), filterAbs)
	add("round", Between(0, 2), filterRound)
	add("number_format", Between(0, 3), filterNumberFormat)
	add("filesizeformat", Between(0, 1), filterFilesizeformat)

	// Collection filters
	add("length", Exactly(0), filterLength)
	add("join", Between(0, 1), filterJoin)
	add("first", Exactly(0), filterFirst)
	add("last", Exactly(0), filterLast)
	add("reverse", Exactly(0), filterReverse)
	add("keys", Exactly(0), filterKeys)
	add("sort", Exactly(0), filterSort)
	add("merge", Exactly(1), filterMerge)
	add("slice", Between(1, 2), filterSlice)

	// Utility filters
	add("default", Between(0, 1), filterDefault)
	add("json_encode", Exactly(0), filterJSONEncode)
	add("date", Between(0, 1), filterDate)
}

func filterUpper(value Value, _ []Value) (Value, error) {
	return String(upperCaser.String(value.String())), nil
}

func filterLower(value Value, _ []Value) (Value, error) {
	return String(lowerCaser.String(value.String())), nil
}

func filterTitle(value Value, _ []Value) (Value, error) {
	return String(titleCaser.String(value.String())), nil
}

// filterCapitalize upper-cases the first character and lower-cases the rest.
func filterCapitalize(value Value, _ []Value) (Value, error) {
	s := value.String()
	if s == "" {
		return String(""), nil
	}
	_, size := utf8.DecodeRuneInString(s)
	return String(upperCaser.String(s[:size]) + lowerCaser.String(s[size:])), nil
}

func filterTrim(value Value, args []Value) (Value, error) {
	if len(args) == 1 {
		return String(strings.Trim(value.String(), args[0].String())), nil
	}
	return String(strings.TrimSpace(value.String())), nil
}

// filterReplace substitutes every key of the mapping argument with its value.
func filterReplace(value Value, args []Value) (Value, error) {
	if args[0].Kind() != KindMapping {
		return Value{}, fmt.Errorf("replace expects a mapping of replacements, got %s", args[0].typeName())
	}
	var pairs []string
	args[0].Mapping().Each(func(k string, v Value) bool {
		pairs = append(pairs, k, v.String())
		return true
	})
	return String(strings.NewReplacer(pairs...).Replace(value.String())), nil
}

func filterSplit(value Value, args []Value) (Value, error) {
	s, sep := value.String(), args[0].String()
	limit := -1
	if len(args) == 2 {
		limit = int(args[1].Int())
		if limit <= 0 {
			limit = -1
		}
	}
	var parts []string
	if sep == "" {
		for _, r := range s {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.SplitN(s, sep, limit)
	}
	items := make([]Value, len(parts))
	for i, p := range parts {
		items[i] = String(p)
	}
	return Sequence(items...), nil
}

// filterFormat substitutes printf style verbs with the arguments.
func filterFormat(value Value, args []Value) (Value, error) {
	goArgs := make([]interface{}, len(args))
	for i, a := range args {
		if a.Kind() == KindSequence || a.Kind() == KindMapping {
			goArgs[i] = a.String()
			continue
		}
		goArgs[i] = a.ToGo()
	}
	return String(fmt.Sprintf(value.String(), goArgs...)), nil
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

func filterEscape(value Value, args []Value) (Value, error) {
	strategy := "html"
	if len(args) == 1 {
		strategy = args[0].String()
	}
	switch strategy {
	case "html", "html_attr":
		return String(htmlEscaper.Replace(value.String())), nil
	case "url":
		return String(url.QueryEscape(value.String())), nil
	case "js":
		encoded, err := json.Marshal(value.String())
		if err != nil {
			return Value{}, err
		}
		return String(strings.Trim(string(encoded), `"`)), nil
	}
	return Value{}, fmt.Errorf("unknown escaping strategy %q", strategy)
}

func filterURLEncode(value Value, _ []Value) (Value, error) {
	if value.Kind() == KindMapping {
		q := url.Values{}
		value.Mapping().Each(func(k string, v Value) bool {
			q.Set(k, v.String())
			return true
		})
		return String(q.Encode()), nil
	}
	return String(url.QueryEscape(value.String())), nil
}

func filterRaw(value Value, _ []Value) (Value, error) {
	return value, nil
}

func filterAbs(value Value, _ []Value) (Value, error) {
	n, ok := classifyNumber(value)
	if !ok {
		return Value{}, fmt.Errorf("abs expects a number, got %s", value.typeName())
	}
	if n.isFloat() {
		return Float(math.Abs(n.floatValue)), nil
	}
	if n.intValue == math.MinInt64 {
		return Float(-n.floatValue), nil
	}
	if n.intValue < 0 {
		return Int(-n.intValue), nil
	}
	return Int(n.intValue), nil
}

// filterRound rounds to precision digits using "common", "ceil" or "floor".
func filterRound(value Value, args []Value) (Value, error) {
	n, ok := classifyNumber(value)
	if !ok {
		return Value{}, fmt.Errorf("round expects a number, got %s", value.typeName())
	}
	precision := int64(0)
	if len(args) > 0 {
		precision = args[0].Int()
	}
	if precision < -15 || precision > 15 {
		return Value{}, fmt.Errorf("round precision must be between -15 and 15, got %d", precision)
	}
	method := "common"
	if len(args) > 1 {
		method = args[1].String()
	}
	scale := math.Pow(10, float64(precision))
	f := n.floatValue * scale
	switch method {
	case "common":
		f = math.Round(f)
	case "ceil":
		f = math.Ceil(f)
	case "floor":
		f = math.Floor(f)
	default:
		return Value{}, fmt.Errorf("round method must be common, ceil or floor, got %q", method)
	}
	return Float(f / scale), nil
}

// filterNumberFormat groups thousands and fixes the number of decimals:
// number_format(decimals = 0, decimal_point = ".", thousands_sep = ",").
func filterNumberFormat(value Value, args []Value) (Value, error) {
	n, ok := classifyNumber(value)
	if !ok {
		return Value{}, fmt.Errorf("number_format expects a number, got %s", value.typeName())
	}
	decimals := 0
	if len(args) > 0 {
		d := args[0].Int()
		if d < 0 || d > 20 {
			return Value{}, fmt.Errorf("number_format decimals must be between 0 and 20, got %d", d)
		}
		decimals = int(d)
	}
	point, sep := ".", ","
	if len(args) > 1 {
		point = args[1].String()
	}
	if len(args) > 2 {
		sep = args[2].String()
	}

	rounded := math.Round(n.floatValue*math.Pow(10, float64(decimals))) / math.Pow(10, float64(decimals))
	s := numPrinter.Sprint(number.Decimal(rounded, number.Scale(decimals)))
	if point == "." && sep == "," {
		return String(s), nil
	}
	s = strings.NewReplacer(",", "\x00", ".", point).Replace(s)
	return String(strings.ReplaceAll(s, "\x00", sep)), nil
}

// filterFilesizeformat renders a byte count in decimal (kB) or, when the
// argument is true, binary (KiB) units.
func filterFilesizeformat(value Value, args []Value) (Value, error) {
	n, ok := classifyNumber(value)
	if !ok || n.floatValue < 0 {
		return Value{}, fmt.Errorf("filesizeformat expects a non-negative number, got %s", value.String())
	}
	if len(args) == 1 && args[0].Truthy() {
		return String(humanize.IBytes(uint64(n.floatValue))), nil
	}
	return String(humanize.Bytes(uint64(n.floatValue))), nil
}

func filterLength(value Value, _ []Value) (Value, error) {
	if n, ok := value.Len(); ok {
		return Int(int64(n)), nil
	}
	return Int(int64(utf8.RuneCountInString(value.String()))), nil
}

// iterValues returns the elements of a sequence or the values of a mapping.
func iterValues(value Value) []Value {
	switch value.Kind() {
	case KindSequence:
		return value.Items()
	case KindMapping:
		m := value.Mapping()
		out := make([]Value, 0, m.Len())
		m.Each(func(_ string, v Value) bool {
			out = append(out, v)
			return true
		})
		return out
	}
	return nil
}

func filterJoin(value Value, args []Value) (Value, error) {
	sep := ""
	if len(args) == 1 {
		sep = args[0].String()
	}
	if value.Kind() != KindSequence && value.Kind() != KindMapping {
		return String(value.String()), nil
	}
	items := iterValues(value)
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.String()
	}
	return String(strings.Join(parts, sep)), nil
}

func filterFirst(value Value, _ []Value) (Value, error) {
	if value.Kind() == KindString {
		for _, r := range value.Str() {
			return String(string(r)), nil
		}
		return String(""), nil
	}
	if items := iterValues(value); len(items) > 0 {
		return items[0], nil
	}
	return Null(), nil
}

func filterLast(value Value, _ []Value) (Value, error) {
	if value.Kind() == KindString {
		runes := []rune(value.Str())
		if len(runes) == 0 {
			return String(""), nil
		}
		return String(string(runes[len(runes)-1])), nil
	}
	if items := iterValues(value); len(items) > 0 {
		return items[len(items)-1], nil
	}
	return Null(), nil
}

func filterReverse(value Value, _ []Value) (Value, error) {
	switch value.Kind() {
	case KindString:
		runes := []rune(value.Str())
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return String(string(runes)), nil
	case KindSequence:
		items := value.Items()
		out := make([]Value, len(items))
		for i, item := range items {
			out[len(items)-1-i] = item
		}
		return Sequence(out...), nil
	case KindMapping:
		keys := value.Mapping().Keys()
		m := NewMapping()
		for i := len(keys) - 1; i >= 0; i-- {
			v, _ := value.Mapping().Get(keys[i])
			m.Set(keys[i], v)
		}
		return MappingValue(m), nil
	}
	return Value{}, fmt.Errorf("reverse expects a string, sequence or mapping, got %s", value.typeName())
}

func filterKeys(value Value, _ []Value) (Value, error) {
	switch value.Kind() {
	case KindMapping:
		keys := value.Mapping().Keys()
		out := make([]Value, len(keys))
		for i, k := range keys {
			out[i] = String(k)
		}
		return Sequence(out...), nil
	case KindSequence:
		out := make([]Value, len(value.Items()))
		for i := range out {
			out[i] = Int(int64(i))
		}
		return Sequence(out...), nil
	}
	return Sequence(), nil
}

// filterSort sorts a sequence, or a mapping by value keeping its keys.
func filterSort(value Value, _ []Value) (Value, error) {
	var sortErr error
	less := func(a, b Value) bool {
		c, err := compare("sort", a, b)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c < 0
	}
	switch value.Kind() {
	case KindSequence:
		out := append([]Value(nil), value.Items()...)
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
		if sortErr != nil {
			return Value{}, sortErr
		}
		return Sequence(out...), nil
	case KindMapping:
		m := value.Mapping()
		keys := m.Keys()
		sort.SliceStable(keys, func(i, j int) bool {
			a, _ := m.Get(keys[i])
			b, _ := m.Get(keys[j])
			return less(a, b)
		})
		if sortErr != nil {
			return Value{}, sortErr
		}
		out := NewMapping()
		for _, k := range keys {
			v, _ := m.Get(k)
			out.Set(k, v)
		}
		return MappingValue(out), nil
	}
	return Value{}, fmt.Errorf("sort expects a sequence or mapping, got %s", value.typeName())
}

// filterMerge concatenates sequences or merges mappings, right side winning.
func filterMerge(value Value, args []Value) (Value, error) {
	other := args[0]
	switch {
	case value.Kind() == KindSequence && other.Kind() == KindSequence:
		out := append(append([]Value(nil), value.Items()...), other.Items()...)
		return Sequence(out...), nil
	case value.Kind() == KindMapping && other.Kind() == KindMapping:
		out := value.Mapping().Clone()
		other.Mapping().Each(func(k string, v Value) bool {
			out.Set(k, v)
			return true
		})
		return MappingValue(out), nil
	case value.IsNull() && (other.Kind() == KindSequence || other.Kind() == KindMapping):
		return other, nil
	}
	return Value{}, fmt.Errorf("merge expects two sequences or two mappings, got %s and %s",
		value.typeName(), other.typeName())
}

// filterSlice extracts start[, length] from a sequence or string. Negative
// starts count from the end.
func filterSlice(value Value, args []Value) (Value, error) {
	var size int
	switch value.Kind() {
	case KindString:
		size = utf8.RuneCountInString(value.Str())
	case KindSequence:
		size = len(value.Items())
	default:
		return Value{}, fmt.Errorf("slice expects a sequence or string, got %s", value.typeName())
	}
	start := int(args[0].Int())
	if start < 0 {
		start += size
	}
	start = max(0, min(start, size))
	end := size
	if len(args) == 2 && !args[1].IsNull() {
		length := int(args[1].Int())
		if length < 0 {
			end = size + length
		} else {
			end = start + length
		}
	}
	end = max(start, min(end, size))

	if value.Kind() == KindString {
		return String(string([]rune(value.Str())[start:end])), nil
	}
	return Sequence(append([]Value(nil), value.Items()[start:end]...)...), nil
}

// isEmpty matches the `empty` test: undefined, null, false, "" and empty
// containers. Zero is not empty.
func isEmpty(value Value) bool {
	switch value.Kind() {
	case KindNull:
		return true
	case KindBool:
		return !value.Bool()
	case KindString:
		return value.Str() == ""
	case KindSequence, KindMapping:
		n, _ := value.Len()
		return n == 0
	}
	return false
}

func filterDefault(value Value, args []Value) (Value, error) {
	if !isEmpty(value) {
		return value, nil
	}
	if len(args) == 1 {
		return args[0], nil
	}
	return String(""), nil
}

func filterJSONEncode(value Value, _ []Value) (Value, error) {
	var b strings.Builder
	if err := writeJSON(&b, value); err != nil {
		return Value{}, err
	}
	return String(b.String()), nil
}

// writeJSON encodes v keeping mapping insertion order.
func writeJSON(b *strings.Builder, v Value) error {
	switch v.Kind() {
	case KindSequence:
		b.WriteByte('[')
		for i, item := range v.Items() {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeJSON(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil
	case KindMapping:
		b.WriteByte('{')
		var err error
		first := true
		v.Mapping().Each(func(k string, item Value) bool {
			if !first {
				b.WriteByte(',')
			}
			first = false
			key, _ := json.Marshal(k)
			b.Write(key)
			b.WriteByte(':')
			err = writeJSON(b, item)
			return err == nil
		})
		b.WriteByte('}')
		return err
	case KindOpaque:
		if t, ok := v.Interface().(time.Time); ok {
			v = String(t.Format(time.RFC3339))
		} else {
			v = String(v.String())
		}
	}
	encoded, err := json.Marshal(v.ToGo())
	if err != nil {
		return err
	}
	b.Write(encoded)
	return nil
}

// phpDateLayout maps PHP date() format characters to the Go layout that
// renders the same field.
var phpDateLayout = map[rune]string{
	'd': "02", 'D': "Mon", 'j': "2", 'l': "Monday",
	'm': "01", 'M': "Jan", 'n': "1", 'F': "January",
	'Y': "2006", 'y': "06",
	'H': "15", 'h': "03", 'g': "3", 'i': "04", 's': "05",
	'A': "PM", 'a': "pm", 'T': "MST", 'P': "-07:00", 'O': "-0700",
	'c': time.RFC3339,
}

// formatDate renders t one format character at a time, so characters with no
// meaning (digits, punctuation, backslash-escaped letters) are copied as is.
func formatDate(t time.Time, format string) string {
	var b strings.Builder
	escaped := false
	for _, r := range format {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case 'G':
			b.WriteString(strconv.Itoa(t.Hour()))
		case 'N':
			wd := int(t.Weekday())
			if wd == 0 {
				wd = 7
			}
			b.WriteString(strconv.Itoa(wd))
		case 'w':
			b.WriteString(strconv.Itoa(int(t.Weekday())))
		case 'U':
			b.WriteString(strconv.FormatInt(t.Unix(), 10))
		default:
			if layout, ok := phpDateLayout[r]; ok {
				b.WriteString(t.Format(layout))
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// toTime accepts opaque time values, unix timestamps and RFC 3339 / date strings.
func toTime(value Value) (time.Time, error) {
	switch value.Kind() {
	case KindOpaque:
		if t, ok := value.Interface().(time.Time); ok {
			return t, nil
		}
	case KindNumber:
		return time.Unix(value.Int(), 0).UTC(), nil
	case KindString:
		s := value.Str()
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as a date", s)
	}
	return time.Time{}, fmt.Errorf("date expects a time, timestamp or date string, got %s", value.typeName())
}

// filterDate formats a date with a PHP style format (default "F j, Y H:i").
func filterDate(value Value, args []Value) (Value, error) {
	t, err := toTime(value)
	if err != nil {
		return Value{}, err
	}
	format := "F j, Y H:i"
	if len(args) == 1 {
		format = args[0].String()
	}
	return String(formatDate(t, format)), nil
}
