package runtime

import (
	"errors"
	"testing"
)

func TestBuiltinFilters(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		// text
		{`{{ "hello world"|title }}`, "Hello World"},
		{`{{ "hELLO"|capitalize }}`, "Hello"},
		{`{{ "élan"|upper }}`, "ÉLAN"},
		{`{{ "  x "|trim }}`, "x"},
		{`{{ "xxhixx"|trim("x") }}`, "hi"},
		{`{{ "Hello NAME"|replace({"NAME": "Ann"}) }}`, "Hello Ann"},
		{`{{ "a,b,c"|split(",")|join("|") }}`, "a|b|c"},
		{`{{ "a,b,c"|split(",", 2)|last }}`, "b,c"},
		{`{{ "abc"|split("")|join("-") }}`, "a-b-c"},
		{`{{ "%s-%d"|format("a", 3) }}`, "a-3"},
		{`{{ (-9223372036854775807 - 1)|abs > 0 ? "pos" : "neg" }}`, "pos"},
		{`{{ "<a href='x'>"|e }}`, "&lt;a href=&#039;x&#039;&gt;"},
		{`{{ 'say "hi" & bye'|escape("html_attr") }}`, "say &quot;hi&quot; &amp; bye"},
		{`{{ "a b"|escape("url") }}`, "a+b"},
		{`{{ "say \"hi\""|e("js") }}`, `say \"hi\"`},
		{`{{ "a b&c"|url_encode }}`, "a+b%26c"},
		{`{{ {"q": "x y", "a": 1}|url_encode }}`, "a=1&q=x+y"},
		{`{{ "<b>"|raw }}`, "<b>"},

		// numbers
		{"{{ (-3)|abs }}", "3"},
		{"{{ -3|abs }}", "-3"},
		{"{{ 3.14159|round(2) }}", "3.14"},
		{"{{ 2.5|round }}", "3"},
		{`{{ 2.1|round(0, "ceil") }}`, "3"},
		{`{{ 2.9|round(0, "floor") }}`, "2"},
		{"{{ 1234|number_format }}", "1,234"},
		{"{{ 1234567.891|number_format(2) }}", "1,234,567.89"},
		{`{{ 1234.5|number_format(2, ",", ".") }}`, "1.234,50"},
		{`{{ 1234.5|number_format(1, ".", " ") }}`, "1 234.5"},
		{"{{ 1500|filesizeformat }}", "1.5 kB"},
		{"{{ 1024|filesizeformat(true) }}", "1.0 KiB"},

		// collections
		{`{{ "hello"|length }}`, "5"},
		{"{{ [1, 2]|length }}", "2"},
		{"{{ null|length }}", "0"},
		{"{{ [3, 1, 2]|sort|join(\",\") }}", "1,2,3"},
		{`{{ ["b", "a", "c"]|sort|first }}`, "a"},
		{`{{ {"x": 2, "y": 1}|sort|keys|join }}`, "yx"},
		{"{{ [1, 2, 3]|reverse|join }}", "321"},
		{`{{ "abc"|reverse }}`, "cba"},
		{`{{ {"b": 1, "a": 2}|keys|join(",") }}`, "b,a"},
		{`{{ ["p", "q"]|keys|join }}`, "01"},
		{"{{ [1, 2, 3]|first }}{{ [1, 2, 3]|last }}", "13"},
		{`{{ "héllo"|first }}{{ "héllo"|last }}`, "ho"},
		{"{{ []|first is null }}", "1"},
		{"{{ [1, 2]|merge([3])|join }}", "123"},
		{`{{ {"a": 1, "b": 2}|merge({"b": 3}) }}`, "{a: 1, b: 3}"},
		{"{{ [1, 2, 3, 4]|slice(1, 2)|join }}", "23"},
		{"{{ [1, 2, 3, 4]|slice(-2)|join }}", "34"},
		{`{{ "hello"|slice(-3) }}`, "llo"},
		{`{{ "hello"|slice(1, -1) }}`, "ell"},
		{`{{ {"a": 1, "b": 2}|join("+") }}`, "1+2"},

		// default and encoding
		{`{{ ""|default("d") }}`, "d"},
		{`{{ missing|default("d") }}`, "d"},
		{`{{ 0|default("d") }}`, "0"},
		{`{{ false|default }}`, ""},
		{`{{ {"b": [1, "x"], "a": null, "c": 1.5}|json_encode }}`, `{"b":[1,"x"],"a":null,"c":1.5}`},
		{`{{ "é"|json_encode }}`, `"é"`},

		// dates
		{`{{ 0|date("Y-m-d") }}`, "1970-01-01"},
		{`{{ "2024-03-05"|date("d/m/Y") }}`, "05/03/2024"},
		{`{{ "2024-03-05 14:07:00"|date }}`, "March 5, 2024 14:07"},
		{`{{ "2024-03-05T09:30:00Z"|date("D H:i") }}`, "Tue 09:30"},
		{`{{ date("2024-01-31")|date("l") }}`, "Wednesday"},
		{`{{ "2024-03-05T09:30:00Z"|date("Y 1 \\Y, 15") }}`, "2024 1 Y, 15"},
		{`{{ "2024-03-10T07:05:00Z"|date("G:i N w U") }}`, "7:05 7 0 1710054300"},
	}
	for _, tt := range tests {
		if got := renderString(t, tt.source, nil); got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.source, tt.expected, got)
		}
	}
}

func TestBuiltinFunctions(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		{`{{ range(3)|join(",") }}`, "0,1,2,3"},
		{`{{ range(1, 5, 2)|join(",") }}`, "1,3,5"},
		{`{{ range(5, 1, 2)|join(",") }}`, "5,3,1"},
		{`{{ range("a", "e", 2)|join }}`, "ace"},
		{"{{ max(1, 5, 3) }}", "5"},
		{"{{ min([4, 2, 8]) }}", "2"},
		{`{{ max({"a": 3, "b": 7}) }}`, "7"},
		{`{{ max("apple", "pear") }}`, "pear"},
		{`{{ cycle(["a", "b"], 3) }}`, "b"},
		{`{{ cycle(["a", "b", "c"], -1) }}`, "c"},
		{"{{ date() is null }}", ""},
	}
	for _, tt := range tests {
		if got := renderString(t, tt.source, nil); got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.source, tt.expected, got)
		}
	}
}

func TestFilterErrors(t *testing.T) {
	env := NewEnvironment()
	for _, src := range []string{
		`{{ "x"|replace("y") }}`,
		`{{ "x"|abs }}`,
		`{{ "x"|round }}`,
		`{{ 1|round(0, "up") }}`,
		`{{ "x"|e("css") }}`,
		"{{ 1|reverse }}",
		"{{ 1|slice(0) }}",
		"{{ [1]|merge({}) }}",
		`{{ [1, [2]]|sort }}`,
		`{{ "soon"|date }}`,
		"{{ (-1)|filesizeformat }}",
		"{{ 1234.5|number_format(-1) }}",
		"{{ 1234.5|number_format(21) }}",
		"{{ 12|round(400) }}",
		"{{ 12|round(-16) }}",
		`{{ max(1, [2]) }}`,
	} {
		err := renderError(t, env, src, nil)
		if !errors.Is(err, ErrType) {
			t.Errorf("%s: expected type error, got %v", src, err)
		}
	}
}
