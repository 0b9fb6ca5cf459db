package runtime

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/deicod/gotwig/nodes"
	"github.com/deicod/gotwig/parser"
)

// Includer resolves the templates named by include statements.
type Includer interface {
	Include(name string) (*ResolvedTemplate, error)
}

// Evaluator renders resolved templates. It holds no per-render state and may
// be used from several goroutines at once as long as its fields are not
// changed while rendering.
type Evaluator struct {
	Functions *FunctionRegistry
	Filters   *FilterRegistry
	Tests     *TestRegistry
	Includer  Includer
	// Strict turns undefined variables and missing attributes into
	// LookupErrors.
	Strict bool
	// MaxDepth bounds statement and expression nesting during evaluation as
	// well as include nesting.
	MaxDepth int
}

var (
	builtinFilters   = sync.OnceValue(DefaultFilters)
	builtinFunctions = sync.OnceValue(DefaultFunctions)
	builtinTests     = sync.OnceValue(DefaultTests)
)

// NewEvaluator creates an evaluator with fresh copies of the built-in
// registries.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		Functions: DefaultFunctions(),
		Filters:   DefaultFilters(),
		Tests:     DefaultTests(),
		MaxDepth:  parser.DefaultMaxDepth,
	}
}

// Render evaluates rt against ctx. On failure the partial output is
// discarded and only the error is returned.
func (e *Evaluator) Render(rt *ResolvedTemplate, ctx *Mapping) (string, error) {
	if rt == nil {
		return "", errors.New("cannot render a nil template")
	}
	var out strings.Builder
	rc := &renderContext{
		e:         e,
		out:       &out,
		scope:     NewScope(ctx),
		functions: e.Functions,
		filters:   e.Filters,
		tests:     e.Tests,
		maxDepth:  e.MaxDepth,
	}
	if rc.functions == nil {
		rc.functions = builtinFunctions()
	}
	if rc.filters == nil {
		rc.filters = builtinFilters()
	}
	if rc.tests == nil {
		rc.tests = builtinTests()
	}
	if rc.maxDepth <= 0 {
		rc.maxDepth = parser.DefaultMaxDepth
	}
	if err := rc.renderTemplate(rt); err != nil {
		return "", err
	}
	return out.String(), nil
}

type blockFrame struct {
	name  string
	level int
}

// renderContext is the state of one render call.
type renderContext struct {
	e         *Evaluator
	functions *FunctionRegistry
	filters   *FilterRegistry
	tests     *TestRegistry
	out       *strings.Builder
	scope     *Scope
	rt        *ResolvedTemplate
	template  string
	frames    []blockFrame
	depth     int
	includes  int
	maxDepth  int
}

func (rc *renderContext) renderTemplate(rt *ResolvedTemplate) error {
	prevRT, prevTemplate, prevFrames := rc.rt, rc.template, rc.frames
	rc.rt, rc.frames = rt, nil
	defer func() {
		rc.rt, rc.template, rc.frames = prevRT, prevTemplate, prevFrames
	}()

	for _, p := range rt.prelude {
		rc.template = p.template
		if err := rc.visit(p.stmt); err != nil {
			return err
		}
	}
	rc.template = rt.rootName
	return rc.visitBody(rt.body)
}

// fail creates an error located at node in the template being rendered.
func (rc *renderContext) fail(node nodes.Node, typ ErrorType, format string, args ...interface{}) error {
	return &Error{
		Type:     typ,
		Message:  fmt.Sprintf(format, args...),
		Template: rc.template,
		Position: node.GetPosition(),
	}
}

// wrap turns a plain error from an operator, filter, function or test into a
// TypeError at node. Engine errors pass through unchanged.
func (rc *renderContext) wrap(node nodes.Node, err error) error {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return err
	}
	return &Error{
		Type:     ErrorTypeType,
		Message:  err.Error(),
		Template: rc.template,
		Position: node.GetPosition(),
		Cause:    err,
	}
}

func (rc *renderContext) enter(node nodes.Node) error {
	rc.depth++
	if rc.depth > rc.maxDepth {
		return rc.fail(node, ErrorTypeType, "maximum evaluation depth exceeded")
	}
	return nil
}

func (rc *renderContext) leave() {
	rc.depth--
}

// capture runs fn with output redirected and returns what it wrote.
func (rc *renderContext) capture(fn func() error) (string, error) {
	prev := rc.out
	var b strings.Builder
	rc.out = &b
	err := fn()
	rc.out = prev
	return b.String(), err
}

func (rc *renderContext) visitBody(body []nodes.Stmt) error {
	for _, stmt := range body {
		if err := rc.visit(stmt); err != nil {
			return err
		}
	}
	return nil
}

// visit renders a single statement
func (rc *renderContext) visit(node nodes.Stmt) error {
	if err := rc.enter(node); err != nil {
		return err
	}
	defer rc.leave()

	switch n := node.(type) {
	case *nodes.TemplateData:
		rc.out.WriteString(n.Data)
		return nil
	case *nodes.Output:
		value, err := rc.eval(n.Node)
		if err != nil {
			return err
		}
		rc.out.WriteString(value.String())
		return nil
	case *nodes.If:
		return rc.visitIf(n)
	case *nodes.For:
		return rc.visitFor(n)
	case *nodes.Block:
		return rc.renderBlock(n, rc.rt.levelOf[n])
	case *nodes.Extends:
		return nil
	case *nodes.Include:
		return rc.visitInclude(n)
	case *nodes.Set:
		return rc.visitSet(n)
	}
	return rc.fail(node, ErrorTypeType, "unsupported statement %s", node.Type())
}

func (rc *renderContext) visitIf(node *nodes.If) error {
	for _, branch := range node.Branches {
		test, err := rc.eval(branch.Test)
		if err != nil {
			return err
		}
		if test.Truthy() {
			return rc.visitBody(branch.Body)
		}
	}
	return rc.visitBody(node.Else)
}

type loopItem struct {
	key   Value
	value Value
}

func (rc *renderContext) visitFor(node *nodes.For) error {
	iterable, err := rc.eval(node.Iter)
	if err != nil {
		return err
	}

	var items []loopItem
	switch iterable.Kind() {
	case KindSequence:
		for i, v := range iterable.Items() {
			items = append(items, loopItem{key: Int(int64(i)), value: v})
		}
	case KindMapping:
		iterable.Mapping().Each(func(k string, v Value) bool {
			items = append(items, loopItem{key: String(k), value: v})
			return true
		})
	case KindNull:
	default:
		return rc.fail(node.Iter, ErrorTypeType, "cannot iterate over %s", iterable.typeName())
	}

	if len(items) == 0 {
		return rc.visitBody(node.Else)
	}

	parentLoop := rc.scope.Lookup("loop")
	for i, item := range items {
		vars := map[string]Value{
			node.ValueVar: item.value,
			"loop":        newLoopContext(i, len(items), parentLoop).Value(),
		}
		if node.KeyVar != "" {
			vars[node.KeyVar] = item.key
		}
		rc.scope = rc.scope.Push(vars)
		err := rc.visitBody(node.Body)
		rc.scope = rc.scope.Pop()
		if err != nil {
			return err
		}
	}
	return nil
}

// renderBlock renders a resolved block declaration in its own scope.
func (rc *renderContext) renderBlock(block *nodes.Block, level int) error {
	prevTemplate := rc.template
	if origin, ok := rc.rt.origin[block]; ok {
		rc.template = origin
	}
	rc.frames = append(rc.frames, blockFrame{name: block.Name, level: level})
	rc.scope = rc.scope.PushIsolated(nil)
	defer func() {
		rc.scope = rc.scope.Pop()
		rc.frames = rc.frames[:len(rc.frames)-1]
		rc.template = prevTemplate
	}()
	return rc.visitBody(block.Body)
}

func (rc *renderContext) visitInclude(node *nodes.Include) error {
	target, err := rc.eval(node.Template)
	if err != nil {
		return err
	}
	var names []string
	if target.Kind() == KindSequence {
		for _, item := range target.Items() {
			names = append(names, item.String())
		}
	} else {
		names = []string{target.String()}
	}

	if rc.e.Includer == nil {
		return rc.fail(node, ErrorTypeComposition, "cannot include %q without a loader", strings.Join(names, ", "))
	}
	if rc.includes >= rc.maxDepth {
		return rc.fail(node, ErrorTypeComposition, "include nesting exceeds %d levels while including %q",
			rc.maxDepth, strings.Join(names, ", "))
	}

	var (
		included *ResolvedTemplate
		missErr  error
	)
	for _, name := range names {
		included, err = rc.e.Includer.Include(name)
		if err == nil {
			break
		}
		if !IsNotFound(err) {
			return err
		}
		missErr = err
	}
	if included == nil {
		if node.IgnoreMissing {
			return nil
		}
		return &Error{
			Type:     ErrorTypeComposition,
			Message:  fmt.Sprintf("included template %q not found", strings.Join(names, ", ")),
			Template: rc.template,
			Position: node.GetPosition(),
			Cause:    missErr,
		}
	}

	bindings := make(map[string]Value)
	if node.With != nil {
		with, err := rc.eval(node.With)
		if err != nil {
			return err
		}
		switch with.Kind() {
		case KindMapping:
			with.Mapping().Each(func(k string, v Value) bool {
				bindings[k] = v
				return true
			})
		case KindNull:
		default:
			return rc.fail(node.With, ErrorTypeType, "include variables must be a mapping, got %s", with.typeName())
		}
	}

	prevScope, prevDepth := rc.scope, rc.depth
	if node.Only {
		rc.scope = &Scope{vars: bindings}
	} else {
		rc.scope = rc.scope.PushIsolated(bindings)
	}
	rc.includes++
	rc.depth = 0
	err = rc.renderTemplate(included)
	rc.includes--
	rc.scope, rc.depth = prevScope, prevDepth
	return err
}

func (rc *renderContext) visitSet(node *nodes.Set) error {
	if node.Value != nil {
		value, err := rc.eval(node.Value)
		if err != nil {
			return err
		}
		rc.scope.Set(node.Name, value)
		return nil
	}
	captured, err := rc.capture(func() error { return rc.visitBody(node.Body) })
	if err != nil {
		return err
	}
	rc.scope.Set(node.Name, String(captured))
	return nil
}

// eval evaluates an expression.
func (rc *renderContext) eval(expr nodes.Expr) (Value, error) {
	return rc.evalExpr(expr, false)
}

// evalExpr evaluates expr. When lenient is set, undefined variables and
// missing attributes yield the undefined sentinel even in strict mode; this
// is used for the operand of `??`, `default` and the defined/null tests.
func (rc *renderContext) evalExpr(expr nodes.Expr, lenient bool) (Value, error) {
	if err := rc.enter(expr); err != nil {
		return Value{}, err
	}
	defer rc.leave()

	switch n := expr.(type) {
	case *nodes.Const:
		return FromGo(n.Value), nil
	case *nodes.Name:
		return rc.visitName(n, lenient)
	case *nodes.Getattr:
		base, err := rc.evalExpr(n.Node, lenient)
		if err != nil {
			return Value{}, err
		}
		return rc.member(n, base, String(n.Attr), lenient)
	case *nodes.Getitem:
		base, err := rc.evalExpr(n.Node, lenient)
		if err != nil {
			return Value{}, err
		}
		key, err := rc.eval(n.Arg)
		if err != nil {
			return Value{}, err
		}
		return rc.member(n, base, key, lenient)
	case *nodes.BinExpr:
		return rc.visitBinary(n)
	case *nodes.UnaryExpr:
		return rc.visitUnary(n)
	case *nodes.CondExpr:
		return rc.visitCond(n)
	case *nodes.List:
		items := make([]Value, len(n.Items))
		for i, item := range n.Items {
			v, err := rc.eval(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Sequence(items...), nil
	case *nodes.Dict:
		m := NewMapping()
		for _, pair := range n.Items {
			key, err := rc.eval(pair.Key)
			if err != nil {
				return Value{}, err
			}
			if key.Kind() == KindSequence || key.Kind() == KindMapping {
				return Value{}, rc.fail(pair.Key, ErrorTypeType, "hash key must be a scalar, got %s", key.typeName())
			}
			value, err := rc.eval(pair.Value)
			if err != nil {
				return Value{}, err
			}
			m.Set(key.String(), value)
		}
		return MappingValue(m), nil
	case *nodes.Filter:
		return rc.visitFilter(n, lenient)
	case *nodes.Test:
		return rc.visitTest(n, lenient)
	case *nodes.Call:
		return rc.visitCall(n)
	}
	return Value{}, rc.fail(expr, ErrorTypeType, "unsupported expression %s", expr.Type())
}

func (rc *renderContext) visitName(node *nodes.Name, lenient bool) (Value, error) {
	value := rc.scope.Lookup(node.Name)
	if value.IsDefined() {
		return value, nil
	}
	if node.Name == "_context" {
		return MappingValue(rc.scope.Flatten()), nil
	}
	if rc.e.Strict && !lenient {
		return Value{}, rc.fail(node, ErrorTypeLookup, "variable %q is not defined", node.Name)
	}
	return Undefined(), nil
}

// member implements `base.key` and `base[key]`.
func (rc *renderContext) member(node nodes.Expr, base, key Value, lenient bool) (Value, error) {
	value, found, err := lookupMember(base, key)
	if err != nil {
		return Value{}, rc.wrap(node, err)
	}
	if found {
		return value, nil
	}
	if rc.e.Strict && !lenient {
		if !base.IsDefined() || base.IsNull() {
			return Value{}, rc.fail(node, ErrorTypeLookup, "cannot access %q of %s", key.String(), base.typeName())
		}
		return Value{}, rc.fail(node, ErrorTypeLookup, "%s has no attribute %q", base.typeName(), key.String())
	}
	return Undefined(), nil
}

func lookupMember(base, key Value) (Value, bool, error) {
	switch base.Kind() {
	case KindMapping:
		v, ok := base.Mapping().Get(key.String())
		return v, ok, nil
	case KindSequence:
		items := base.Items()
		if i, ok := indexOf(key, len(items)); ok {
			return items[i], true, nil
		}
	case KindString:
		runes := []rune(base.Str())
		if i, ok := indexOf(key, len(runes)); ok {
			return String(string(runes[i])), true, nil
		}
	case KindOpaque:
		return attrOf(base.Interface(), key.String())
	}
	return Value{}, false, nil
}

// indexOf converts key into a position within a container of size n.
// Negative indexes count from the end.
func indexOf(key Value, n int) (int, bool) {
	if key.Kind() != KindNumber && key.Kind() != KindString {
		return 0, false
	}
	num, ok := classifyNumber(key)
	if !ok || num.isFloat() {
		return 0, false
	}
	i := int(num.intValue)
	if i < 0 {
		i += n
	}
	return i, i >= 0 && i < n
}

// attrOf reads an attribute of a host object: Attributer first, then the
// parts of a time.Time, then an exported struct field or a string-keyed map
// entry. Methods are never called.
func attrOf(obj interface{}, name string) (Value, bool, error) {
	if a, ok := obj.(Attributer); ok {
		v, found := a.Attr(name)
		return v, found, nil
	}
	rv := reflect.ValueOf(obj)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return Value{}, false, nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return Value{}, false, nil
	}
	if t, ok := rv.Interface().(time.Time); ok {
		v, found := timeAttr(t, name)
		return v, found, nil
	}
	switch rv.Kind() {
	case reflect.Struct:
		for _, fieldName := range []string{exportedName(name), name} {
			if sf, ok := rv.Type().FieldByName(fieldName); ok && sf.IsExported() {
				return FromGo(rv.FieldByIndex(sf.Index).Interface()), true, nil
			}
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
			if v.IsValid() {
				return FromGo(v.Interface()), true, nil
			}
		}
	}
	return Value{}, false, nil
}

// timeAttr exposes the calendar and clock parts of t.
func timeAttr(t time.Time, name string) (Value, bool) {
	switch name {
	case "year":
		return Int(int64(t.Year())), true
	case "month":
		return Int(int64(t.Month())), true
	case "day":
		return Int(int64(t.Day())), true
	case "hour":
		return Int(int64(t.Hour())), true
	case "minute":
		return Int(int64(t.Minute())), true
	case "second":
		return Int(int64(t.Second())), true
	case "weekday":
		return Int(int64(t.Weekday())), true
	case "yearday":
		return Int(int64(t.YearDay())), true
	case "timestamp":
		return Int(t.Unix()), true
	case "timezone":
		return String(t.Location().String()), true
	}
	return Value{}, false
}

func exportedName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

func (rc *renderContext) visitBinary(node *nodes.BinExpr) (Value, error) {
	switch node.Op {
	case "and", "or":
		left, err := rc.eval(node.Left)
		if err != nil {
			return Value{}, err
		}
		if left.Truthy() == (node.Op == "or") {
			return Bool(left.Truthy()), nil
		}
		right, err := rc.eval(node.Right)
		if err != nil {
			return Value{}, err
		}
		return Bool(right.Truthy()), nil
	case "??":
		left, err := rc.evalExpr(node.Left, true)
		if err != nil {
			return Value{}, err
		}
		if left.IsDefined() && !left.IsNull() {
			return left, nil
		}
		return rc.eval(node.Right)
	}

	left, err := rc.eval(node.Left)
	if err != nil {
		return Value{}, err
	}
	right, err := rc.eval(node.Right)
	if err != nil {
		return Value{}, err
	}
	result, err := binaryOp(node.Op, left, right)
	if err != nil {
		return Value{}, rc.wrap(node, err)
	}
	return result, nil
}

func binaryOp(op string, left, right Value) (Value, error) {
	switch op {
	case "==":
		return Bool(looseEqual(left, right)), nil
	case "!=":
		return Bool(!looseEqual(left, right)), nil
	case "<", ">", "<=", ">=":
		c, err := compare(op, left, right)
		if err != nil {
			return Value{}, err
		}
		switch op {
		case "<":
			return Bool(c < 0), nil
		case ">":
			return Bool(c > 0), nil
		case "<=":
			return Bool(c <= 0), nil
		}
		return Bool(c >= 0), nil
	case "in", "not in":
		found, err := contains(left, right)
		if err != nil {
			return Value{}, err
		}
		return Bool(found == (op == "in")), nil
	case "matches":
		re, err := cachedPattern(right.String())
		if err != nil {
			return Value{}, err
		}
		return Bool(re.MatchString(left.String())), nil
	case "starts with":
		return Bool(strings.HasPrefix(left.String(), right.String())), nil
	case "ends with":
		return Bool(strings.HasSuffix(left.String(), right.String())), nil
	case "..":
		return makeRange(left, right, 1)
	case "~":
		return concat(left, right)
	}
	return arithmetic(op, left, right)
}

var patternCache sync.Map

func cachedPattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	patternCache.Store(pattern, re)
	return re, nil
}

func (rc *renderContext) visitUnary(node *nodes.UnaryExpr) (Value, error) {
	operand, err := rc.eval(node.Node)
	if err != nil {
		return Value{}, err
	}
	switch node.Op {
	case "not":
		return Bool(!operand.Truthy()), nil
	case "-":
		v, err := negate(operand)
		if err != nil {
			return Value{}, rc.wrap(node, err)
		}
		return v, nil
	case "+":
		n, ok := classifyNumber(operand)
		if !ok {
			return Value{}, rc.fail(node, ErrorTypeType, "unsupported operand type for unary +: %s", operand.typeName())
		}
		return n.value(), nil
	}
	return Value{}, rc.fail(node, ErrorTypeType, "unknown unary operator %q", node.Op)
}

func (rc *renderContext) visitCond(node *nodes.CondExpr) (Value, error) {
	test, err := rc.eval(node.Test)
	if err != nil {
		return Value{}, err
	}
	if node.Expr1 == nil {
		if test.Truthy() {
			return test, nil
		}
		return rc.eval(node.Expr2)
	}
	if test.Truthy() {
		return rc.eval(node.Expr1)
	}
	return rc.eval(node.Expr2)
}

func (rc *renderContext) evalArgs(args []nodes.Expr) ([]Value, error) {
	out := make([]Value, len(args))
	for i, arg := range args {
		v, err := rc.eval(arg)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (rc *renderContext) visitFilter(node *nodes.Filter, lenient bool) (Value, error) {
	entry, ok := rc.filters.lookup(node.Name)
	if !ok {
		return Value{}, rc.fail(node, ErrorTypeLookup, "unknown filter %q", node.Name)
	}
	input, err := rc.evalExpr(node.Node, lenient || node.Name == "default")
	if err != nil {
		return Value{}, err
	}
	args, err := rc.evalArgs(node.Args)
	if err != nil {
		return Value{}, err
	}
	if !entry.arity.Accepts(len(args)) {
		return Value{}, rc.fail(node, ErrorTypeType, "filter %q expects %s arguments, got %d",
			node.Name, entry.arity, len(args))
	}
	result, err := entry.impl(input, args)
	if err != nil {
		return Value{}, rc.wrap(node, fmt.Errorf("filter %q: %w", node.Name, err))
	}
	return result, nil
}

func (rc *renderContext) visitTest(node *nodes.Test, lenient bool) (Value, error) {
	entry, ok := rc.tests.lookup(testKey(node.Name))
	if !ok {
		return Value{}, rc.fail(node, ErrorTypeLookup, "unknown test %q", node.Name)
	}
	value, err := rc.evalExpr(node.Node, lenient || lenientTests[node.Name])
	if err != nil {
		return Value{}, err
	}
	args, err := rc.evalArgs(node.Args)
	if err != nil {
		return Value{}, err
	}
	if !entry.arity.Accepts(len(args)) {
		return Value{}, rc.fail(node, ErrorTypeType, "test %q expects %s arguments, got %d",
			node.Name, entry.arity, len(args))
	}
	result, err := entry.impl(value, args)
	if err != nil {
		return Value{}, rc.wrap(node, fmt.Errorf("test %q: %w", node.Name, err))
	}
	return Bool(result != node.Negated), nil
}

func (rc *renderContext) visitCall(node *nodes.Call) (Value, error) {
	switch node.Name {
	case "parent":
		return rc.callParent(node)
	case "block":
		return rc.callBlock(node)
	}

	entry, ok := rc.functions.lookup(node.Name)
	if !ok {
		return Value{}, rc.fail(node, ErrorTypeLookup, "unknown function %q", node.Name)
	}
	args, err := rc.evalArgs(node.Args)
	if err != nil {
		return Value{}, err
	}
	if !entry.arity.Accepts(len(args)) {
		return Value{}, rc.fail(node, ErrorTypeType, "function %q expects %s arguments, got %d",
			node.Name, entry.arity, len(args))
	}
	result, err := entry.impl(args)
	if err != nil {
		return Value{}, rc.wrap(node, fmt.Errorf("function %q: %w", node.Name, err))
	}
	return result, nil
}

// callParent renders the next declaration up the extends chain of the block
// being rendered.
func (rc *renderContext) callParent(node *nodes.Call) (Value, error) {
	if len(node.Args) != 0 {
		return Value{}, rc.fail(node, ErrorTypeType, "parent() takes no arguments")
	}
	if len(rc.frames) == 0 {
		return Value{}, rc.fail(node, ErrorTypeComposition, "parent() can only be used inside a block")
	}
	frame := rc.frames[len(rc.frames)-1]
	decl, ok := rc.rt.block(frame.name, frame.level+1)
	if !ok {
		return Value{}, rc.fail(node, ErrorTypeComposition, "block %q has no parent block", frame.name)
	}
	out, err := rc.capture(func() error { return rc.renderBlock(decl, frame.level+1) })
	if err != nil {
		return Value{}, err
	}
	return String(out), nil
}

// callBlock renders a block of the current template by name.
func (rc *renderContext) callBlock(node *nodes.Call) (Value, error) {
	args, err := rc.evalArgs(node.Args)
	if err != nil {
		return Value{}, err
	}
	if len(args) != 1 {
		return Value{}, rc.fail(node, ErrorTypeType, "block() expects exactly 1 argument, got %d", len(args))
	}
	name := args[0].String()
	decl, ok := rc.rt.block(name, 0)
	if !ok {
		return Value{}, rc.fail(node, ErrorTypeLookup, "block %q is not defined", name)
	}
	out, err := rc.capture(func() error { return rc.renderBlock(decl, 0) })
	if err != nil {
		return Value{}, err
	}
	return String(out), nil
}
