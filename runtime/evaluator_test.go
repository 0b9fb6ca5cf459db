package runtime

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func renderString(t *testing.T, source string, data map[string]interface{}) string {
	t.Helper()
	out, err := NewEnvironment().RenderString("test", source, data)
	if err != nil {
		t.Fatalf("render %q: %v", source, err)
	}
	return out
}

func renderError(t *testing.T, env *Environment, source string, data map[string]interface{}) error {
	t.Helper()
	out, err := env.RenderString("test", source, data)
	if err == nil {
		t.Fatalf("render %q: expected error, got output %q", source, out)
	}
	if out != "" {
		t.Fatalf("render %q: partial output %q returned with error", source, out)
	}
	return err
}

func TestLiteralTextRoundTrips(t *testing.T) {
	sources := []string{
		"",
		"plain text",
		"line one\nline two\n\n  indented\ttab",
		"braces { } and } { and percent % signs",
		"unicode: héllo wörld ✓",
	}
	for _, src := range sources {
		if got := renderString(t, src, nil); got != src {
			t.Errorf("literal text changed: expected %q, got %q", src, got)
		}
	}
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		{"{{ 1 + 2 * 3 }}", "7"},
		{"{{ (1 + 2) * 3 }}", "9"},
		{`{{ "a" ~ "b" }}`, "ab"},
		{`{{ "n" ~ (1 + 2) }}`, "n3"},
		{"{{ true and false }}", ""},
		{"{{ true or false }}", "1"},
		{"{{ not false }}", "1"},
		{"{{ 7 // 2 }}", "3"},
		{"{{ -7 // 2 }}", "-4"},
		{"{{ 7 / 2 }}", "3.5"},
		{"{{ 6 / 2 }}", "3"},
		{"{{ 10 % 3 }}", "1"},
		{"{{ 2 ** 3 ** 2 }}", "512"},
		{"{{ -2 ** 2 }}", "-4"},
		{"{{ 0.1 + 0.2 }}", "0.3"},
		{"{{ 1e3 }}", "1000"},
		{`{{ "3" + 4 }}`, "7"},
		{"{{ null + 1 }}", "1"},
		{"{{ true + true }}", "2"},
		{`{{ (1..3)|join(",") }}`, "1,2,3"},
		{`{{ "a".."c" }}`, "a, b, c"},
		{"{{ 3..1 }}", "3, 2, 1"},
		{`{{ (9223372036854775806..9223372036854775807)|join(",") }}`, "9223372036854775806,9223372036854775807"},
		{`{{ (-9223372036854775807 - 1..-9223372036854775806)|length }}`, "3"},
		{`{{ range(9223372036854775807, 9223372036854775800, 5)|join(",") }}`, "9223372036854775807,9223372036854775802"},
		{`{{ 9223372036854775807 + 1 > 0 ? "up" : "wrapped" }}`, "up"},
		{`{{ -9223372036854775807 - 2 < 0 ? "down" : "wrapped" }}`, "down"},
		{`{{ 4611686018427387904 * 4 > 0 ? "up" : "wrapped" }}`, "up"},
		{"{{ 9223372036854775806 + 1 }}", "9223372036854775807"},
		{`{{ null ?? "x" }}`, "x"},
		{`{{ missing ?? "d" }}`, "d"},
		{"{{ 0 ?? 5 }}", "0"},
		{`{{ "" ?: "empty" }}`, "empty"},
		{`{{ 1 ? "y" : "n" }}`, "y"},
		{`{{ 0 ? "y" : "n" }}`, "n"},
		{`{{ "abc" starts with "a" }}`, "1"},
		{`{{ "abc" ends with "b" }}`, ""},
		{`{{ "abc" matches "/^A/i" }}`, "1"},
		{"{{ 2 in [1, 2] }}", "1"},
		{"{{ 3 not in [1, 2] }}", "1"},
		{`{{ "b" in "abc" }}`, "1"},
		{`{{ "k" in {"k": 1} }}`, "1"},
		{"{{ 1 == 1.0 }}", "1"},
		{`{{ "1" == 1 }}`, "1"},
		{"{{ null == 0 }}", ""},
		{"{{ 1 < 2 and 2 <= 2 }}", "1"},
		{`{{ "b" > "a" }}`, "1"},
		{"{{ 4 is even }}", "1"},
		{"{{ 4 is not odd }}", "1"},
		{"{{ 9 is divisible by(3) }}", "1"},
		{"{{ missing is defined }}", ""},
		{"{{ missing is null }}", "1"},
		{"{{ 0 is empty }}", ""},
		{"{{ [] is empty }}", "1"},
		{"{{ 1 is same as(1.0) }}", ""},
		{"{{ [1] is iterable }}", "1"},
		{"{{ [1, [2, 3]] }}", "1, 2, 3"},
		{`{{ {"a": 1, "b": [1, 2]} }}`, "{a: 1, b: 1, 2}"},
		{`{{ {"a": 1, "a": 2}.a }}`, "2"},
		{`{{ {"a": 1, "b": 2, "a": 3}|keys|join(",") }}`, "a,b"},
		{`{{ {(1 + 1): "two"}["2"] }}`, "two"},
		{"{{ true }}|{{ false }}|{{ null }}", "1||"},
		{"{{ 1.50 }}", "1.5"},
		{"{{ -0.0 }}", "0"},
		{"{{ 1 / 3 }}", "0.333333"},
		{`{{ "x"|upper|lower }}`, "x"},
		{"{{ missing }}", ""},
		{"{{ missing.attr.deeper }}", ""},
	}
	for _, tt := range tests {
		if got := renderString(t, tt.source, nil); got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.source, tt.expected, got)
		}
	}
}

func TestVariableAccess(t *testing.T) {
	data := map[string]interface{}{
		"user":  map[string]interface{}{"name": "ann", "tags": []string{"x", "y"}},
		"items": []interface{}{"a", "b"},
		"word":  "hey",
	}
	tests := []struct {
		source   string
		expected string
	}{
		{"{{ user.name|upper }}", "ANN"},
		{`{{ user["name"] }}`, "ann"},
		{"{{ user.tags.1 }}", "y"},
		{"{{ items[1] }}", "b"},
		{"{{ items.0 }}", "a"},
		{"{{ items[-1] }}", "b"},
		{"{{ items[5] }}", ""},
		{"{{ word[0] }}", "h"},
		{"{{ user.missing }}", ""},
		{"{{ _context.word }}", "hey"},
	}
	for _, tt := range tests {
		if got := renderString(t, tt.source, data); got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.source, tt.expected, got)
		}
	}
}

type account struct {
	Name   string
	Email  string
	Since  time.Time
	Labels map[string]string
	bumps  int
}

func (a *account) Bump() string {
	a.bumps++
	return "bumped"
}

func TestHostObjectAttributes(t *testing.T) {
	acct := &account{
		Name:   "Ann",
		Email:  "ann@example.com",
		Since:  time.Date(2020, 5, 1, 13, 4, 5, 0, time.UTC),
		Labels: map[string]string{"tier": "gold"},
	}
	data := map[string]interface{}{"acct": acct}

	tests := []struct {
		source   string
		expected string
	}{
		{"{{ acct.name }}", "Ann"},
		{"{{ acct.Name }}", "Ann"},
		{"{{ acct.labels.tier }}", "gold"},
		{"{{ acct.since.year }}-{{ acct.since.month }}-{{ acct.since.day }}", "2020-5-1"},
		{"{{ acct.since.hour }}:{{ acct.since.minute }}:{{ acct.since.second }}", "13:4:5"},
		{"{{ acct.since.timestamp }}", "1588338245"},
		{`{{ acct.since|date("Y-m-d") }}`, "2020-05-01"},
		{"{{ acct.since }}", "2020-05-01T13:04:05Z"},
		{"{{ acct.nothing }}", ""},
		{"{{ acct.bumps }}", ""},
		{"{{ acct.bump }}{{ acct.Bump }}", ""},
	}
	for _, tt := range tests {
		if got := renderString(t, tt.source, data); got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.source, tt.expected, got)
		}
	}
	if acct.bumps != 0 {
		t.Fatalf("expected no host method calls, got %d", acct.bumps)
	}
}

func TestIfSelectsOneBranch(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		{"{% if false %}x{% endif %}", ""},
		{"{% if 0 %}a{% elseif \"\" %}b{% elseif [] %}c{% elseif {} %}d{% elseif null %}e{% else %}f{% endif %}", "f"},
		{"{% if \"0\" %}a{% else %}b{% endif %}", "a"},
		{"{% if [0] %}a{% else %}b{% endif %}", "a"},
		{"{% if 1 %}a{% elseif 1 %}b{% endif %}", "a"},
		{"{% if 0 %}a{% elseif 1 %}b{% else %}c{% endif %}", "b"},
	}
	for _, tt := range tests {
		if got := renderString(t, tt.source, nil); got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.source, tt.expected, got)
		}
	}
}

func TestForLoops(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		{"{% for i in [1, 2, 3] %}{{ loop.index }}{% if not loop.last %},{% endif %}{% endfor %}", "1,2,3"},
		{"{% for i in [1, 2, 3] %}{{ loop.revindex0 }}{{ loop.first ? 'f' : '' }}{% endfor %}", "2f10"},
		{`{% for k, v in {"a": 1, "b": 2} %}{{ k }}={{ v }};{% endfor %}`, "a=1;b=2;"},
		{`{% for i, v in ["x", "y"] %}{{ i }}{{ v }}{% endfor %}`, "0x1y"},
		{"{% for x in [] %}x{% else %}empty{% endfor %}", "empty"},
		{"{% for x in missing %}x{% else %}none{% endfor %}", "none"},
		{"{% for a in [1, 2] %}{% for b in [1] %}{{ loop.parent.index }}{% endfor %}{% endfor %}", "12"},
		{"{% set total = 0 %}{% for n in [1, 2, 3] %}{% set total = total + n %}{% endfor %}{{ total }}", "6"},
		{"{% for n in [1, 2] %}{% set inner = n %}{% endfor %}[{{ inner }}]", "[]"},
		{"{% for n in 1..3 %}{{ n }}{% endfor %}{{ n }}", "123"},
	}
	for _, tt := range tests {
		if got := renderString(t, tt.source, nil); got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.source, tt.expected, got)
		}
	}
}

func TestSetAndCapture(t *testing.T) {
	got := renderString(t, "{% set x = 5 %}{{ x * 2 }}", nil)
	if got != "10" {
		t.Fatalf("expected 10, got %q", got)
	}

	got = renderString(t, "{% set greeting %}Hi {{ name }}{% endset %}{{ greeting|upper }}", map[string]interface{}{"name": "bob"})
	if got != "HI BOB" {
		t.Fatalf("expected captured output, got %q", got)
	}
}

func TestWhitespaceControlAndComments(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		{`x  {{- "y" -}}  z`, "xyz"},
		{"a {#- note -#} b", "ab"},
		{"{# comment #}x", "x"},
		{"{% verbatim %}{{ raw }}{% endverbatim %}", "{{ raw }}"},
		{"<ul>\n  {%- for i in [1, 2] %}\n  <li>{{ i }}</li>\n  {%- endfor %}\n</ul>", "<ul>\n  <li>1</li>\n  <li>2</li>\n</ul>"},
	}
	for _, tt := range tests {
		if got := renderString(t, tt.source, nil); got != tt.expected {
			t.Errorf("%q: expected %q, got %q", tt.source, tt.expected, got)
		}
	}
}

func TestRuntimeErrors(t *testing.T) {
	env := NewEnvironment()
	tests := []struct {
		source string
		kind   error
	}{
		{"{{ foo|nope }}", ErrLookup},
		{"{{ nope() }}", ErrLookup},
		{"{{ 1 is nope }}", ErrLookup},
		{`{{ {"a": 1} ~ "x" }}`, ErrType},
		{`{{ [1] ~ "x" }}`, ErrType},
		{"{{ 1 / 0 }}", ErrType},
		{"{{ 1 % 0 }}", ErrType},
		{`{{ "a" + 1 }}`, ErrType},
		{"{{ [1] * 2 }}", ErrType},
		{"{{ [1] < 2 }}", ErrType},
		{`{{ "x"|join(",", "y") }}`, ErrType},
		{"{{ range() }}", ErrType},
		{"{{ 1..1000000 }}", ErrType},
		{"{{ (-4611686018427387904..4611686018427387904)|length }}", ErrType},
		{"{{ (-9223372036854775807 - 1..9223372036854775807)|length }}", ErrType},
		{"{{ range(0, 1, -9223372036854775807 - 1) }}", ErrType},
		{`{% for c in "abc" %}{% endfor %}`, ErrType},
		{"{{ parent() }}", ErrComposition},
		{`{{ block("none") }}`, ErrLookup},
	}
	for _, tt := range tests {
		err := renderError(t, env, tt.source, nil)
		if !errors.Is(err, tt.kind) {
			t.Errorf("%s: expected %v, got %v", tt.source, tt.kind, err)
		}
	}
}

func TestErrorsCarryPosition(t *testing.T) {
	err := renderError(t, NewEnvironment(), "line one\n  {{ nope() }}", nil)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Template != "test" || e.Position.Line != 2 || e.Position.Column != 6 {
		t.Fatalf("unexpected location: %q %s", e.Template, e.Position)
	}
	if !strings.Contains(err.Error(), `unknown function "nope"`) {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestPartialOutputDiscarded(t *testing.T) {
	renderError(t, NewEnvironment(), "before {{ 1 / 0 }} after", nil)
}

func TestStrictVariables(t *testing.T) {
	env := NewEnvironment(WithStrictVariables(true))

	for _, src := range []string{"{{ missing }}", "{{ user.missing }}", "{{ missing.attr }}"} {
		err := renderError(t, env, src, map[string]interface{}{"user": map[string]interface{}{}})
		if !errors.Is(err, ErrLookup) {
			t.Errorf("%s: expected lookup error, got %v", src, err)
		}
	}

	tests := []struct {
		source   string
		expected string
	}{
		{`{{ missing|default("d") }}`, "d"},
		{"{{ missing is defined ? 1 : 2 }}", "2"},
		{`{{ missing.attr ?? "z" }}`, "z"},
		{"{{ missing is null }}", "1"},
		{"{{ present }}", "ok"},
	}
	for _, tt := range tests {
		out, err := env.RenderString("strict", tt.source, map[string]interface{}{"present": "ok"})
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.source, err)
			continue
		}
		if out != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.source, tt.expected, out)
		}
	}
}

func TestEvaluationDepthLimit(t *testing.T) {
	env := NewEnvironment(WithMaxDepth(4))
	err := renderError(t, env, "{% if a %}{% if b %}{{ 1 + 2 }}{% endif %}{% endif %}", map[string]interface{}{"a": true, "b": true})
	if !errors.Is(err, ErrType) || !strings.Contains(err.Error(), "maximum evaluation depth exceeded") {
		t.Fatalf("expected depth error, got %v", err)
	}
}

func TestCustomRegistrations(t *testing.T) {
	env := NewEnvironment()
	if err := env.AddFilter("shout", Exactly(0), func(v Value, _ []Value) (Value, error) {
		return String(strings.ToUpper(v.String()) + "!"), nil
	}); err != nil {
		t.Fatalf("AddFilter: %v", err)
	}
	if err := env.AddFunction("greet", Between(0, 1), func(args []Value) (Value, error) {
		if len(args) == 0 {
			return String("hi"), nil
		}
		return String("hi " + args[0].String()), nil
	}); err != nil {
		t.Fatalf("AddFunction: %v", err)
	}
	if err := env.AddTest("short", Exactly(0), func(v Value, _ []Value) (bool, error) {
		n, _ := v.Len()
		return n < 4, nil
	}); err != nil {
		t.Fatalf("AddTest: %v", err)
	}

	out, err := env.RenderString("custom", `{{ "hey"|shout }} {{ greet() }} {{ greet("ann") }} {{ "abc" is short }}`, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "HEY! hi hi ann 1" {
		t.Fatalf("unexpected output %q", out)
	}

	_, err = env.RenderString("custom", "{{ greet(1, 2) }}", nil)
	if !errors.Is(err, ErrType) {
		t.Fatalf("expected arity error, got %v", err)
	}
}

func TestRenderIsIdempotentAndConcurrent(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.Compile("loop", "{% for i in items %}{% set last = i %}{{ i }}{% endfor %}|{{ name }}")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	rt, err := env.Resolve(tmpl)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ctx := FromGo(map[string]interface{}{"items": []int{1, 2, 3}, "name": "x"}).Mapping()

	first, err := env.Render(rt, ctx)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if first != "123|x" {
		t.Fatalf("unexpected output %q", first)
	}

	var wg sync.WaitGroup
	results := make([]string, 32)
	errs := make([]error, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.Render(rt, ctx)
		}(i)
	}
	wg.Wait()
	for i := range results {
		if errs[i] != nil || results[i] != first {
			t.Fatalf("render %d differs: %q, %v", i, results[i], errs[i])
		}
	}
}
