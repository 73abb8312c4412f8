package naming

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klibexport/internal/diag"
	"klibexport/internal/fixture"
	"klibexport/internal/kotlin"
	"klibexport/internal/linker"
)

const moduleA = `
name: a
packages:
  "":
    - class: Item
  com.ex:
    - class: Box
      members:
        - fun: size
          returns: Int
    - class: Thing
    - fun: Thing
    - fun: f
      params: ["x: Int"]
    - fun: f
      params: ["x: String"]
    - fun: default
`

const moduleB = `
name: b
packages:
  "":
    - class: Item
`

func mustModules(t *testing.T, srcs ...string) []*kotlin.Module {
	t.Helper()
	out := make([]*kotlin.Module, 0, len(srcs))
	for _, src := range srcs {
		m, err := fixture.Parse([]byte(src))
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func allSupported(kotlin.Ref) bool { return true }

func bindAll(t *testing.T, policy Policy, mods []*kotlin.Module) (*linker.Table, *Registry, *diag.Bag) {
	t.Helper()
	table, err := linker.Link(mods, nil)
	require.NoError(t, err)
	bag := diag.NewBag(0)
	reg := Bind(table, allSupported, Options{Policy: policy, Reporter: diag.BagReporter{Bag: bag}})
	return table, reg, bag
}

func bindingOf(t *testing.T, table *linker.Table, reg *Registry, module string, fq kotlin.FqName, kind kotlin.DeclKind, sig string) Binding {
	t.Helper()
	mid, ok := table.ModuleID(module)
	require.True(t, ok, module)
	for _, d := range table.Module(mid).Decls() {
		if d.FqName != fq || d.Kind != kind {
			continue
		}
		if sig != "" && !strings.Contains(d.Signature(), sig) {
			continue
		}
		b, ok := reg.Lookup(kotlin.Ref{Module: mid, Decl: d.ID})
		require.True(t, ok, "%s %s not bound", module, fq)
		return b
	}
	t.Fatalf("%s: no %s %s", module, kind, fq)
	return Binding{}
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		changed bool
	}{
		{"plain", "plain", false},
		{"with-dash", "with_dash", true},
		{"1st", "_1st", true},
		{"", "_", true},
		{"cafe\u0301", "caf\u00e9", true},
		{"Ünïcode", "Ünïcode", false},
		{"a b$c", "a_b_c", true},
	}
	for _, tc := range cases {
		got, changed := Sanitize(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.changed, changed, tc.in)
	}
}

func TestPolicyNamespace(t *testing.T) {
	nested := Policy{}
	assert.Equal(t, "com.foo", nested.Namespace("com.foo"))
	assert.Equal(t, "com.`class`", nested.Namespace("com.class"))
	assert.Equal(t, "", nested.Namespace(""))

	assert.Equal(t, "", Policy{Default: TransformFlatten}.Namespace("com.foo"))
	assert.Equal(t, "ComFooBar", Policy{Default: TransformPascal}.Namespace("com.foo.bar"))

	p := Policy{Overrides: map[string]string{
		"com.foo":     "FooKit",
		"com.foo.sub": "Sub",
		"":            "Root",
	}}
	assert.Equal(t, "FooKit", p.Namespace("com.foo"))
	assert.Equal(t, "FooKit.bar.baz", p.Namespace("com.foo.bar.baz"))
	assert.Equal(t, "Sub.x", p.Namespace("com.foo.sub.x"))
	assert.Equal(t, "Root", p.Namespace(""))
	assert.Equal(t, "com.other", p.Namespace("com.other"), "root override covers only the root package")
	assert.Equal(t, "com.foobar", p.Namespace("com.foobar"))

	top := Policy{Overrides: map[string]string{"com.foo": ""}}
	assert.Equal(t, "", top.Namespace("com.foo"))
	assert.Equal(t, "inner", top.Namespace("com.foo.inner"))
}

func TestParseTransform(t *testing.T) {
	for in, want := range map[string]Transform{"": TransformNested, "Flatten": TransformFlatten, "pascal": TransformPascal} {
		got, err := ParseTransform(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTransform("snake")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, diag.ConfInvalidPolicy, code)
}

func TestValidate(t *testing.T) {
	mods := mustModules(t, moduleA)

	require.NoError(t, Policy{Overrides: map[string]string{"com.ex": "Ex", "com": "C.D", "": ""}}.Validate(mods))

	err := Policy{Overrides: map[string]string{"com.missing": "Missing"}}.Validate(mods)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	code, _ := CodeOf(err)
	assert.Equal(t, diag.ConfMissingTarget, code)
	assert.Contains(t, errors.FlattenHints(err), "remove the override")

	// the root override needs root declarations
	err = Policy{Overrides: map[string]string{"": "Root"}}.Validate(mustModules(t, `
name: c
packages:
  com.foo:
    - class: Only
`))
	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, diag.ConfMissingTarget, code)

	for _, bad := range []string{"1Kit", "Foo..Bar", "class", "Foo-Kit"} {
		err := Policy{Overrides: map[string]string{"com.ex": bad}}.Validate(mods)
		code, ok := CodeOf(err)
		require.True(t, ok, bad)
		assert.Equal(t, diag.ConfInvalidTarget, code, bad)
	}
}

func TestRegistryClaim(t *testing.T) {
	reg := NewRegistry()
	prop := Claimant{Module: "m", Kind: kotlin.DeclProperty}

	got, prev := reg.Claim("ns", "x", prop)
	assert.Equal(t, "x", got)
	assert.Nil(t, prev)

	got, prev = reg.Claim("ns", "x", Claimant{Module: "m", Kind: kotlin.DeclFunction, Params: "a: Int, "})
	assert.Equal(t, "x_function", got)
	require.NotNil(t, prev)
	assert.Equal(t, kotlin.DeclProperty, prev.Kind)

	got, _ = reg.Claim("ns", "x", prop)
	assert.Equal(t, "x_property", got)
	got, _ = reg.Claim("ns", "x", prop)
	assert.Equal(t, "x_property_2", got)

	got, _ = reg.Claim("ns", "x", Claimant{Module: "other", Kind: kotlin.DeclClass})
	assert.Equal(t, "other_x", got)

	// other namespaces are independent
	got, prev = reg.Claim("ns2", "x", prop)
	assert.Equal(t, "x", got)
	assert.Nil(t, prev)

	// overloads
	fn := func(params string) Claimant { return Claimant{Module: "m", Kind: kotlin.DeclFunction, Params: params} }
	got, _ = reg.Claim("ns", "f", fn("a: Int, "))
	assert.Equal(t, "f", got)
	got, _ = reg.Claim("ns", "f", fn("a: String, "))
	assert.Equal(t, "f", got)
	got, _ = reg.Claim("ns", "f", fn("a: Int, "))
	assert.Equal(t, "f_function", got)
}

func TestBindDisambiguates(t *testing.T) {
	table, reg, bag := bindAll(t, Policy{}, mustModules(t, moduleA, moduleB))

	assert.Equal(t, Binding{Name: "Item"}, bindingOf(t, table, reg, "a", "Item", kotlin.DeclClass, ""))
	assert.Equal(t, Binding{Name: "b_Item", Renamed: true}, bindingOf(t, table, reg, "b", "Item", kotlin.DeclClass, ""))

	assert.Equal(t, Binding{Namespace: "com.ex", Name: "Thing"}, bindingOf(t, table, reg, "a", "com/ex/Thing", kotlin.DeclClass, ""))
	assert.Equal(t, Binding{Namespace: "com.ex", Name: "Thing_function", Renamed: true},
		bindingOf(t, table, reg, "a", "com/ex/Thing", kotlin.DeclFunction, ""))

	assert.Equal(t, "com.ex.f", bindingOf(t, table, reg, "a", "com/ex/f", kotlin.DeclFunction, "kotlin.Int").Qualified())
	assert.Equal(t, "com.ex.f", bindingOf(t, table, reg, "a", "com/ex/f", kotlin.DeclFunction, "kotlin.String").Qualified())
	assert.Equal(t, "com.ex.`default`", bindingOf(t, table, reg, "a", "com/ex/default", kotlin.DeclFunction, "").Qualified())
	assert.Equal(t, "com.ex.Box.size", bindingOf(t, table, reg, "a", "com/ex/Box.size", kotlin.DeclFunction, "").Qualified())

	counts := map[diag.Code]int{}
	for _, d := range bag.Items() {
		assert.Equal(t, diag.SevInfo, d.Severity)
		counts[d.Code]++
	}
	assert.Equal(t, map[diag.Code]int{diag.NameCollision: 2, diag.NameEscaped: 1}, counts)

	assert.Len(t, reg.Log(), reg.Len())
	var buf bytes.Buffer
	require.NoError(t, reg.WriteLog(&buf))
	assert.Contains(t, buf.String(), "b\tItem\tb.b_Item\tcollides with a:Item\n")
	assert.Contains(t, buf.String(), "a\tcom.ex.default\ta.com.ex.`default`\tescaped\n")
}

func TestBindIgnoresInputOrder(t *testing.T) {
	_, forward, _ := bindAll(t, Policy{}, mustModules(t, moduleA, moduleB))
	_, backward, _ := bindAll(t, Policy{}, mustModules(t, moduleB, moduleA))
	assert.Equal(t, forward.Log(), backward.Log())
}

func TestBindSkipsUnsupported(t *testing.T) {
	table, err := linker.Link(mustModules(t, moduleA), nil)
	require.NoError(t, err)
	box, ok := table.Lookup("com/ex/Box")
	require.True(t, ok)

	reg := Bind(table, func(ref kotlin.Ref) bool { return ref != box }, Options{})
	_, bound := reg.Lookup(box)
	assert.False(t, bound)
	for _, e := range reg.Log() {
		assert.False(t, strings.HasPrefix(e.Source, "com.ex.Box"), e.Source)
	}
}

func TestBindFlattenCollides(t *testing.T) {
	const other = `
name: c
packages:
  org.other:
    - class: Thing
`
	table, reg, _ := bindAll(t, Policy{Default: TransformFlatten}, mustModules(t, moduleA, other))
	assert.Equal(t, Binding{Name: "Thing"}, bindingOf(t, table, reg, "a", "com/ex/Thing", kotlin.DeclClass, ""))
	assert.Equal(t, Binding{Name: "c_Thing", Renamed: true}, bindingOf(t, table, reg, "c", "org/other/Thing", kotlin.DeclClass, ""))
}

func TestBindNamespaceKeepsItsName(t *testing.T) {
	const src = `
name: a
packages:
  "":
    - class: com
  com:
    - class: foo
  com.foo:
    - class: Bar
`
	const other = `
name: b
packages:
  "":
    - class: com
`
	table, reg, bag := bindAll(t, Policy{}, mustModules(t, src, other))
	assert.Equal(t, Binding{Name: "com_class", Renamed: true}, bindingOf(t, table, reg, "a", "com", kotlin.DeclClass, ""))
	assert.Equal(t, Binding{Namespace: "com", Name: "foo_class", Renamed: true}, bindingOf(t, table, reg, "a", "com/foo", kotlin.DeclClass, ""))
	assert.Equal(t, Binding{Namespace: "com.foo", Name: "Bar"}, bindingOf(t, table, reg, "a", "com/foo/Bar", kotlin.DeclClass, ""))
	assert.Equal(t, Binding{Name: "b_com", Renamed: true}, bindingOf(t, table, reg, "b", "com", kotlin.DeclClass, ""))

	var collisions []string
	for _, d := range bag.Items() {
		if d.Code == diag.NameCollision {
			collisions = append(collisions, d.Message)
		}
	}
	assert.Len(t, collisions, 3)
	assert.Contains(t, collisions, "com renamed to com_class: namespace com already uses the name")

	var buf bytes.Buffer
	require.NoError(t, reg.WriteLog(&buf))
	assert.Contains(t, buf.String(), "a\tcom.foo\ta.com.foo_class\tcollides with namespace com.foo\n")
}
