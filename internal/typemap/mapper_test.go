package typemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klibexport/internal/diag"
	"klibexport/internal/fixture"
	"klibexport/internal/kotlin"
	"klibexport/internal/linker"
	"klibexport/internal/swift"
)

const mapperFixture = `
name: lib
depends: [ghost]
packages:
  com.example:
    - class: Box
      type_params: [T]
    - interface: Shape
    - typealias: Names
      target: List<String>
    - typealias: Ids
      target: List<Long>
    - typealias: Pairs
      type_params: [T]
      target: Map<String, T>
    - typealias: Loop
      target: List<Loop2>
    - typealias: Loop2
      target: Set<Loop>
    - typealias: MaybeInt
      target: Int?
    - typealias: AlsoMaybe
      target: MaybeInt
    - typealias: Opt
      target: Int?
    - typealias: Same
      type_params: [T]
      target: T
`

type testEnv struct {
	*linker.Table
	emitted map[kotlin.FqName]bool
}

func (e testEnv) AliasEmitted(ref kotlin.Ref) bool {
	return e.emitted[e.Decl(ref).FqName]
}

func newTestMapper(t *testing.T) (*Mapper, testEnv) {
	t.Helper()
	mod, err := fixture.Parse([]byte(mapperFixture))
	require.NoError(t, err)
	table, err := linker.Link([]*kotlin.Module{mod}, nil)
	require.NoError(t, err)
	env := testEnv{Table: table, emitted: map[kotlin.FqName]bool{
		"com/example/Ids":       true,
		"com/example/MaybeInt":  true,
		"com/example/AlsoMaybe": true,
		"com/example/Same":      true,
	}}
	return New(env, swift.NewInterner(), 0), env
}

func (e testEnv) names(ref kotlin.Ref) (string, bool) {
	d := e.Decl(ref)
	if d == nil {
		return "", false
	}
	return d.FqName.Dotted(), true
}

func mustType(t *testing.T, src string, params ...string) *kotlin.TypeRef {
	t.Helper()
	ty, err := fixture.ParseType(src, "com.example", params)
	require.NoError(t, err)
	return ty
}

func TestMapRendersSwiftTypes(t *testing.T) {
	m, env := newTestMapper(t)
	cases := []struct {
		src    string
		want   string
		params []string
	}{
		{src: "Boolean", want: "Swift.Bool"},
		{src: "Byte", want: "Swift.Int8"},
		{src: "Int", want: "Swift.Int32"},
		{src: "ULong", want: "Swift.UInt64"},
		{src: "Char", want: "Swift.Unicode.UTF16.CodeUnit"},
		{src: "Unit", want: "Swift.Void"},
		{src: "Nothing", want: "Swift.Never"},
		{src: "Any", want: "KotlinRuntime.KotlinBase"},
		{src: "Int?", want: "Swift.Int32?"},
		{src: "Nothing?", want: "Swift.Never?"},
		{src: "Unit?", want: "Swift.Void?"},
		{src: "List<String?>", want: "[Swift.String?]"},
		{src: "Array<Int>", want: "[Swift.Int32]"},
		{src: "MutableSet<Long>", want: "Swift.Set<Swift.Int64>"},
		{src: "Map<String, Any?>", want: "[Swift.String: KotlinRuntime.KotlinBase?]"},
		{src: "Box<Int>", want: "com.example.Box<Swift.Int32>"},
		{src: "Box<T>?", want: "com.example.Box<T>?", params: []string{"T"}},
		{src: "Shape?", want: "(any com.example.Shape)?"},
		{src: "String.(Int) -> Unit", want: "(Swift.String, Swift.Int32) -> Swift.Void"},
		{src: "suspend () -> Nothing", want: "() async -> Swift.Never"},
		{src: "(Int, Shape)", want: "(Swift.Int32, any com.example.Shape)"},
		{src: "Names", want: "[Swift.String]"},
		{src: "Ids", want: "com.example.Ids"},
		{src: "Pairs<Int>", want: "[Swift.String: Swift.Int32]"},
	}
	for _, tc := range cases {
		mapped, err := m.Map(mustType(t, tc.src, tc.params...))
		require.NoError(t, err, tc.src)
		got, err := m.Interner().Render(mapped.Type, env.names)
		require.NoError(t, err, tc.src)
		assert.Equal(t, tc.want, got, tc.src)
	}
}

func TestMapNullabilityIsIdempotent(t *testing.T) {
	m, _ := newTestMapper(t)
	once, err := m.Map(mustType(t, "String?"))
	require.NoError(t, err)
	twice, err := m.Map(kotlin.Nullable(kotlin.Nullable(kotlin.Primitive("String"))))
	require.NoError(t, err)
	assert.Equal(t, once.Type, twice.Type)
}

func TestMapNullableAliasAddsNoLevel(t *testing.T) {
	m, env := newTestMapper(t)
	cases := []struct {
		src  string
		want string
	}{
		{src: "MaybeInt", want: "com.example.MaybeInt"},
		{src: "MaybeInt?", want: "com.example.MaybeInt"},
		{src: "AlsoMaybe?", want: "com.example.AlsoMaybe"},
		{src: "Opt?", want: "Swift.Int32?"},
		{src: "Same<Int?>?", want: "com.example.Same<Swift.Int32?>"},
		{src: "Same<Int>?", want: "com.example.Same<Swift.Int32>?"},
		{src: "Ids?", want: "com.example.Ids?"},
	}
	for _, tc := range cases {
		mapped, err := m.Map(mustType(t, tc.src))
		require.NoError(t, err, tc.src)
		got, err := m.Interner().Render(mapped.Type, env.names)
		require.NoError(t, err, tc.src)
		assert.Equal(t, tc.want, got, tc.src)
	}
}

func TestMapCollectsDeps(t *testing.T) {
	m, env := newTestMapper(t)
	box, _ := env.Lookup("com/example/Box")
	shape, _ := env.Lookup("com/example/Shape")
	ids, _ := env.Lookup("com/example/Ids")

	mapped, err := m.Map(mustType(t, "Map<Box<Shape>, Ids>"))
	require.NoError(t, err)
	assert.Equal(t, []kotlin.Ref{box, shape, ids}, mapped.Deps)

	// expanded aliases are transparent
	mapped, err = m.Map(mustType(t, "Names"))
	require.NoError(t, err)
	assert.Empty(t, mapped.Deps)
}

func TestMapUnsupported(t *testing.T) {
	m, _ := newTestMapper(t)
	cases := []struct {
		src  string
		code diag.Code
	}{
		{"List<out Int>", diag.UnsProjection},
		{"Box<*>", diag.UnsProjection},
		{"Box", diag.UnsArity},
		{"List<Int, Int>", diag.UnsArity},
		{"Loop", diag.UnsRecursiveType},
		{"!garbled", diag.UnsErrorType},
		{"Missing", diag.RefUnresolved},
	}
	for _, tc := range cases {
		_, err := m.Map(mustType(t, tc.src))
		require.Error(t, err, tc.src)
		u, ok := AsUnsupported(err)
		require.True(t, ok, tc.src)
		assert.Equal(t, tc.code, u.Code, tc.src)
	}

	_, err := m.Map(kotlin.TupleType(kotlin.Primitive("Int")))
	u, ok := AsUnsupported(err)
	require.True(t, ok)
	assert.Equal(t, diag.UnsTuple, u.Code)
}

func TestUnresolvedMentionsMissingModule(t *testing.T) {
	m, _ := newTestMapper(t)
	_, err := m.Map(mustType(t, "ghost.pkg.Thing"))
	require.Error(t, err)
	assert.Equal(t, "unresolved reference ghost.pkg.Thing: module ghost not loaded", err.Error())
}

func TestMapDepthLimit(t *testing.T) {
	m, _ := newTestMapper(t)
	ty := kotlin.Primitive("Int")
	for range MaxDepth + 1 {
		ty = kotlin.ClassType("kotlin/collections/List", kotlin.Invariant(ty))
	}
	_, err := m.Map(ty)
	u, ok := AsUnsupported(err)
	require.True(t, ok)
	assert.Equal(t, diag.UnsRecursiveType, u.Code)
}

func TestTypeParams(t *testing.T) {
	m, env := newTestMapper(t)
	shape, _ := env.Lookup("com/example/Shape")

	gps, deps, err := m.TypeParams([]kotlin.TypeParameter{
		{Name: "T"},
		{Name: "S", Bounds: []*kotlin.TypeRef{mustType(t, "Shape?")}},
		{Name: "A", Bounds: []*kotlin.TypeRef{mustType(t, "Any")}},
	})
	require.NoError(t, err)
	require.Len(t, gps, 3)
	assert.Equal(t, swift.NoTypeID, gps[0].Bound)
	bound, err := m.Interner().RenderConstraint(gps[1].Bound, env.names)
	require.NoError(t, err)
	assert.Equal(t, "com.example.Shape", bound)
	assert.Equal(t, m.Interner().Builtins().KotlinBase, gps[2].Bound)
	assert.Equal(t, []kotlin.Ref{shape}, deps)

	bad := map[diag.Code][]kotlin.TypeParameter{
		diag.UnsVariance: {{Name: "T", Variance: kotlin.VarianceOut}},
		diag.UnsBounds:   {{Name: "T", Bounds: []*kotlin.TypeRef{mustType(t, "Shape"), mustType(t, "Any")}}},
	}
	for code, tps := range bad {
		_, _, err := m.TypeParams(tps)
		u, ok := AsUnsupported(err)
		require.True(t, ok, code.ID())
		assert.Equal(t, code, u.Code)
	}

	_, _, err = m.TypeParams([]kotlin.TypeParameter{{Name: "T", Bounds: []*kotlin.TypeRef{mustType(t, "Box<T>", "T")}}})
	u, ok := AsUnsupported(err)
	require.True(t, ok)
	assert.Equal(t, diag.UnsBounds, u.Code)
}
