package swift

import (
	"testing"

	"klibexport/internal/kotlin"
)

func testNames(ref kotlin.Ref) (string, bool) {
	switch ref.Decl {
	case 1:
		return "com.foo.Box", true
	case 2:
		return "com.foo.Shape", true
	default:
		return "", false
	}
}

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Void == NoTypeID || b.KotlinBase == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	if in.Intern(MakeInt(Width32)) != b.Int32 {
		t.Fatalf("Int32 should be deduplicated against builtins")
	}
	if b.Int32 == b.UInt32 {
		t.Fatalf("signedness must affect identity")
	}
}

func TestOptionalNeverNests(t *testing.T) {
	in := NewInterner()
	opt := in.Optional(in.Builtins().Int32)
	if again := in.Optional(opt); again != opt {
		t.Fatalf("optional of optional must collapse, got %d want %d", again, opt)
	}
}

func TestSideTablesDeduplicate(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	c1 := in.RegisterClosure([]TypeID{b.Int32}, b.Void, false)
	c2 := in.RegisterClosure([]TypeID{b.Int32}, b.Void, false)
	c3 := in.RegisterClosure([]TypeID{b.Int32}, b.Void, true)
	if c1 != c2 || c1 == c3 {
		t.Fatalf("closure identity broken: %d %d %d", c1, c2, c3)
	}
	t1 := in.RegisterTuple([]TypeID{b.Int32, b.String})
	t2 := in.RegisterTuple([]TypeID{b.Int32, b.String})
	if t1 != t2 {
		t.Fatalf("tuples should be deduplicated")
	}
	n1 := in.RegisterNominal(NominalInfo{Ref: kotlin.Ref{Decl: 1}, Args: []TypeID{b.Int32}})
	n2 := in.RegisterNominal(NominalInfo{Ref: kotlin.Ref{Decl: 1}, Args: []TypeID{b.Int32}})
	n3 := in.RegisterNominal(NominalInfo{Ref: kotlin.Ref{Decl: 1}, Args: []TypeID{b.Int64}})
	if n1 != n2 || n1 == n3 {
		t.Fatalf("nominal identity broken: %d %d %d", n1, n2, n3)
	}
	if in.RegisterParam("T") != in.RegisterParam("T") {
		t.Fatalf("params should be deduplicated")
	}
}

func TestRender(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	box := in.RegisterNominal(NominalInfo{Ref: kotlin.Ref{Decl: 1}, Args: []TypeID{in.RegisterParam("T")}})
	shape := in.RegisterNominal(NominalInfo{Ref: kotlin.Ref{Decl: 2}, Protocol: true})
	closure := in.RegisterClosure([]TypeID{b.String, b.CodeUnit}, b.Never, true)

	cases := []struct {
		id   TypeID
		want string
	}{
		{b.Int32, "Swift.Int32"},
		{b.UInt8, "Swift.UInt8"},
		{b.CodeUnit, "Swift.Unicode.UTF16.CodeUnit"},
		{in.Optional(b.Void), "Swift.Void?"},
		{in.Optional(b.Never), "Swift.Never?"},
		{in.Intern(MakeArray(b.String)), "[Swift.String]"},
		{in.Intern(MakeSet(b.Int64)), "Swift.Set<Swift.Int64>"},
		{in.Intern(MakeDictionary(b.String, in.Optional(b.KotlinBase))), "[Swift.String: KotlinRuntime.KotlinBase?]"},
		{box, "com.foo.Box<T>"},
		{shape, "any com.foo.Shape"},
		{in.Optional(shape), "(any com.foo.Shape)?"},
		{closure, "(Swift.String, Swift.Unicode.UTF16.CodeUnit) async -> Swift.Never"},
		{in.Optional(closure), "((Swift.String, Swift.Unicode.UTF16.CodeUnit) async -> Swift.Never)?"},
		{in.RegisterTuple([]TypeID{b.Bool, b.Double}), "(Swift.Bool, Swift.Double)"},
	}
	for _, tc := range cases {
		got, err := in.Render(tc.id, testNames)
		if err != nil {
			t.Fatalf("render %d: %v", tc.id, err)
		}
		if got != tc.want {
			t.Fatalf("render mismatch: want %q, got %q", tc.want, got)
		}
	}

	got, err := in.RenderConstraint(shape, testNames)
	if err != nil || got != "com.foo.Shape" {
		t.Fatalf("constraint render: %q %v", got, err)
	}
}

func TestRenderMissingBinding(t *testing.T) {
	in := NewInterner()
	orphan := in.RegisterNominal(NominalInfo{Ref: kotlin.Ref{Module: 3, Decl: 9}})
	arr := in.Intern(MakeArray(orphan))
	if _, err := in.Render(arr, testNames); err == nil {
		t.Fatalf("expected error for unbound declaration")
	}
	refs := in.Refs(arr)
	if len(refs) != 1 || refs[0] != (kotlin.Ref{Module: 3, Decl: 9}) {
		t.Fatalf("unexpected refs: %v", refs)
	}
}

func TestIdentifiers(t *testing.T) {
	if !IsIdentifier("café") || !IsIdentifier("_x1") {
		t.Fatalf("valid identifiers rejected")
	}
	for _, bad := range []string{"", "1x", "a-b", "a b", "$x"} {
		if IsIdentifier(bad) {
			t.Fatalf("%q accepted as identifier", bad)
		}
	}
	if Escape("init") != "`init`" || Escape("value") != "value" {
		t.Fatalf("escape mismatch")
	}
	if Unescape("`in`") != "in" {
		t.Fatalf("unescape mismatch")
	}
	if !IsNamespacePath("") || !IsNamespacePath("Foo.Bar") || IsNamespacePath("Foo..Bar") || IsNamespacePath("class") {
		t.Fatalf("namespace path validation mismatch")
	}
}
