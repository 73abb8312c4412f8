// Package typemap translates Kotlin type references into Swift type shapes.
//
// A Mapper is bound to one module and one swift.Interner and must not be
// shared between goroutines. Every nominal declaration the mapped type
// depends on is reported back, so the classifier can propagate
// unsupported status along those edges.
package typemap

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"klibexport/internal/diag"
	"klibexport/internal/kotlin"
	"klibexport/internal/linker"
	"klibexport/internal/swift"
)

// MaxDepth bounds nesting and alias expansion.
const MaxDepth = 64

// Unsupported explains why a type has no Swift counterpart.
type Unsupported struct {
	Code   diag.Code
	Reason string
}

func (e *Unsupported) Error() string { return e.Reason }

func unsupported(code diag.Code, format string, args ...any) error {
	return &Unsupported{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// AsUnsupported extracts the Unsupported cause of err.
func AsUnsupported(err error) (*Unsupported, bool) {
	var u *Unsupported
	if errors.As(err, &u) {
		return u, true
	}
	return nil, false
}

// Env is the read-only program view the mapper resolves names against.
type Env interface {
	Resolve(from kotlin.ModuleID, fq kotlin.FqName) (kotlin.Ref, error)
	Decl(ref kotlin.Ref) *kotlin.Declaration
	// AliasEmitted reports whether the typealias ref is part of the emitted
	// interface and may therefore be referenced by name.
	AliasEmitted(ref kotlin.Ref) bool
}

// Mapper maps types declared in one module.
type Mapper struct {
	env    Env
	in     *swift.Interner
	module kotlin.ModuleID
}

// New creates a mapper for module, interning into in.
func New(env Env, in *swift.Interner, module kotlin.ModuleID) *Mapper {
	return &Mapper{env: env, in: in, module: module}
}

// Interner returns the interner the mapper writes to.
func (m *Mapper) Interner() *swift.Interner { return m.in }

// Mapped is the outcome of mapping one type reference.
type Mapped struct {
	Type swift.TypeID
	// Deps lists referenced declarations in pre-order; aliases expanded
	// in place contribute the declarations of their targets.
	Deps []kotlin.Ref
}

type state struct {
	from     kotlin.ModuleID
	subst    map[string]swift.TypeID
	visiting map[kotlin.Ref]bool
	deps     []kotlin.Ref
}

// Map translates t. The error is an *Unsupported for unrepresentable types
// and unresolved references.
func (m *Mapper) Map(t *kotlin.TypeRef) (Mapped, error) {
	st := &state{from: m.module}
	id, err := m.mapType(st, t, 0)
	if err != nil {
		return Mapped{Deps: st.deps}, err
	}
	return Mapped{Type: id, Deps: st.deps}, nil
}

func (m *Mapper) mapType(st *state, t *kotlin.TypeRef, depth int) (swift.TypeID, error) {
	if depth > MaxDepth {
		return swift.NoTypeID, unsupported(diag.UnsRecursiveType, "type nesting exceeds %d levels", MaxDepth)
	}
	if t == nil {
		return swift.NoTypeID, unsupported(diag.UnsErrorType, "missing type")
	}
	b := m.in.Builtins()
	switch t.Kind {
	case kotlin.TypePrimitive:
		id, ok := primitive(b, t.Name)
		if !ok {
			return swift.NoTypeID, unsupported(diag.UnsType, "unknown builtin %s", t.Name.Dotted())
		}
		return id, nil
	case kotlin.TypeNothing:
		return b.Never, nil
	case kotlin.TypeAny:
		return b.KotlinBase, nil
	case kotlin.TypeNullable:
		from := st.from
		inner, err := m.mapType(st, t.Inner, depth+1)
		if err != nil {
			return swift.NoTypeID, err
		}
		if m.nullableAlias(from, t.Inner, depth+1) {
			return inner, nil
		}
		return m.in.Optional(inner), nil
	case kotlin.TypeClass, kotlin.TypeGeneric:
		return m.mapNominal(st, t, depth)
	case kotlin.TypeFunction:
		var params []swift.TypeID
		if t.Receiver != nil {
			recv, err := m.mapType(st, t.Receiver, depth+1)
			if err != nil {
				return swift.NoTypeID, err
			}
			params = append(params, recv)
		}
		for _, p := range t.Params {
			id, err := m.mapType(st, p, depth+1)
			if err != nil {
				return swift.NoTypeID, err
			}
			params = append(params, id)
		}
		result, err := m.mapType(st, t.Result, depth+1)
		if err != nil {
			return swift.NoTypeID, err
		}
		return m.in.RegisterClosure(params, result, t.Suspend), nil
	case kotlin.TypeTuple:
		if len(t.Params) < 2 {
			return swift.NoTypeID, unsupported(diag.UnsTuple, "tuple with %d element(s)", len(t.Params))
		}
		elems := make([]swift.TypeID, 0, len(t.Params))
		for _, p := range t.Params {
			id, err := m.mapType(st, p, depth+1)
			if err != nil {
				return swift.NoTypeID, err
			}
			elems = append(elems, id)
		}
		return m.in.RegisterTuple(elems), nil
	case kotlin.TypeParamRef:
		name := string(t.Name)
		if id, ok := st.subst[name]; ok {
			return id, nil
		}
		return m.in.RegisterParam(name), nil
	case kotlin.TypeError:
		return swift.NoTypeID, unsupported(diag.UnsErrorType, "unreadable type: %s", string(t.Name))
	default:
		return swift.NoTypeID, unsupported(diag.UnsType, "unsupported type kind %s", t.Kind)
	}
}

func primitive(b swift.Builtins, name kotlin.FqName) (swift.TypeID, bool) {
	switch name {
	case "kotlin/Boolean":
		return b.Bool, true
	case "kotlin/Byte":
		return b.Int8, true
	case "kotlin/Short":
		return b.Int16, true
	case "kotlin/Int":
		return b.Int32, true
	case "kotlin/Long":
		return b.Int64, true
	case "kotlin/UByte":
		return b.UInt8, true
	case "kotlin/UShort":
		return b.UInt16, true
	case "kotlin/UInt":
		return b.UInt32, true
	case "kotlin/ULong":
		return b.UInt64, true
	case "kotlin/Float":
		return b.Float, true
	case "kotlin/Double":
		return b.Double, true
	case "kotlin/Char":
		return b.CodeUnit, true
	case "kotlin/String":
		return b.String, true
	case "kotlin/Unit":
		return b.Void, true
	default:
		return swift.NoTypeID, false
	}
}

// collection shapes keyed by classifier; arity is implied by the shape
var collections = map[kotlin.FqName]swift.Kind{
	"kotlin/Array":                   swift.KindArray,
	"kotlin/collections/List":        swift.KindArray,
	"kotlin/collections/MutableList": swift.KindArray,
	"kotlin/collections/Set":         swift.KindSet,
	"kotlin/collections/MutableSet":  swift.KindSet,
	"kotlin/collections/Map":         swift.KindDictionary,
	"kotlin/collections/MutableMap":  swift.KindDictionary,
}

func (m *Mapper) mapArgs(st *state, t *kotlin.TypeRef, depth int) ([]swift.TypeID, error) {
	out := make([]swift.TypeID, 0, len(t.Args))
	for _, a := range t.Args {
		if a.Projection != kotlin.ProjectionInvariant {
			return nil, unsupported(diag.UnsProjection, "use-site projection %q in %s", a.Projection, t)
		}
		id, err := m.mapType(st, a.Type, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (m *Mapper) mapNominal(st *state, t *kotlin.TypeRef, depth int) (swift.TypeID, error) {
	if shape, ok := collections[t.Name]; ok {
		want := 1
		if shape == swift.KindDictionary {
			want = 2
		}
		if len(t.Args) != want {
			return swift.NoTypeID, unsupported(diag.UnsArity, "%s expects %d type argument(s), got %d", t.Name.Dotted(), want, len(t.Args))
		}
		args, err := m.mapArgs(st, t, depth)
		if err != nil {
			return swift.NoTypeID, err
		}
		switch shape {
		case swift.KindArray:
			return m.in.Intern(swift.MakeArray(args[0])), nil
		case swift.KindSet:
			return m.in.Intern(swift.MakeSet(args[0])), nil
		default:
			return m.in.Intern(swift.MakeDictionary(args[0], args[1])), nil
		}
	}

	ref, err := m.env.Resolve(st.from, t.Name)
	if err != nil {
		var unresolved *linker.UnresolvedError
		if errors.As(err, &unresolved) {
			return swift.NoTypeID, unsupported(diag.RefUnresolved, "%s", unresolved.Error())
		}
		return swift.NoTypeID, unsupported(diag.RefUnresolved, "unresolved reference %s: %v", t.Name.Dotted(), err)
	}
	decl := m.env.Decl(ref)
	if decl == nil {
		return swift.NoTypeID, unsupported(diag.RefUnresolved, "unresolved reference %s", t.Name.Dotted())
	}
	if len(t.Args) != len(decl.TypeParams) {
		return swift.NoTypeID, unsupported(diag.UnsArity, "%s expects %d type argument(s), got %d",
			t.Name.Dotted(), len(decl.TypeParams), len(t.Args))
	}

	if decl.Kind == kotlin.DeclTypealias && !m.env.AliasEmitted(ref) {
		return m.expandAlias(st, t, ref, decl, depth)
	}

	st.deps = append(st.deps, ref)
	args, err := m.mapArgs(st, t, depth)
	if err != nil {
		return swift.NoTypeID, err
	}
	return m.in.RegisterNominal(swift.NominalInfo{
		Ref:      ref,
		Args:     args,
		Protocol: decl.Kind == kotlin.DeclClass && decl.IsInterface(),
	}), nil
}

// nullableAlias reports whether t names a typealias whose expansion is
// already nullable. An emitted alias keeps its name in Swift, so wrapping
// it in another Optional would add a level the source does not have.
func (m *Mapper) nullableAlias(from kotlin.ModuleID, t *kotlin.TypeRef, depth int) bool {
	if t == nil || depth > MaxDepth {
		return false
	}
	switch t.Kind {
	case kotlin.TypeNullable:
		return true
	case kotlin.TypeClass, kotlin.TypeGeneric:
	default:
		return false
	}
	if _, ok := collections[t.Name]; ok {
		return false
	}
	ref, err := m.env.Resolve(from, t.Name)
	if err != nil {
		return false
	}
	decl := m.env.Decl(ref)
	if decl == nil || decl.Kind != kotlin.DeclTypealias || decl.Target == nil {
		return false
	}
	target := decl.Target
	if target.Kind == kotlin.TypeParamRef {
		// typealias Id<T> = T: nullability comes from the argument
		for i, tp := range decl.TypeParams {
			if tp.Name == string(target.Name) && i < len(t.Args) {
				return m.nullableAlias(from, t.Args[i].Type, depth+1)
			}
		}
		return false
	}
	return m.nullableAlias(ref.Module, target, depth+1)
}

// expandAlias maps the alias target in place, binding the alias parameters
// to the mapped arguments.
func (m *Mapper) expandAlias(st *state, t *kotlin.TypeRef, ref kotlin.Ref, decl *kotlin.Declaration, depth int) (swift.TypeID, error) {
	if st.visiting[ref] {
		return swift.NoTypeID, unsupported(diag.UnsRecursiveType, "recursive typealias %s", decl.FqName.Dotted())
	}
	args, err := m.mapArgs(st, t, depth)
	if err != nil {
		return swift.NoTypeID, err
	}
	subst := make(map[string]swift.TypeID, len(args))
	for i, tp := range decl.TypeParams {
		subst[tp.Name] = args[i]
	}
	if st.visiting == nil {
		st.visiting = make(map[kotlin.Ref]bool)
	}
	st.visiting[ref] = true
	outerFrom, outerSubst := st.from, st.subst
	st.from, st.subst = ref.Module, subst
	id, err := m.mapType(st, decl.Target, depth+1)
	st.from, st.subst = outerFrom, outerSubst
	delete(st.visiting, ref)
	return id, err
}
