package classify

import (
	"fmt"

	"klibexport/internal/diag"
	"klibexport/internal/kotlin"
	"klibexport/internal/linker"
	"klibexport/internal/swift"
	"klibexport/internal/typemap"
)

// env exposes the linked table to the type mapper. An alias is referenced
// by name only when it is itself emitted.
type env struct {
	*linker.Table
	hidden [][]bool
}

func (e env) AliasEmitted(ref kotlin.Ref) bool {
	m := e.Module(ref.Module)
	if m == nil || !m.Exported || int(ref.Decl) >= len(e.hidden[ref.Module]) {
		return false
	}
	return !e.hidden[ref.Module][ref.Decl]
}

// local classifies one module in isolation.
type local struct {
	table  *linker.Table
	mod    *kotlin.Module
	id     kotlin.ModuleID
	mapper *typemap.Mapper
	edges  edges
}

func (r *Result) localModule(mid kotlin.ModuleID, m *kotlin.Module) moduleState {
	in := swift.NewInterner()
	n := m.Len() + 1
	st := moduleState{
		interner: in,
		verdicts: make([]Verdict, n),
		sigs:     make([]*Signature, n),
		edges:    make([]edges, n),
	}
	st.verdicts[0] = hidden()
	l := &local{
		table:  r.table,
		mod:    m,
		id:     mid,
		mapper: typemap.New(env{Table: r.table, hidden: r.hidden}, in, mid),
	}
	for _, d := range m.Decls() {
		if r.hidden[mid][d.ID] {
			st.verdicts[d.ID] = hidden()
			continue
		}
		l.edges = edges{}
		sig := &Signature{}
		v := l.classify(d, sig)
		st.verdicts[d.ID] = v
		st.edges[d.ID] = l.edges
		if v.Status == StatusSupported {
			st.sigs[d.ID] = sig
		}
	}
	return st
}

func (l *local) classify(d *kotlin.Declaration, sig *Signature) Verdict {
	if d.Name == "" {
		return unsupportedVerdict(diag.UnsEmptyName, "declaration has no name")
	}
	ref := kotlin.Ref{Module: l.id, Decl: d.ID}
	if first, dup := l.table.DuplicateOf(ref); dup && first.Module == l.id {
		return unsupportedVerdict(diag.UnsDuplicateDecl,
			fmt.Sprintf("%s is declared more than once in this module", d.FqName.Dotted()))
	}
	if d.Flags.Has(kotlin.FlagExternal) {
		return unsupportedVerdict(diag.UnsExternal, "external declarations have no Kotlin body to bridge")
	}
	switch d.Kind {
	case kotlin.DeclClass:
		return l.class(d, sig)
	case kotlin.DeclEnum:
		return l.enum(d, sig)
	case kotlin.DeclFunction:
		return l.function(d, sig)
	case kotlin.DeclProperty:
		return l.property(d, sig)
	case kotlin.DeclTypealias:
		return l.typealias(d, sig)
	default:
		return unsupportedVerdict(diag.UnsType, fmt.Sprintf("unknown declaration kind %s", d.Kind))
	}
}

func (l *local) container(d *kotlin.Declaration) *kotlin.Declaration {
	return l.mod.Decl(d.Parent)
}

// mapType maps t and records its dependencies; what names the position for
// the reason text.
func (l *local) mapType(t *kotlin.TypeRef, what string) (swift.TypeID, *Verdict) {
	mapped, err := l.mapper.Map(t)
	l.edges.deps = append(l.edges.deps, mapped.Deps...)
	if err != nil {
		v := l.failure(err, what)
		return swift.NoTypeID, &v
	}
	return mapped.Type, nil
}

func (l *local) typeParams(tps []kotlin.TypeParameter, sig *Signature) *Verdict {
	gps, deps, err := l.mapper.TypeParams(tps)
	l.edges.deps = append(l.edges.deps, deps...)
	if err != nil {
		v := l.failure(err, "type parameters")
		return &v
	}
	sig.Generics = gps
	return nil
}

func (l *local) failure(err error, what string) Verdict {
	if u, ok := typemap.AsUnsupported(err); ok {
		return unsupportedVerdict(u.Code, what+": "+u.Reason)
	}
	return unsupportedVerdict(diag.UnsType, what+": "+err.Error())
}

func (l *local) class(d *kotlin.Declaration, sig *Signature) Verdict {
	switch {
	case d.Flags.Has(kotlin.FlagCompanion):
		return unsupportedVerdict(diag.UnsCompanion, "companion objects are not exported")
	case d.Flags.Has(kotlin.FlagInner):
		return unsupportedVerdict(diag.UnsInnerClass, "inner classes capture their outer instance")
	case d.Modality == kotlin.ModalitySealed:
		return unsupportedVerdict(diag.UnsSealedClass, "sealed hierarchies are not exported")
	case d.Flags.Has(kotlin.FlagValue), d.Flags.Has(kotlin.FlagInline):
		return unsupportedVerdict(diag.UnsValueClass, "value classes are not exported")
	case d.IsInterface() && len(d.TypeParams) > 0:
		return unsupportedVerdict(diag.UnsType, "generic interfaces have no protocol counterpart")
	}
	if c := l.container(d); c != nil && c.Kind == kotlin.DeclClass && c.IsInterface() {
		return unsupportedVerdict(diag.UnsType, "protocols cannot contain nested types")
	}
	if v := l.typeParams(d.TypeParams, sig); v != nil {
		return *v
	}
	return l.supertypes(d, sig)
}

// supertypes splits the supertype list into one superclass and the
// protocol conformances. Interfaces that fail to map are dropped.
func (l *local) supertypes(d *kotlin.Declaration, sig *Signature) Verdict {
	for _, st := range d.Supertypes {
		if st == nil || st.Kind == kotlin.TypeAny {
			continue
		}
		if l.isInterface(st) {
			mapped, err := l.mapper.Map(st)
			if err != nil {
				l.edges.dropped = append(l.edges.dropped, l.failure(err, "conformance to "+st.String()+" dropped").Reason)
				continue
			}
			l.edges.conformances = append(l.edges.conformances, conformance{
				typ:  mapped.Type,
				deps: mapped.Deps,
				src:  st.String(),
			})
			continue
		}
		if d.Kind == kotlin.DeclEnum {
			// kotlin.Enum is implicit in the Swift enum
			continue
		}
		if d.IsInterface() {
			return unsupportedVerdict(diag.UnsSupertype, fmt.Sprintf("interface extends non-interface %s", st))
		}
		if sig.Superclass != swift.NoTypeID {
			return unsupportedVerdict(diag.UnsSupertype, fmt.Sprintf("more than one superclass: %s", st))
		}
		mapped, err := l.mapper.Map(st)
		l.edges.superclass = append(l.edges.superclass, mapped.Deps...)
		if err != nil {
			v := l.failure(err, "superclass "+st.String())
			v.Code = diag.UnsSupertype
			if u, ok := typemap.AsUnsupported(err); ok && u.Code == diag.RefUnresolved {
				v.Code = diag.RefUnresolved
			}
			return v
		}
		sig.Superclass = mapped.Type
	}
	return supported()
}

// isInterface reports whether t names an interface; unresolved names are
// treated as classes so they downgrade the declaration.
func (l *local) isInterface(t *kotlin.TypeRef) bool {
	if t.Kind != kotlin.TypeClass && t.Kind != kotlin.TypeGeneric {
		return false
	}
	ref, err := l.table.Resolve(l.id, t.Name)
	if err != nil {
		return false
	}
	d := l.table.Decl(ref)
	return d != nil && d.Kind == kotlin.DeclClass && d.IsInterface()
}

func (l *local) enum(d *kotlin.Declaration, sig *Signature) Verdict {
	if len(d.TypeParams) > 0 {
		return unsupportedVerdict(diag.UnsEnumTypeParams, "enum classes cannot be generic")
	}
	return l.supertypes(d, sig)
}

func (l *local) function(d *kotlin.Declaration, sig *Signature) Verdict {
	for _, tp := range d.TypeParams {
		if tp.Reified {
			return unsupportedVerdict(diag.UnsReified, fmt.Sprintf("type parameter %s is reified", tp.Name))
		}
	}
	if d.Flags.Has(kotlin.FlagOperator) && !swift.IsIdentifier(d.Name) {
		return unsupportedVerdict(diag.UnsOperatorName, fmt.Sprintf("operator %q has no Swift spelling", d.Name))
	}
	if d.Receiver != nil {
		id, v := l.mapType(d.Receiver, "receiver")
		if v != nil {
			return *v
		}
		sig.Receiver = id
	}
	if v := l.typeParams(d.TypeParams, sig); v != nil {
		return *v
	}
	sig.Params = make([]Param, 0, len(d.ValueParams))
	for _, p := range d.ValueParams {
		id, v := l.mapType(p.Type, "parameter "+p.Name)
		if v != nil {
			return *v
		}
		sig.Params = append(sig.Params, Param{Name: p.Name, Type: id, Vararg: p.Vararg})
	}
	if d.IsConstructor() {
		return supported()
	}
	ret := d.Returns
	if ret == nil {
		ret = kotlin.Primitive("Unit")
	}
	id, v := l.mapType(ret, "return type")
	if v != nil {
		return *v
	}
	sig.Result = id
	sig.NoReturn = ret.Kind == kotlin.TypeNothing
	return supported()
}

func (l *local) property(d *kotlin.Declaration, sig *Signature) Verdict {
	if d.Receiver != nil {
		return unsupportedVerdict(diag.UnsExtensionProperty, "extension properties are not exported")
	}
	if len(d.TypeParams) > 0 {
		return unsupportedVerdict(diag.UnsGenericProperty, "generic properties are not exported")
	}
	id, v := l.mapType(d.Type, "type")
	if v != nil {
		return *v
	}
	sig.Type = id
	return supported()
}

func (l *local) typealias(d *kotlin.Declaration, sig *Signature) Verdict {
	if v := l.typeParams(d.TypeParams, sig); v != nil {
		return *v
	}
	id, v := l.mapType(d.Target, "target")
	if v != nil {
		return *v
	}
	sig.Target = id
	return supported()
}
