package emit

import (
	"sort"
	"strings"

	"klibexport/internal/classify"
	"klibexport/internal/kotlin"
	"klibexport/internal/naming"
	"klibexport/internal/swift"
	"klibexport/internal/typemap"
)

// block is a run of top-level declarations sharing one namespace.
type block struct {
	ns    string
	decls []kotlin.Ref
}

// place describes where a declaration is rendered.
type place struct {
	static   bool // namespace extension member
	protocol bool // protocol requirement
	open     bool // member of an open class
}

// blocks groups the supported top-level declarations of module mid.
func (e *Emitter) blocks(mid kotlin.ModuleID) ([]block, error) {
	m := e.table.Module(mid)
	type entry struct {
		ref kotlin.Ref
		b   naming.Binding
		d   *kotlin.Declaration
	}
	var entries []entry
	for _, d := range m.Decls() {
		if d.Parent.IsValid() {
			continue
		}
		ref := kotlin.Ref{Module: mid, Decl: d.ID}
		if !e.res.Supported(ref) {
			continue
		}
		b, ok := e.reg.Lookup(ref)
		if !ok {
			return nil, internalf("supported declaration %s has no Swift name", d.FqName.Dotted())
		}
		entries = append(entries, entry{ref: ref, b: b, d: d})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.b.Namespace != b.b.Namespace:
			return a.b.Namespace < b.b.Namespace
		case a.b.Name != b.b.Name:
			return a.b.Name < b.b.Name
		case a.d.FqName != b.d.FqName:
			return a.d.FqName < b.d.FqName
		case a.d.Kind != b.d.Kind:
			return a.d.Kind < b.d.Kind
		default:
			return a.d.Signature() < b.d.Signature()
		}
	})

	var out []block
	for _, en := range entries {
		if len(out) == 0 || out[len(out)-1].ns != en.b.Namespace {
			out = append(out, block{ns: en.b.Namespace})
		}
		last := &out[len(out)-1]
		last.decls = append(last.decls, en.ref)
	}
	return out, nil
}

func (e *Emitter) block(blk block) {
	ctx := place{static: blk.ns != ""}
	if blk.ns == "" {
		for _, ref := range blk.decls {
			e.buf.WriteByte('\n')
			e.decl(ref, ctx)
		}
		return
	}
	e.buf.WriteByte('\n')
	e.line("public extension %s {", blk.ns)
	e.depth++
	for i, ref := range blk.decls {
		if i > 0 {
			e.buf.WriteByte('\n')
		}
		e.decl(ref, ctx)
	}
	e.depth--
	e.line("}")
}

func (e *Emitter) decl(ref kotlin.Ref, ctx place) {
	if e.err != nil {
		return
	}
	d := e.table.Decl(ref)
	sig := e.res.Signature(ref)
	if d == nil || sig == nil {
		e.fail(internalf("declaration %s is not supported", ref))
		return
	}
	var name string
	if !d.IsConstructor() {
		b, ok := e.reg.Lookup(ref)
		if !ok {
			e.fail(internalf("supported declaration %s has no Swift name", d.FqName.Dotted()))
			return
		}
		name = b.Name
	}
	switch d.Kind {
	case kotlin.DeclClass:
		switch {
		case d.IsInterface():
			e.protocol(ref, d, sig, name)
		default:
			e.class(ref, d, sig, name)
		}
	case kotlin.DeclEnum:
		e.enum(ref, d, sig, name)
	case kotlin.DeclFunction:
		if d.IsConstructor() {
			e.constructor(ref, d, sig, ctx)
		} else {
			e.function(ref, d, sig, name, ctx)
		}
	case kotlin.DeclProperty:
		e.property(ref, d, sig, name, ctx)
	case kotlin.DeclTypealias:
		e.typealias(ref, d, sig, name)
	default:
		e.fail(internalf("declaration %s has kind %s", d.FqName.Dotted(), d.Kind))
	}
}

// members returns the supported members of d: constructors first, then by
// Swift name, kind and signature.
func (e *Emitter) members(ref kotlin.Ref, d *kotlin.Declaration) []kotlin.Ref {
	type entry struct {
		ref  kotlin.Ref
		d    *kotlin.Declaration
		name string
	}
	var entries []entry
	for _, m := range d.Members {
		mref := kotlin.Ref{Module: ref.Module, Decl: m.ID}
		if !e.res.Supported(mref) {
			continue
		}
		en := entry{ref: mref, d: m}
		if b, ok := e.reg.Lookup(mref); ok {
			en.name = b.Name
		}
		entries = append(entries, en)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.d.IsConstructor() != b.d.IsConstructor() {
			return a.d.IsConstructor()
		}
		if a.name != b.name {
			return a.name < b.name
		}
		if a.d.Kind != b.d.Kind {
			return a.d.Kind < b.d.Kind
		}
		return a.d.Signature() < b.d.Signature()
	})
	out := make([]kotlin.Ref, len(entries))
	for i, en := range entries {
		out[i] = en.ref
	}
	return out
}

func (e *Emitter) body(ref kotlin.Ref, d *kotlin.Declaration, ctx place) {
	e.depth++
	for _, m := range e.members(ref, d) {
		e.decl(m, ctx)
	}
	e.depth--
	e.line("}")
}

func isOpen(d *kotlin.Declaration) bool {
	return d.Modality == kotlin.ModalityOpen || d.Modality == kotlin.ModalityAbstract
}

func (e *Emitter) class(ref kotlin.Ref, d *kotlin.Declaration, sig *classify.Signature, name string) {
	in := e.res.Interner(ref.Module)
	open := isOpen(d) && !d.IsObject()
	head := "public final class "
	if open {
		head = "open class "
	}
	super := "KotlinRuntime.KotlinBase"
	if sig.Superclass != swift.NoTypeID {
		super = e.constraint(in, sig.Superclass, d)
	}
	inherits := append([]string{super}, e.conformances(in, sig, d)...)
	e.line("%s%s%s : %s {", head, name, e.generics(in, sig.Generics, d), strings.Join(inherits, ", "))
	if d.IsObject() {
		e.depth++
		e.line("public static var shared: %s { get { stub() } }", name)
		e.depth--
	}
	e.body(ref, d, place{open: open})
}

func (e *Emitter) protocol(ref kotlin.Ref, d *kotlin.Declaration, sig *classify.Signature, name string) {
	in := e.res.Interner(ref.Module)
	inherits := e.conformances(in, sig, d)
	if len(inherits) == 0 {
		e.line("public protocol %s {", name)
	} else {
		e.line("public protocol %s : %s {", name, strings.Join(inherits, ", "))
	}
	e.body(ref, d, place{protocol: true})
}

func (e *Emitter) enum(ref kotlin.Ref, d *kotlin.Declaration, sig *classify.Signature, name string) {
	in := e.res.Interner(ref.Module)
	inherits := append([]string{"Swift.CaseIterable"}, e.conformances(in, sig, d)...)
	e.line("public enum %s : %s {", name, strings.Join(inherits, ", "))
	e.depth++
	for _, entry := range d.EnumEntries {
		ident, _ := naming.Sanitize(entry)
		e.line("case %s", swift.Escape(ident))
	}
	e.depth--
	e.body(ref, d, place{})
}

func (e *Emitter) conformances(in *swift.Interner, sig *classify.Signature, d *kotlin.Declaration) []string {
	out := make([]string, 0, len(sig.Conformances))
	for _, c := range sig.Conformances {
		out = append(out, e.constraint(in, c, d))
	}
	return out
}

func (e *Emitter) generics(in *swift.Interner, gps []typemap.GenericParam, d *kotlin.Declaration) string {
	if len(gps) == 0 {
		return ""
	}
	parts := make([]string, len(gps))
	for i, gp := range gps {
		parts[i] = gp.Name
		if gp.Bound != swift.NoTypeID {
			parts[i] += ": " + e.constraint(in, gp.Bound, d)
		}
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

func (e *Emitter) params(in *swift.Interner, sig *classify.Signature, d *kotlin.Declaration) string {
	var parts []string
	if sig.Receiver != swift.NoTypeID {
		parts = append(parts, "_ receiver: "+e.typ(in, sig.Receiver, d))
	}
	for _, p := range sig.Params {
		label, _ := naming.Sanitize(p.Name)
		s := swift.Escape(label) + ": " + e.typ(in, p.Type, d)
		if p.Vararg {
			s += "..."
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (e *Emitter) constructor(ref kotlin.Ref, d *kotlin.Declaration, sig *classify.Signature, ctx place) {
	if ctx.protocol {
		return
	}
	in := e.res.Interner(ref.Module)
	e.line("public init%s { stub() }", e.params(in, sig, d))
}

// modifiers spells the access and dispatch keywords of a member.
func modifiers(d *kotlin.Declaration, ctx place) string {
	switch {
	case ctx.protocol:
		return ""
	case ctx.static:
		return "public static "
	case ctx.open && isOpen(d):
		return "open "
	case ctx.open:
		return "public final "
	default:
		return "public "
	}
}

func (e *Emitter) function(ref kotlin.Ref, d *kotlin.Declaration, sig *classify.Signature, name string, ctx place) {
	in := e.res.Interner(ref.Module)
	var sb strings.Builder
	sb.WriteString(modifiers(d, ctx))
	sb.WriteString("func ")
	sb.WriteString(name)
	sb.WriteString(e.generics(in, sig.Generics, d))
	sb.WriteString(e.params(in, sig, d))
	if d.IsSuspend() {
		sb.WriteString(" async")
	}
	if t, ok := in.Lookup(sig.Result); !ok || t.Kind != swift.KindVoid {
		sb.WriteString(" -> ")
		sb.WriteString(e.typ(in, sig.Result, d))
	}
	if !ctx.protocol {
		sb.WriteString(" { stub() }")
	}
	e.line("%s", sb.String())
}

func (e *Emitter) property(ref kotlin.Ref, d *kotlin.Declaration, sig *classify.Signature, name string, ctx place) {
	in := e.res.Interner(ref.Module)
	typ := e.typ(in, sig.Type, d)
	mutable := d.IsVar() && !d.Flags.Has(kotlin.FlagConst)
	switch {
	case ctx.protocol && mutable:
		e.line("var %s: %s { get set }", name, typ)
	case ctx.protocol:
		e.line("var %s: %s { get }", name, typ)
	case mutable:
		e.line("%svar %s: %s { get { stub() } set { stub() } }", modifiers(d, ctx), name, typ)
	default:
		e.line("%svar %s: %s { get { stub() } }", modifiers(d, ctx), name, typ)
	}
}

func (e *Emitter) typealias(ref kotlin.Ref, d *kotlin.Declaration, sig *classify.Signature, name string) {
	in := e.res.Interner(ref.Module)
	e.line("public typealias %s%s = %s", name, e.generics(in, sig.Generics, d), e.typ(in, sig.Target, d))
}

func (e *Emitter) typ(in *swift.Interner, id swift.TypeID, d *kotlin.Declaration) string {
	s, err := in.Render(id, e.names)
	if err != nil {
		e.fail(internalf("%s: %v", d.FqName.Dotted(), err))
	}
	return s
}

func (e *Emitter) constraint(in *swift.Interner, id swift.TypeID, d *kotlin.Declaration) string {
	s, err := in.RenderConstraint(id, e.names)
	if err != nil {
		e.fail(internalf("%s: %v", d.FqName.Dotted(), err))
	}
	return s
}
