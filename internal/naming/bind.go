package naming

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"klibexport/internal/diag"
	"klibexport/internal/kotlin"
	"klibexport/internal/linker"
	"klibexport/internal/swift"
	"klibexport/internal/trace"
)

// Options configure a resolution pass.
type Options struct {
	Policy   Policy
	Reporter diag.Reporter
	Tracer   trace.Tracer
	// Span is the parent trace span of emitted events.
	Span uint64
}

// Bind names every supported declaration of table. Declarations are
// visited in module order, then source name, kind and signature, so the
// first claimant of an identifier is always the same for the same input.
// Constructors are not named.
func Bind(table *linker.Table, supported func(kotlin.Ref) bool, opts Options) *Registry {
	r := opts.Reporter
	if r == nil {
		r = diag.NopReporter{}
	}
	tr := opts.Tracer
	if tr == nil {
		tr = trace.Nop
	}
	reg := NewRegistry()
	// namespaces first: a declaration never takes a namespace's name
	for i, m := range table.Modules() {
		module, _ := Sanitize(m.DisplayName())
		reg.claimNamespaces(table, kotlin.ModuleID(i), module, supported, opts.Policy)
	}
	for i, m := range table.Modules() {
		mid := kotlin.ModuleID(i)
		module, _ := Sanitize(m.DisplayName())
		for _, ref := range candidates(table, mid, supported) {
			d := table.Decl(ref)
			ns, ok := reg.namespaceOf(d, ref, opts.Policy)
			if !ok {
				// container was not bound; the member is never emitted
				continue
			}
			ident, sanitized := Sanitize(d.Name)
			subject := table.Subject(ref)
			if sanitized {
				diag.ReportInfo(r, diag.NameSanitized, subject,
					fmt.Sprintf("%s is not a Swift identifier, using %s", d.Name, ident)).Emit()
			}

			granted, prev := reg.Claim(ns, ident, Claimant{
				Ref:    ref,
				Module: module,
				Kind:   d.Kind,
				Params: overloadKey(d),
			})
			b := Binding{Namespace: ns, Name: swift.Escape(granted), Renamed: prev != nil}
			reg.bind(ref, b)

			reason := "direct"
			switch {
			case prev != nil && prev.Namespace:
				path := joinPath(ns, swift.Escape(ident))
				reason = "collides with namespace " + path
				diag.ReportInfo(r, diag.NameCollision, subject,
					fmt.Sprintf("%s renamed to %s: namespace %s already uses the name", d.Name, b.Qualified(), path)).Emit()
				trace.Point(tr, trace.ScopeDecl, "name collision", ident+" -> "+granted, opts.Span)
			case prev != nil:
				other := table.Subject(prev.Ref)
				reason = "collides with " + other.String()
				diag.ReportInfo(r, diag.NameCollision, subject,
					fmt.Sprintf("%s renamed to %s: %s already uses %s", d.Name, b.Qualified(), other, joinPath(ns, swift.Escape(ident)))).
					WithNote(other, "first declaration keeps the name").
					Emit()
				trace.Point(tr, trace.ScopeDecl, "name collision", ident+" -> "+granted, opts.Span)
			case b.Name != granted:
				reason = "escaped"
				diag.ReportInfo(r, diag.NameEscaped, subject,
					fmt.Sprintf("%s is a Swift keyword, emitted as %s", granted, b.Name)).Emit()
			case sanitized:
				reason = "sanitized"
			}
			reg.log = append(reg.log, LogEntry{
				Module: m.Name,
				Source: d.FqName.Dotted(),
				Swift:  m.DisplayName() + "." + b.Qualified(),
				Reason: reason,
			})
		}
	}
	return reg
}

// claimNamespaces reserves every segment of the namespaces module mid
// emits into, each in its parent namespace.
func (r *Registry) claimNamespaces(table *linker.Table, mid kotlin.ModuleID, module string, supported func(kotlin.Ref) bool, p Policy) {
	seen := make(map[string]bool)
	for _, d := range table.Module(mid).Decls() {
		if d.Parent.IsValid() || d.IsConstructor() || !supported(kotlin.Ref{Module: mid, Decl: d.ID}) {
			continue
		}
		ns := p.Namespace(d.Package())
		if ns == "" || seen[ns] {
			continue
		}
		seen[ns] = true
		parent := ""
		for _, seg := range strings.Split(ns, ".") {
			r.Claim(parent, strings.Trim(seg, "`"), Claimant{Module: module, Namespace: true})
			parent = joinPath(parent, seg)
		}
	}
}

// candidates lists the nameable declarations of one module in claim order.
func candidates(table *linker.Table, mid kotlin.ModuleID, supported func(kotlin.Ref) bool) []kotlin.Ref {
	m := table.Module(mid)
	var out []kotlin.Ref
	for _, d := range m.Decls() {
		ref := kotlin.Ref{Module: mid, Decl: d.ID}
		if d.IsConstructor() || !supported(ref) {
			continue
		}
		out = append(out, ref)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := m.Decl(out[i].Decl), m.Decl(out[j].Decl)
		if di.FqName != dj.FqName {
			return di.FqName < dj.FqName
		}
		if di.Kind != dj.Kind {
			return di.Kind < dj.Kind
		}
		return di.Signature() < dj.Signature()
	})
	return out
}

// namespaceOf is the container's qualified name for members and the policy
// namespace of the package otherwise.
func (r *Registry) namespaceOf(d *kotlin.Declaration, ref kotlin.Ref, p Policy) (string, bool) {
	if !d.Parent.IsValid() {
		return p.Namespace(d.Package()), true
	}
	parent, ok := r.Lookup(kotlin.Ref{Module: ref.Module, Decl: d.Parent})
	if !ok {
		return "", false
	}
	return parent.Qualified(), true
}

// overloadKey identifies a function's parameter list for overloading:
// receiver, labels and parameter types.
func overloadKey(d *kotlin.Declaration) string {
	if d.Kind != kotlin.DeclFunction {
		return ""
	}
	var sb strings.Builder
	if d.Receiver != nil {
		sb.WriteString("receiver: ")
		sb.WriteString(d.Receiver.String())
		sb.WriteString(", ")
	}
	for _, p := range d.ValueParams {
		sb.WriteString(p.Name)
		sb.WriteString(": ")
		if p.Vararg {
			sb.WriteString("vararg ")
		}
		sb.WriteString(p.Type.String())
		sb.WriteString(", ")
	}
	return sb.String()
}

// WriteLog writes the binding log as tab separated lines.
func (r *Registry) WriteLog(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range r.log {
		if _, err := fmt.Fprintln(bw, e.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
