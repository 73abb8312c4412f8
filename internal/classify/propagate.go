package classify

import (
	"fmt"

	"klibexport/internal/diag"
	"klibexport/internal/kotlin"
	"klibexport/internal/trace"
)

// propagate downgrades declarations until a fixpoint is reached and
// returns the number of rounds. Statuses only move from supported to
// unsupported, so the loop terminates.
func (r *Result) propagate(tr trace.Tracer, span uint64) int {
	rounds := 0
	for changed := true; changed; {
		changed = false
		rounds++
		for i := range r.modules {
			mid := kotlin.ModuleID(i)
			st := &r.modules[i]
			m := r.table.Module(mid)
			// Seal order visits containers before their members
			for _, d := range m.Decls() {
				v := &st.verdicts[d.ID]
				if v.Status != StatusSupported {
					continue
				}
				if d.Parent.IsValid() && st.verdicts[d.Parent].Status == StatusUnsupported {
					parent := m.Decl(d.Parent)
					*v = unsupportedVerdict(diag.UnsMemberOfUnsupported,
						fmt.Sprintf("member of unsupported %s", parent.FqName.Dotted()))
					changed = true
					continue
				}
				e := &st.edges[d.ID]
				if bad, ok := r.firstBad(e.superclass); ok {
					*v = unsupportedVerdict(diag.UnsSupertype, "superclass "+r.describe(bad))
					changed = true
					trace.Point(tr, trace.ScopeDecl, "downgrade", d.FqName.Dotted(), span)
					continue
				}
				if _, ok := r.firstBad(e.deps); ok {
					*v = unsupportedVerdict(diag.UnsDependency, "")
					changed = true
					trace.Point(tr, trace.ScopeDecl, "downgrade", d.FqName.Dotted(), span)
				}
			}
		}
	}
	r.settle()
	return rounds
}

// settle fixes the final reasons: a dependency downgrade names the first
// offending reference in declaration order as of the fixpoint, and
// conformances to unsupported interfaces are dropped.
func (r *Result) settle() {
	for i := range r.modules {
		st := &r.modules[i]
		for id := 1; id < len(st.verdicts); id++ {
			v := &st.verdicts[id]
			e := &st.edges[id]
			switch v.Status {
			case StatusUnsupported:
				if v.Code != diag.UnsDependency {
					continue
				}
				bad, _ := r.firstBad(e.deps)
				v.Reason = "depends on " + r.describe(bad)
			case StatusSupported:
				sig := st.sigs[id]
				kept := e.conformances[:0]
				for _, c := range e.conformances {
					if bad, ok := r.firstBad(c.deps); ok {
						e.dropped = append(e.dropped,
							fmt.Sprintf("conformance to %s dropped: %s", c.src, r.describe(bad)))
						continue
					}
					kept = append(kept, c)
				}
				e.conformances = kept
				for _, c := range kept {
					sig.Conformances = append(sig.Conformances, c.typ)
				}
			}
		}
	}
}

func (r *Result) firstBad(refs []kotlin.Ref) (kotlin.Ref, bool) {
	for _, ref := range refs {
		if r.Verdict(ref).Status != StatusSupported {
			return ref, true
		}
	}
	return kotlin.Ref{}, false
}

// describe names ref and why it is not available.
func (r *Result) describe(ref kotlin.Ref) string {
	d := r.table.Decl(ref)
	if d == nil {
		return "unknown declaration " + ref.String()
	}
	name := d.FqName.Dotted()
	v := r.Verdict(ref)
	switch v.Status {
	case StatusHidden:
		return fmt.Sprintf("non-public %s", name)
	case StatusUnsupported:
		if v.Code == diag.UnsMemberOfUnsupported || v.Reason == "" {
			return fmt.Sprintf("unsupported %s", name)
		}
		return fmt.Sprintf("unsupported %s (%s)", name, v.Reason)
	default:
		return name
	}
}
