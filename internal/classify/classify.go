package classify

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"klibexport/internal/diag"
	"klibexport/internal/kotlin"
	"klibexport/internal/linker"
	"klibexport/internal/swift"
	"klibexport/internal/trace"
)

// Options configure a classification run.
type Options struct {
	// Jobs limits parallel modules in the local pass; <= 0 means GOMAXPROCS.
	Jobs     int
	Reporter diag.Reporter
	Tracer   trace.Tracer
	Span     uint64
	// OnModule is called from worker goroutines when a module's local pass
	// starts; it must be safe for concurrent use.
	OnModule func(name string)
}

// conformance is an interface supertype kept until propagation decides
// whether it survives.
type conformance struct {
	typ  swift.TypeID
	deps []kotlin.Ref
	src  string
}

// edges are the dependency edges of one declaration.
type edges struct {
	deps         []kotlin.Ref
	superclass   []kotlin.Ref
	conformances []conformance
	// dropped are interface supertypes that failed to map locally.
	dropped []string
}

type moduleState struct {
	interner *swift.Interner
	verdicts []Verdict // indexed by DeclID
	sigs     []*Signature
	edges    []edges
}

// Result holds the frozen classification of every loaded declaration.
type Result struct {
	table   *linker.Table
	modules []moduleState
	hidden  [][]bool
}

// Classify runs both passes over table. The only error is cancellation.
func Classify(ctx context.Context, table *linker.Table, opts Options) (*Result, error) {
	r := opts.Reporter
	if r == nil {
		r = diag.NopReporter{}
	}
	tr := opts.Tracer
	if tr == nil {
		tr = trace.Nop
	}
	mods := table.Modules()
	res := &Result{
		table:   table,
		modules: make([]moduleState, len(mods)),
		hidden:  make([][]bool, len(mods)),
	}
	for i, m := range mods {
		res.hidden[i] = hiddenTable(m)
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	local := trace.Begin(tr, trace.ScopePass, "classify/local", opts.Span)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(mods))))
	for i, m := range mods {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if opts.OnModule != nil {
				opts.OnModule(m.Name)
			}
			span := trace.Begin(tr, trace.ScopeModule, "module:"+m.Name, local.ID())
			// индекс i уникален для горутины, мьютекс не нужен
			res.modules[i] = res.localModule(kotlin.ModuleID(i), m)
			span.End("")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		local.End("cancelled")
		return nil, err
	}
	local.End("")

	prop := trace.Begin(tr, trace.ScopePass, "classify/propagate", opts.Span)
	rounds := res.propagate(tr, prop.ID())
	prop.WithExtra("rounds", fmt.Sprint(rounds)).End("")

	res.report(r)
	return res, nil
}

// hiddenTable marks declarations outside the public surface. Seal order
// puts containers before members.
func hiddenTable(m *kotlin.Module) []bool {
	out := make([]bool, m.Len()+1)
	for _, d := range m.Decls() {
		parent := m.Decl(d.Parent)
		switch {
		case parent != nil && out[parent.ID]:
			out[d.ID] = true
		case d.Flags.Has(kotlin.FlagExpect), d.Flags.Has(kotlin.FlagSynthetic):
			out[d.ID] = true
		case d.Visibility == kotlin.VisibilityPrivate, d.Visibility == kotlin.VisibilityInternal:
			out[d.ID] = true
		case d.Visibility == kotlin.VisibilityProtected:
			// protected members are reachable only through subclasses
			out[d.ID] = parent == nil || !subclassable(parent)
		}
	}
	return out
}

func subclassable(d *kotlin.Declaration) bool {
	return d.Kind == kotlin.DeclClass && !d.IsInterface() && !d.IsObject() &&
		(d.Modality == kotlin.ModalityOpen || d.Modality == kotlin.ModalityAbstract)
}

func (r *Result) state(ref kotlin.Ref) (*moduleState, bool) {
	if int(ref.Module) >= len(r.modules) {
		return nil, false
	}
	st := &r.modules[ref.Module]
	if int(ref.Decl) >= len(st.verdicts) || !ref.Decl.IsValid() {
		return nil, false
	}
	return st, true
}

// Verdict returns the classification of ref. Unknown refs are unsupported.
func (r *Result) Verdict(ref kotlin.Ref) Verdict {
	st, ok := r.state(ref)
	if !ok {
		return unsupportedVerdict(diag.RefUnresolved, "unknown declaration "+ref.String())
	}
	return st.verdicts[ref.Decl]
}

// Supported reports whether ref is part of the emitted interface.
func (r *Result) Supported(ref kotlin.Ref) bool {
	return r.Verdict(ref).Status == StatusSupported
}

// Signature returns the mapped signature of a supported declaration.
func (r *Result) Signature(ref kotlin.Ref) *Signature {
	st, ok := r.state(ref)
	if !ok || st.verdicts[ref.Decl].Status != StatusSupported {
		return nil
	}
	return st.sigs[ref.Decl]
}

// Interner returns the type interner of module id.
func (r *Result) Interner(id kotlin.ModuleID) *swift.Interner {
	if int(id) >= len(r.modules) {
		return nil
	}
	return r.modules[id].interner
}

// Table returns the linked program the result describes.
func (r *Result) Table() *linker.Table { return r.table }

// Counts tallies statuses of module id.
func (r *Result) Counts(id kotlin.ModuleID) map[Status]int {
	out := make(map[Status]int, 3)
	if int(id) >= len(r.modules) {
		return out
	}
	for _, v := range r.modules[id].verdicts[1:] {
		out[v.Status]++
	}
	return out
}

// severity of unsupported findings depends on whether the module is emitted.
func (r *Result) severity(id kotlin.ModuleID) diag.Severity {
	if m := r.table.Module(id); m != nil && m.Exported {
		return diag.SevWarning
	}
	return diag.SevInfo
}

// report sends every finding to rep in module and declaration order.
// Members of an unsupported container are reported too, with their own
// reason when they failed locally.
func (r *Result) report(rep diag.Reporter) {
	for i, st := range r.modules {
		mid := kotlin.ModuleID(i)
		sev := r.severity(mid)
		for id := 1; id < len(st.verdicts); id++ {
			ref := kotlin.Ref{Module: mid, Decl: kotlin.DeclID(id)}
			v := st.verdicts[id]
			subject := r.table.Subject(ref)
			if v.Status == StatusUnsupported {
				diag.NewReportBuilder(rep, sev, v.Code, subject, v.Reason).Emit()
			}
			if v.Status != StatusSupported {
				continue
			}
			for _, msg := range st.edges[id].dropped {
				diag.NewReportBuilder(rep, sev, diag.UnsConformanceDropped, subject, msg).Emit()
			}
		}
	}
}
