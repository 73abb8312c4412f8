package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"klibexport/internal/buildpipeline"
	"klibexport/internal/classify"
	"klibexport/internal/diag"
	"klibexport/internal/emit"
	"klibexport/internal/klib"
	"klibexport/internal/kotlin"
	"klibexport/internal/linker"
	"klibexport/internal/naming"
	"klibexport/internal/observ"
	"klibexport/internal/project"
	"klibexport/internal/trace"
)

// Input is one klib to load.
type Input struct {
	Path string
	// Exported modules get a Swift unit; the rest only resolve references.
	Exported  bool
	SwiftName string
}

// Request describes one export run.
type Request struct {
	Inputs       []Input
	Policy       naming.Policy
	SingleModule bool
	ModuleName   string
	// Component overrides the klib component directory.
	Component string
	// Jobs limits parallel loading and classification; <= 0 means GOMAXPROCS.
	Jobs           int
	MaxDiagnostics int
	// Timings appends an OB6001 diagnostic with the phase report.
	Timings bool

	// Cache и Memo необязательны.
	Cache    *DiskCache
	Memo     *ModuleCache
	Tracer   trace.Tracer
	Progress buildpipeline.ProgressSink
	Observer PhaseObserver
}

// PhaseStatus tells whether a PhaseEvent opens or closes a phase.
type PhaseStatus int

const (
	PhaseStart PhaseStatus = iota
	PhaseEnd
)

// PhaseEvent marks a phase boundary. Elapsed and Err are set on PhaseEnd.
type PhaseEvent struct {
	Name    string
	Stage   buildpipeline.Stage
	Status  PhaseStatus
	Elapsed time.Duration
	Err     error
}

// PhaseObserver is called synchronously from Run.
type PhaseObserver func(PhaseEvent)

// Result is everything a successful run produced.
type Result struct {
	Table          *linker.Table
	Classification *classify.Result
	Names          *naming.Registry
	Units          []emit.Unit
	Bag            *diag.Bag
	// ModuleHashes follow Table order.
	ModuleHashes []project.Digest
	Timings      observ.Report
	Stages       buildpipeline.Timings
	// CacheHits counts modules served by Memo or Cache.
	CacheHits int
}

// Inputs returns the aggregate module hashes as hex strings, the stable
// identity of the run.
func (r *Result) Inputs() []string {
	out := make([]string, len(r.ModuleHashes))
	for i, h := range r.ModuleHashes {
		out[i] = h.Hex()
	}
	return out
}

type runner struct {
	req    Request
	tracer trace.Tracer
	bag    *diag.Bag
	timer  *observ.Timer
	span   *trace.Span
	// modules by unique name -> input path, for progress events
	paths  map[string]string
	stages buildpipeline.Timings
	hits   int
	mu     sync.Mutex
}

// Run executes load → link → validate → classify → names → emit.
// Fatal errors return (nil, err): klib.ErrRead for unreadable inputs,
// project.ErrConfiguration for cycles and bad overrides, emit.ErrInternal
// for emitter invariant violations, or the context error.
func Run(ctx context.Context, req Request) (*Result, error) {
	tr := req.Tracer
	if tr == nil {
		tr = trace.FromContext(ctx)
	}
	r := &runner{
		req:    req,
		tracer: tr,
		bag:    diag.NewBag(req.MaxDiagnostics),
		timer:  observ.NewTimer(),
		paths:  make(map[string]string, len(req.Inputs)),
	}
	r.span = trace.Begin(tr, trace.ScopeDriver, "export", 0).
		WithExtra("inputs", fmt.Sprint(len(req.Inputs)))
	ctx = trace.WithTracer(ctx, tr)

	res, err := r.run(ctx)
	if err != nil {
		r.span.End("error")
		return nil, err
	}
	r.span.End("")
	return res, nil
}

func (r *runner) run(ctx context.Context) (*Result, error) {
	if len(r.req.Inputs) == 0 {
		err := errors.WithHint(errors.New("no input klibs"),
			"pass klib paths on the command line or list them as [[module]] entries")
		return nil, errors.Mark(err, project.ErrConfiguration)
	}
	for _, in := range r.req.Inputs {
		r.event(in.Path, buildpipeline.StageLoad, buildpipeline.StatusQueued, nil, 0)
	}

	mods, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	// одинаковые отчёты схлопываются
	reporter := diag.NewDedupReporter(diag.BagReporter{Bag: r.bag})

	// барьер: связывание видит только полностью загруженные модули
	ph := r.begin("link", buildpipeline.StageLink)
	table, err := linker.Link(mods, reporter)
	if err == nil {
		err = r.req.Policy.Validate(table.Modules())
	}
	r.end(ph, err, fmt.Sprintf("%d modules", len(mods)))
	if err != nil {
		return nil, err
	}
	if !anyExported(table.Modules()) {
		r.bag.Add(diag.New(diag.SevWarning, diag.ConfNoExported, diag.Subject{},
			"no module is marked exported; nothing to emit"))
	}

	ph = r.begin("classify", buildpipeline.StageClassify)
	classes, err := classify.Classify(ctx, table, classify.Options{
		Jobs:     r.req.Jobs,
		Reporter: reporter,
		Tracer:   r.tracer,
		Span:     r.span.ID(),
		OnModule: func(name string) {
			r.event(r.paths[name], buildpipeline.StageClassify, buildpipeline.StatusWorking, nil, 0)
		},
	})
	r.end(ph, err, "")
	if err != nil {
		return nil, err
	}

	ph = r.begin("names", buildpipeline.StageNames)
	names := naming.Bind(table, classes.Supported, naming.Options{
		Policy:   r.req.Policy,
		Reporter: reporter,
		Tracer:   r.tracer,
		Span:     r.span.ID(),
	})
	r.end(ph, nil, fmt.Sprintf("%d bindings", names.Len()))

	ph = r.begin("emit", buildpipeline.StageEmit)
	units, err := emit.Emit(classes, names, emit.Options{
		SingleModule: r.req.SingleModule,
		ModuleName:   r.req.ModuleName,
	})
	r.end(ph, err, fmt.Sprintf("%d units", len(units)))
	if err != nil {
		return nil, err
	}

	res := &Result{
		Table:          table,
		Classification: classes,
		Names:          names,
		Units:          units,
		Bag:            r.bag,
		ModuleHashes:   ComputeModuleHashes(table),
		Timings:        r.timer.Report(),
		Stages:         r.stages,
		CacheHits:      r.hits,
	}
	if r.req.Timings {
		appendTimingDiagnostic(r.bag, timingReport{
			Kind:    "export",
			Modules: len(mods),
			Cached:  r.hits,
			Report:  res.Timings,
		})
	}
	r.bag.Sort()
	for _, in := range r.req.Inputs {
		r.event(in.Path, buildpipeline.StageEmit, buildpipeline.StatusDone, nil, 0)
	}
	return res, nil
}

// load decodes every input in parallel. The first failure cancels the rest.
func (r *runner) load(ctx context.Context) ([]*kotlin.Module, error) {
	ph := phase{idx: r.timer.Begin("load"), name: "load", stage: buildpipeline.StageLoad, started: time.Now()}
	r.observe(PhaseEvent{Name: "load", Stage: buildpipeline.StageLoad, Status: PhaseStart})
	span := trace.Begin(r.tracer, trace.ScopePass, "load", r.span.ID())

	jobs := r.req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	mods := make([]*kotlin.Module, len(r.req.Inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(r.req.Inputs))))
	for i, in := range r.req.Inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t0 := time.Now()
			r.event(in.Path, buildpipeline.StageLoad, buildpipeline.StatusWorking, nil, 0)
			m, err := r.loadOne(gctx, in, span.ID())
			if err != nil {
				r.event(in.Path, buildpipeline.StageLoad, buildpipeline.StatusError, err, time.Since(t0))
				return err
			}
			// индекс i уникален для горутины
			mods[i] = m
			r.event(in.Path, buildpipeline.StageLoad, buildpipeline.StatusDone, nil, time.Since(t0))
			return nil
		})
	}
	err := g.Wait()
	note := fmt.Sprintf("%d modules", len(mods))
	if err != nil {
		note = "error"
	}
	span.End(note)
	r.timer.End(ph.idx, note)
	r.stages.Set(buildpipeline.StageLoad, time.Since(ph.started))
	r.observe(PhaseEvent{Name: "load", Stage: buildpipeline.StageLoad, Status: PhaseEnd, Elapsed: time.Since(ph.started), Err: err})
	if err != nil {
		return nil, err
	}
	for i, m := range mods {
		r.paths[m.Name] = r.req.Inputs[i].Path
	}
	return mods, nil
}

func (r *runner) loadOne(ctx context.Context, in Input, parent uint64) (*kotlin.Module, error) {
	span := trace.Begin(r.tracer, trace.ScopeModule, "module:"+filepath.Base(in.Path), parent)
	lib, err := klib.Open(in.Path)
	if err != nil {
		span.End("error")
		return nil, err
	}
	opts := klib.Options{Component: r.req.Component}

	m, source := r.cached(lib, opts.Component)
	if m == nil {
		m, err = lib.Load(ctx, opts)
		if err != nil {
			span.End("error")
			return nil, err
		}
		source = "decoded"
		r.req.Memo.Put(m)
		if err := r.req.Cache.Put(CacheKey(lib.Hash, opts.Component), opts.Component, m); err != nil {
			// кеш - оптимизация, ошибка записи не фатальна
			trace.Point(r.tracer, trace.ScopeModule, "cache-write-failed", err.Error(), span.ID())
		}
	} else {
		// копия, чтобы не трогать закешированное значение
		cp := *m
		m = &cp
	}
	m.Path = in.Path
	m.Exported = in.Exported
	m.SwiftName = in.SwiftName
	span.WithExtra("module", m.Name).End(source)
	return m, nil
}

// cached consults the in-memory cache first, then the disk cache.
func (r *runner) cached(lib *klib.Library, component string) (*kotlin.Module, string) {
	if m, ok := r.req.Memo.Get(lib.Path, lib.Hash); ok {
		r.hit()
		return m, "memo"
	}
	m, ok, err := r.req.Cache.Get(CacheKey(lib.Hash, component), component)
	if err != nil || !ok {
		return nil, ""
	}
	m.Path = lib.Path
	r.req.Memo.Put(m)
	r.hit()
	return m, "disk"
}

func (r *runner) hit() {
	r.mu.Lock()
	r.hits++
	r.mu.Unlock()
}

// phase pairs a timer slot with its wall-clock start.
type phase struct {
	idx     int
	name    string
	stage   buildpipeline.Stage
	started time.Time
}

func (r *runner) begin(name string, stage buildpipeline.Stage) phase {
	r.observe(PhaseEvent{Name: name, Stage: stage, Status: PhaseStart})
	for _, in := range r.req.Inputs {
		r.event(in.Path, stage, buildpipeline.StatusWorking, nil, 0)
	}
	return phase{idx: r.timer.Begin(name), name: name, stage: stage, started: time.Now()}
}

func (r *runner) end(p phase, err error, note string) {
	if err != nil {
		note = "error"
	}
	r.timer.End(p.idx, note)
	elapsed := time.Since(p.started)
	r.stages.Set(p.stage, elapsed)
	r.observe(PhaseEvent{Name: p.name, Stage: p.stage, Status: PhaseEnd, Elapsed: elapsed, Err: err})
	if err == nil {
		return
	}
	for _, in := range r.req.Inputs {
		r.event(in.Path, p.stage, buildpipeline.StatusError, err, elapsed)
	}
}

func (r *runner) event(path string, stage buildpipeline.Stage, status buildpipeline.Status, err error, elapsed time.Duration) {
	if r.req.Progress == nil {
		return
	}
	r.req.Progress.OnEvent(buildpipeline.Event{
		Module:  path,
		Stage:   stage,
		Status:  status,
		Err:     err,
		Elapsed: elapsed,
	})
}

func (r *runner) observe(ev PhaseEvent) {
	if r.req.Observer != nil {
		r.req.Observer(ev)
	}
}

func anyExported(mods []*kotlin.Module) bool {
	for _, m := range mods {
		if m.Exported {
			return true
		}
	}
	return false
}
