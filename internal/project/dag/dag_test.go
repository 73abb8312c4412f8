package dag

import (
	"testing"

	"klibexport/internal/diag"
	"klibexport/internal/project"
)

func TestBuildIndexIncludesDepends(t *testing.T) {
	metas := []project.ModuleMeta{
		{Name: "app", Depends: []string{"stdlib", "lib"}},
		{Name: "lib"},
	}

	idx := BuildIndex(metas)

	wantNames := []string{"app", "lib", "stdlib"}
	if len(idx.IDToName) != len(wantNames) {
		t.Fatalf("unexpected module count: %d", len(idx.IDToName))
	}
	for i, want := range wantNames {
		if got := idx.IDToName[i]; got != want {
			t.Fatalf("idx.IDToName[%d] = %q, want %q", i, got, want)
		}
		if id, ok := idx.NameToID[want]; !ok || int(id) != i {
			t.Fatalf("idx.NameToID[%q] = %v, want %d", want, id, i)
		}
	}
}

func TestBuildGraphReportsMissingDependencies(t *testing.T) {
	appMeta := project.ModuleMeta{Name: "app", Depends: []string{"core", "util"}}
	coreMeta := project.ModuleMeta{Name: "core", Depends: []string{"util"}}

	bagApp := diag.NewBag(10)
	bagCore := diag.NewBag(10)

	nodes := []ModuleNode{
		{Meta: appMeta, Reporter: &diag.BagReporter{Bag: bagApp}},
		{Meta: coreMeta, Reporter: &diag.BagReporter{Bag: bagCore}},
	}
	idx := BuildIndex([]project.ModuleMeta{appMeta, coreMeta})
	graph, slots := BuildGraph(idx, nodes)

	appID := idx.NameToID["app"]
	coreID := idx.NameToID["core"]
	utilID := idx.NameToID["util"]

	if deps := graph.Edges[int(coreID)]; len(deps) != 1 || deps[0] != appID {
		t.Fatalf("core dependents = %v, want [%v]", deps, appID)
	}
	if len(graph.Edges[int(utilID)]) != 0 {
		t.Fatalf("missing module must not carry edges: %v", graph.Edges[int(utilID)])
	}
	if !graph.Present[int(appID)] || !graph.Present[int(coreID)] || graph.Present[int(utilID)] {
		t.Fatalf("unexpected Present flags: %v", graph.Present)
	}
	if graph.Indeg[int(appID)] != 1 || graph.Indeg[int(coreID)] != 0 {
		t.Fatalf("unexpected indegrees: %v", graph.Indeg)
	}

	if bagApp.Len() != 1 || bagApp.Items()[0].Code != diag.RefMissingDependency {
		t.Fatalf("app diagnostics = %v", bagApp.Items())
	}
	if bagApp.Items()[0].Severity != diag.SevInfo {
		t.Fatalf("missing dependency must be informational")
	}
	if bagCore.Len() != 1 {
		t.Fatalf("core diagnostics = %d, want 1", bagCore.Len())
	}
	if got := slots[int(appID)].Missing; len(got) != 1 || got[0] != "util" {
		t.Fatalf("app missing = %v", got)
	}
}

func TestBuildGraphDuplicateModules(t *testing.T) {
	metaA := project.ModuleMeta{Name: "dup", Path: "a.klib"}
	metaB := project.ModuleMeta{Name: "dup", Path: "b.klib"}

	bagA := diag.NewBag(10)
	bagB := diag.NewBag(10)

	nodes := []ModuleNode{
		{Meta: metaA, Reporter: &diag.BagReporter{Bag: bagA}},
		{Meta: metaB, Reporter: &diag.BagReporter{Bag: bagB}},
	}

	idx := BuildIndex([]project.ModuleMeta{metaA, metaB})
	graph, slots := BuildGraph(idx, nodes)

	if !graph.Present[idx.NameToID["dup"]] {
		t.Fatalf("expected module to be present")
	}
	if bagA.Len() != 0 {
		t.Fatalf("unexpected diagnostics for first module: %v", bagA.Items())
	}
	if bagB.Len() != 1 || bagB.Items()[0].Code != diag.ReadDuplicateModule {
		t.Fatalf("duplicate diagnostics = %v", bagB.Items())
	}

	// ensure slots keep original metadata
	slot := slots[int(idx.NameToID["dup"])]
	if !slot.Present || slot.Meta.Path != "a.klib" {
		t.Fatalf("expected slot to hold first module metadata")
	}
}

func TestToposortKahnDependenciesFirst(t *testing.T) {
	metas := []project.ModuleMeta{
		{Name: "b", Depends: []string{"c"}},
		{Name: "a"},
		{Name: "c"},
	}
	nodes := make([]ModuleNode, len(metas))
	for i, m := range metas {
		nodes[i] = ModuleNode{Meta: m}
	}

	idx := BuildIndex(metas)
	graph, _ := BuildGraph(idx, nodes)

	topo := ToposortKahn(graph)
	if topo.Cyclic {
		t.Fatalf("expected acyclic graph")
	}

	order := idx.Names(topo.Order)
	wantOrder := []string{"a", "c", "b"}
	for i, want := range wantOrder {
		if order[i] != want {
			t.Fatalf("order = %v, want %v", order, wantOrder)
		}
	}
	if len(topo.Batches) != 2 || len(topo.Batches[0]) != 2 || len(topo.Batches[1]) != 1 {
		t.Fatalf("batches = %v", topo.Batches)
	}
}

func TestToposortIndependentOfInputOrder(t *testing.T) {
	build := func(metas []project.ModuleMeta) []string {
		nodes := make([]ModuleNode, len(metas))
		for i, m := range metas {
			nodes[i] = ModuleNode{Meta: m}
		}
		idx := BuildIndex(metas)
		g, _ := BuildGraph(idx, nodes)
		return idx.Names(ToposortKahn(g).Order)
	}
	x := project.ModuleMeta{Name: "x"}
	y := project.ModuleMeta{Name: "y"}
	z := project.ModuleMeta{Name: "z", Depends: []string{"y"}}

	first := build([]project.ModuleMeta{x, y, z})
	second := build([]project.ModuleMeta{z, y, x})
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("order depends on input: %v vs %v", first, second)
		}
	}
}

func TestReportCycles(t *testing.T) {
	metaA := project.ModuleMeta{Name: "a", Depends: []string{"b"}}
	metaB := project.ModuleMeta{Name: "b", Depends: []string{"a"}}

	bagA := diag.NewBag(10)
	bagB := diag.NewBag(10)

	nodes := []ModuleNode{
		{Meta: metaA, Reporter: &diag.BagReporter{Bag: bagA}},
		{Meta: metaB, Reporter: &diag.BagReporter{Bag: bagB}},
	}

	idx := BuildIndex([]project.ModuleMeta{metaA, metaB})
	graph, slots := BuildGraph(idx, nodes)

	topo := ToposortKahn(graph)
	if !topo.Cyclic || len(topo.Cycles) != 2 {
		t.Fatalf("expected cycle with two modules, got %+v", topo)
	}

	ReportCycles(idx, slots, topo)

	if bagA.Len() != 1 || bagA.Items()[0].Code != diag.ConfDependencyCycle {
		t.Fatalf("module a diagnostics = %v", bagA.Items())
	}
	if bagB.Len() != 1 || bagB.Items()[0].Code != diag.ConfDependencyCycle {
		t.Fatalf("module b diagnostics = %v", bagB.Items())
	}
}

func TestDependents(t *testing.T) {
	metas := []project.ModuleMeta{
		{Name: "base"},
		{Name: "mid", Depends: []string{"base"}},
		{Name: "top", Depends: []string{"mid"}},
		{Name: "other"},
	}
	nodes := make([]ModuleNode, len(metas))
	for i, m := range metas {
		nodes[i] = ModuleNode{Meta: m}
	}
	idx := BuildIndex(metas)
	g, _ := BuildGraph(idx, nodes)
	got := idx.Names(g.Dependents(idx.NameToID["base"]))
	if len(got) != 2 || got[0] != "mid" || got[1] != "top" {
		t.Fatalf("dependents = %v", got)
	}
}
