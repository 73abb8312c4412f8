package dag

import (
	"fmt"
	"slices"
	"strings"

	"klibexport/internal/diag"
	"klibexport/internal/project"
)

// Graph stores dependency edges oriented dependency -> dependent, so a
// Kahn traversal yields dependencies before the modules that use them.
type Graph struct {
	Edges   [][]ModuleID // Edges[dep] = []dependent
	Indeg   []int        // входящие степени для Kahn (учитывает только присутствующие модули)
	Present []bool       // признак, что модуль реально загружен (а не только упомянут в depends)
}

type ModuleNode struct {
	Meta     project.ModuleMeta
	Reporter diag.Reporter
}

type ModuleSlot struct {
	Meta     project.ModuleMeta
	Reporter diag.Reporter
	Present  bool
	// Missing lists declared dependencies that were not loaded, sorted.
	Missing  []string
}

func moduleSubject(name string) diag.Subject {
	return diag.Subject{Module: name, Kind: "module"}
}

// BuildGraph places every node in its slot and wires manifest dependencies.
// A second node with an already present name is reported as a duplicate and
// otherwise ignored; the first one keeps the slot.
func BuildGraph(idx ModuleIndex, nodes []ModuleNode) (Graph, []ModuleSlot) {
	nodeCount := len(idx.IDToName)
	g := Graph{
		Edges:   make([][]ModuleID, nodeCount),
		Indeg:   make([]int, nodeCount),
		Present: make([]bool, nodeCount),
	}
	slots := make([]ModuleSlot, nodeCount)
	for i, name := range idx.IDToName {
		slots[i].Meta.Name = name
	}

	for _, node := range nodes {
		meta := node.Meta
		if meta.Name == "" {
			continue
		}
		id, ok := idx.NameToID[meta.Name]
		if !ok {
			// не должно происходить, индекс строится на тех же метаданных
			continue
		}
		slot := &slots[int(id)]
		if slot.Present {
			if node.Reporter != nil {
				notes := []diag.Note{{
					Subject: moduleSubject(meta.Name),
					Msg:     fmt.Sprintf("previously loaded from %s", slot.Meta.Path),
				}}
				node.Reporter.Report(
					diag.ReadDuplicateModule,
					diag.SevError,
					moduleSubject(meta.Name),
					fmt.Sprintf("duplicate module %q in %s", meta.Name, meta.Path),
					notes,
				)
			}
			continue
		}
		slot.Meta = meta
		slot.Reporter = node.Reporter
		slot.Present = true
		g.Present[int(id)] = true
	}

	for from := range slots {
		slot := &slots[from]
		if !slot.Present || len(slot.Meta.Depends) == 0 {
			continue
		}
		seen := make(map[ModuleID]struct{}, len(slot.Meta.Depends))
		for _, dep := range slot.Meta.Depends {
			depID, ok := idx.NameToID[dep]
			if !ok || ModuleID(from) == depID {
				continue
			}
			if _, dup := seen[depID]; dup {
				continue
			}
			seen[depID] = struct{}{}

			if !g.Present[int(depID)] {
				slot.Missing = append(slot.Missing, dep)
				if slot.Reporter != nil {
					slot.Reporter.Report(
						diag.RefMissingDependency,
						diag.SevInfo,
						moduleSubject(slot.Meta.Name),
						fmt.Sprintf("module %q depends on %q which was not loaded", slot.Meta.Name, dep),
						nil,
					)
				}
				continue
			}
			g.Edges[int(depID)] = append(g.Edges[int(depID)], ModuleID(from))
			g.Indeg[from]++
		}
		slices.Sort(slot.Missing)
	}
	for i := range g.Edges {
		if len(g.Edges[i]) > 1 {
			slices.Sort(g.Edges[i])
		}
	}

	return g, slots
}

// ReportCycles attaches a cycle diagnostic to every module left in a cycle.
func ReportCycles(idx ModuleIndex, slots []ModuleSlot, topo *Topo) {
	if topo == nil || !topo.Cyclic || len(topo.Cycles) == 0 {
		return
	}
	summary := strings.Join(idx.Names(topo.Cycles), " -> ")

	for _, id := range topo.Cycles {
		slot := slots[int(id)]
		if !slot.Present || slot.Reporter == nil {
			continue
		}
		msg := fmt.Sprintf("module %q participates in a dependency cycle: %s", slot.Meta.Name, summary)
		slot.Reporter.Report(diag.ConfDependencyCycle, diag.SevError, moduleSubject(slot.Meta.Name), msg, nil)
	}
}

// Dependents returns the transitive set of loaded modules that depend on id, sorted.
func (g Graph) Dependents(id ModuleID) []ModuleID {
	seen := make([]bool, len(g.Edges))
	var out []ModuleID
	stack := []ModuleID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, to := range g.Edges[int(cur)] {
			if seen[int(to)] {
				continue
			}
			seen[int(to)] = true
			out = append(out, to)
			stack = append(stack, to)
		}
	}
	slices.Sort(out)
	return out
}
