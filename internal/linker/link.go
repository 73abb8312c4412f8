// Package linker joins independently loaded modules into one program view:
// a deterministic processing order and a global symbol table of classifiers.
//
// Link is the barrier between the parallel load phase and everything after
// it; the returned Table is read-only and safe for concurrent use.
package linker

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"klibexport/internal/diag"
	"klibexport/internal/klib"
	"klibexport/internal/kotlin"
	"klibexport/internal/project"
	"klibexport/internal/project/dag"
)

// UnresolvedError reports a type reference with no matching classifier.
type UnresolvedError struct {
	Name kotlin.FqName
	// Missing is a declared dependency of the referencing module that was
	// not loaded; empty when every dependency is present.
	Missing string
}

func (e *UnresolvedError) Error() string {
	if e.Missing != "" {
		return fmt.Sprintf("unresolved reference %s: module %s not loaded", e.Name.Dotted(), e.Missing)
	}
	return fmt.Sprintf("unresolved reference %s: declaration not found", e.Name.Dotted())
}

// Table is the linked view over all loaded modules.
type Table struct {
	modules    []*kotlin.Module
	byName     map[string]kotlin.ModuleID
	symbols    map[kotlin.FqName]kotlin.Ref
	duplicates map[kotlin.Ref]kotlin.Ref
	missing    [][]string
}

// Link orders mods (dependencies first, ties by unique name), reports missing
// dependencies through r and builds the global symbol table.
// Duplicate unique names and dependency cycles are fatal.
func Link(mods []*kotlin.Module, r diag.Reporter) (*Table, error) {
	if r == nil {
		r = diag.NopReporter{}
	}
	seen := make(map[string]*kotlin.Module, len(mods))
	metas := make([]project.ModuleMeta, 0, len(mods))
	nodes := make([]dag.ModuleNode, 0, len(mods))
	for _, m := range mods {
		if prev, dup := seen[m.Name]; dup {
			err := klib.NewReadError(m.Path, diag.ReadDuplicateModule,
				"duplicate module %q (also loaded from %s)", m.Name, prev.Path)
			return nil, errors.WithHint(err, "each input must have a distinct unique_name")
		}
		seen[m.Name] = m
		meta := project.ModuleMeta{
			Name:        m.Name,
			Path:        m.Path,
			Depends:     m.Depends,
			Exported:    m.Exported,
			ContentHash: m.ContentHash,
		}
		metas = append(metas, meta)
		nodes = append(nodes, dag.ModuleNode{Meta: meta, Reporter: r})
	}

	idx := dag.BuildIndex(metas)
	graph, slots := dag.BuildGraph(idx, nodes)
	topo := dag.ToposortKahn(graph)
	if topo.Cyclic {
		dag.ReportCycles(idx, slots, topo)
		cycle := strings.Join(idx.Names(topo.Cycles), ", ")
		err := errors.Newf("dependency cycle between modules: %s", cycle)
		err = errors.WithHint(err, "klib dependencies must form a DAG; check the depends entries of the listed manifests")
		return nil, errors.Mark(err, project.ErrConfiguration)
	}

	t := &Table{
		modules:    make([]*kotlin.Module, 0, len(topo.Order)),
		byName:     make(map[string]kotlin.ModuleID, len(topo.Order)),
		symbols:    make(map[kotlin.FqName]kotlin.Ref),
		duplicates: make(map[kotlin.Ref]kotlin.Ref),
	}
	for _, id := range topo.Order {
		m := seen[idx.IDToName[int(id)]]
		t.byName[m.Name] = kotlin.ModuleID(len(t.modules))
		t.modules = append(t.modules, m)
	}
	t.missing = make([][]string, len(t.modules))
	for i, m := range t.modules {
		t.missing[i] = t.transitiveMissing(m, slots, idx)
	}

	for i, m := range t.modules {
		mid := kotlin.ModuleID(i)
		for _, d := range m.Decls() {
			if !d.Kind.IsClassifier() {
				continue
			}
			ref := kotlin.Ref{Module: mid, Decl: d.ID}
			if first, ok := t.symbols[d.FqName]; ok {
				t.duplicates[ref] = first
				continue
			}
			t.symbols[d.FqName] = ref
		}
	}
	return t, nil
}

// transitiveMissing collects declared dependencies of m (directly or through
// loaded dependencies) that were not loaded. Dependencies are already
// ordered, so their slots are complete.
func (t *Table) transitiveMissing(m *kotlin.Module, slots []dag.ModuleSlot, idx dag.ModuleIndex) []string {
	var out []string
	visited := map[string]bool{m.Name: true}
	stack := []string{m.Name}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		id, ok := idx.NameToID[name]
		if !ok {
			continue
		}
		slot := slots[int(id)]
		out = append(out, slot.Missing...)
		for _, dep := range slot.Meta.Depends {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			if _, loaded := t.byName[dep]; loaded {
				stack = append(stack, dep)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Modules returns the modules in processing order; the index is the ModuleID.
func (t *Table) Modules() []*kotlin.Module { return t.modules }

// Module returns the module with the given id or nil.
func (t *Table) Module(id kotlin.ModuleID) *kotlin.Module {
	if int(id) >= len(t.modules) {
		return nil
	}
	return t.modules[id]
}

// ModuleID looks a module up by unique name.
func (t *Table) ModuleID(name string) (kotlin.ModuleID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Decl dereferences ref.
func (t *Table) Decl(ref kotlin.Ref) *kotlin.Declaration {
	m := t.Module(ref.Module)
	if m == nil {
		return nil
	}
	return m.Decl(ref.Decl)
}

// Missing lists dependencies of id that were declared but not loaded,
// including those of its loaded dependencies.
func (t *Table) Missing(id kotlin.ModuleID) []string {
	if int(id) >= len(t.missing) {
		return nil
	}
	return t.missing[id]
}

// DuplicateOf returns the declaration that claimed ref's FQ name first.
func (t *Table) DuplicateOf(ref kotlin.Ref) (kotlin.Ref, bool) {
	first, ok := t.duplicates[ref]
	return first, ok
}

// Lookup finds a classifier by FQ name without diagnostics.
func (t *Table) Lookup(fq kotlin.FqName) (kotlin.Ref, bool) {
	ref, ok := t.symbols[fq]
	return ref, ok
}

// Resolve finds the classifier fq referenced from module from.
// The error is always an *UnresolvedError.
func (t *Table) Resolve(from kotlin.ModuleID, fq kotlin.FqName) (kotlin.Ref, error) {
	if ref, ok := t.symbols[fq]; ok {
		return ref, nil
	}
	err := &UnresolvedError{Name: fq}
	if missing := t.Missing(from); len(missing) > 0 {
		err.Missing = missing[0]
	}
	return kotlin.Ref{}, err
}

// Subject describes ref for diagnostics.
func (t *Table) Subject(ref kotlin.Ref) diag.Subject {
	m := t.Module(ref.Module)
	d := t.Decl(ref)
	if m == nil || d == nil {
		return diag.Subject{}
	}
	return diag.Subject{Module: m.Name, Decl: d.FqName.Dotted(), Kind: d.Kind.String()}
}
