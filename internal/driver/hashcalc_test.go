package driver_test

import (
	"testing"

	"klibexport/internal/diag"
	"klibexport/internal/driver"
	"klibexport/internal/kotlin"
	"klibexport/internal/linker"
	"klibexport/internal/project"
)

func digest(b byte) project.Digest {
	var d project.Digest
	for i := range d {
		d[i] = b
	}
	return d
}

func chain(c project.Digest) []*kotlin.Module {
	// Граф: a -> b, b -> c
	mods := []*kotlin.Module{
		{Name: "a", Depends: []string{"b"}, ContentHash: digest('A')},
		{Name: "b", Depends: []string{"c"}, ContentHash: digest('B')},
		{Name: "c", ContentHash: c},
	}
	for _, m := range mods {
		m.Seal()
	}
	return mods
}

func hashesByName(t *testing.T, mods []*kotlin.Module) map[string]project.Digest {
	t.Helper()
	table, err := linker.Link(mods, diag.NopReporter{})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	hashes := driver.ComputeModuleHashes(table)
	out := make(map[string]project.Digest, len(hashes))
	for i, m := range table.Modules() {
		out[m.Name] = hashes[i]
	}
	return out
}

func TestComputeModuleHashes_DeterministicAndTransitive(t *testing.T) {
	first := hashesByName(t, chain(digest('C')))
	for name, h := range first {
		if h.IsZero() {
			t.Fatalf("%s hash should be non-zero", name)
		}
	}
	if first["c"] != project.Combine(digest('C')) {
		t.Fatal("leaf hash must be H(content)")
	}
	if first["b"] != project.Combine(digest('B'), first["c"]) {
		t.Fatal("b hash must be H(b || c)")
	}
	if first["a"] == first["b"] {
		t.Fatal("a hash must differ from b")
	}

	again := hashesByName(t, chain(digest('C')))
	if again["a"] != first["a"] {
		t.Fatal("hashes must be deterministic")
	}

	// Меняем «внука»: c
	changed := hashesByName(t, chain(digest('X')))
	if changed["a"] == first["a"] {
		t.Fatal("a hash must change when transitive dep (c) changes")
	}
}

func TestComputeModuleHashes_MissingDependencyIgnored(t *testing.T) {
	m := &kotlin.Module{Name: "a", Depends: []string{"absent"}, ContentHash: digest('A')}
	m.Seal()
	got := hashesByName(t, []*kotlin.Module{m})
	if got["a"] != project.Combine(digest('A')) {
		t.Fatal("missing dependency must not contribute to the hash")
	}
}
