package driver_test

import (
	"testing"

	"klibexport/internal/driver"
	"klibexport/internal/kotlin"
	"klibexport/internal/project"
)

func TestModuleCache_HitMiss(t *testing.T) {
	c := driver.NewModuleCache(16)
	var d1, d2 project.Digest
	d1[0] = 1
	d2[0] = 2

	m := &kotlin.Module{Name: "x", Path: "build/x.klib", ContentHash: d1}
	m.Seal()
	c.Put(m)

	if _, ok := c.Get("build/x.klib", d2); ok {
		t.Fatal("expected miss on different content hash")
	}
	if _, ok := c.Get("build/y.klib", d1); ok {
		t.Fatal("expected miss on different path")
	}
	got, ok := c.Get("build/x.klib", d1)
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Name != "x" {
		t.Fatal("wrong module returned")
	}

	got.Exported = true
	got.SwiftName = "X"
	again, _ := c.Get("build/x.klib", d1)
	if again.Exported || again.SwiftName != "" {
		t.Fatal("per-run fields leaked into the cache")
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d", c.Len())
	}
}

func TestModuleCache_Nil(t *testing.T) {
	var c *driver.ModuleCache
	c.Put(&kotlin.Module{})
	if _, ok := c.Get("a", project.Digest{}); ok {
		t.Fatal("nil cache must miss")
	}
}
