package driver

import (
	"sync"

	"klibexport/internal/kotlin"
	"klibexport/internal/project"
)

// minimal per-process cache by klib path + content hash
type cached struct {
	content project.Digest
	mod     *kotlin.Module
}

// ModuleCache keeps decoded modules between runs of one process (watch mode).
type ModuleCache struct {
	mu     sync.RWMutex
	byPath map[string]cached
}

// NewModuleCache creates a ModuleCache with the given capacity hint.
func NewModuleCache(capHint int) *ModuleCache {
	return &ModuleCache{byPath: make(map[string]cached, capHint)}
}

// Get returns the module decoded from path when its content is unchanged.
// The result is a shallow copy, so per-run fields (Exported, SwiftName)
// may be set without touching the cached value.
func (c *ModuleCache) Get(path string, content project.Digest) (*kotlin.Module, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	rec, ok := c.byPath[path]
	c.mu.RUnlock()
	if !ok || rec.content != content {
		return nil, false
	}
	cp := *rec.mod
	return &cp, true
}

// Put inserts a module into the cache.
func (c *ModuleCache) Put(m *kotlin.Module) {
	if c == nil || m == nil {
		return
	}
	cp := *m
	c.mu.Lock()
	c.byPath[m.Path] = cached{content: m.ContentHash, mod: &cp}
	c.mu.Unlock()
}

// Len returns the number of cached modules.
func (c *ModuleCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byPath)
}
