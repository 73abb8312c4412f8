package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"

	"klibexport/internal/kotlin"
	"klibexport/internal/project"
)

// Current schema version - increment when DiskPayload or the kotlin model
// encoding changes
const diskCacheSchemaVersion uint16 = 1

// DiskCache хранит декодированные модули по content hash на диске.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// DiskPayload is one cached module.
type DiskPayload struct {
	// Schema version for safe invalidation when format changes
	Schema uint16
	// Component the module was decoded from
	Component string
	Module    *kotlin.Module
}

// OpenDiskCache initializes and returns a disk cache at the standard location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheAt(filepath.Join(base, app))
}

// OpenDiskCacheAt opens a disk cache rooted at dir.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create cache dir %s", dir)
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *DiskCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// CacheKey binds a klib content hash to the cache schema and component.
func CacheKey(content project.Digest, component string) project.Digest {
	salt := fmt.Sprintf("schema=%d component=%s", diskCacheSchemaVersion, component)
	return project.Combine(content, project.HashBytes([]byte(salt)))
}

func (c *DiskCache) pathFor(key project.Digest) string {
	// Модули лежат в подкаталоге "mods".
	return filepath.Join(c.dir, "mods", key.Hex()+".mp")
}

// Put serializes and writes a module to the disk cache.
func (c *DiskCache) Put(key project.Digest, component string, m *kotlin.Module) (err error) {
	if c == nil || m == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	enc := msgpack.NewEncoder(f)
	payload := DiskPayload{Schema: diskCacheSchemaVersion, Component: component, Module: m}
	if err = enc.Encode(&payload); err != nil {
		return errors.Wrapf(err, "encode cached module %s", m.Name)
	}
	if err = f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), p)
}

// Get reads a module from the disk cache. Entries of another schema or
// component are misses. The returned module is sealed; Path, Exported and
// SwiftName are left for the caller.
func (c *DiskCache) Get(key project.Digest, component string) (*kotlin.Module, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer func() { _ = f.Close() }()

	var payload DiskPayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, errors.Wrapf(err, "decode cache entry %s", key.Short())
	}
	if payload.Schema != diskCacheSchemaVersion || payload.Component != component || payload.Module == nil {
		return nil, false, nil
	}
	payload.Module.Seal()
	return payload.Module, true, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// тривиально: переименуем каталог и удалим
	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}
