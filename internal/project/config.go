package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ConfigNames are the file names FindConfig looks for, in priority order.
var ConfigNames = []string{"klibexport.toml", "klibexport.yaml", "klibexport.yml"}

var (
	// ErrExportSectionMissing indicates that [export] is missing in the config.
	ErrExportSectionMissing = errors.New("missing [export]")
	// ErrNoModules indicates that no [[module]] entries were declared.
	ErrNoModules = errors.New("no [[module]] entries")
	// ErrConfiguration marks fatal problems with the requested export:
	// dependency cycles, invalid naming policies, bad package overrides.
	ErrConfiguration = errors.New("configuration error")
)

// ExportConfig is the [export] section.
type ExportConfig struct {
	Output       string `toml:"output" yaml:"output"`
	SingleModule bool   `toml:"single_module" yaml:"single_module"`
	ModuleName   string `toml:"module_name" yaml:"module_name"`
	Policy       string `toml:"policy" yaml:"policy"`
	Jobs         int    `toml:"jobs" yaml:"jobs"`
	Strict       bool   `toml:"strict" yaml:"strict"`
	Bindings     string `toml:"bindings" yaml:"bindings"`
}

// ModuleEntry is one [[module]] input.
type ModuleEntry struct {
	Path      string `toml:"path" yaml:"path"`
	Exported  bool   `toml:"exported" yaml:"exported"`
	SwiftName string `toml:"swift_name" yaml:"swift_name"`
}

// Config is the parsed klibexport.toml / klibexport.yaml.
type Config struct {
	Path     string            `toml:"-" yaml:"-"`
	Root     string            `toml:"-" yaml:"-"`
	Export   ExportConfig      `toml:"export" yaml:"export"`
	Modules  []ModuleEntry     `toml:"module" yaml:"module"`
	Packages map[string]string `toml:"packages" yaml:"packages"`
}

// FindConfig walks up from startDir to locate a klibexport config file.
func FindConfig(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		for _, name := range ConfigNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true, nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadConfig parses path as TOML or YAML depending on its extension and
// resolves module paths and the output directory against the config's directory.
func LoadConfig(path string) (*Config, error) {
	var (
		cfg Config
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(path, &cfg)
	default:
		err = decodeTOML(path, &cfg)
	}
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	cfg.Root = filepath.Dir(path)
	if len(cfg.Modules) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoModules)
	}
	for i := range cfg.Modules {
		m := &cfg.Modules[i]
		m.Path = strings.TrimSpace(m.Path)
		if m.Path == "" {
			return nil, fmt.Errorf("%s: module #%d missing path", path, i+1)
		}
		m.Path = cfg.resolve(m.Path)
	}
	if out := strings.TrimSpace(cfg.Export.Output); out != "" {
		cfg.Export.Output = cfg.resolve(out)
	}
	if b := strings.TrimSpace(cfg.Export.Bindings); b != "" {
		cfg.Export.Bindings = cfg.resolve(b)
	}
	return &cfg, nil
}

func decodeTOML(path string, cfg *Config) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("export") {
		return fmt.Errorf("%s: %w", path, ErrExportSectionMissing)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	return nil
}

func decodeYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	var probe map[string]any
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%s: failed to parse YAML: %w", path, err)
	}
	if _, ok := probe["export"]; !ok {
		return fmt.Errorf("%s: %w", path, ErrExportSectionMissing)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%s: failed to parse YAML: %w", path, err)
	}
	return nil
}

func (c *Config) resolve(p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

// ExportedCount reports how many module entries are marked exported.
func (c *Config) ExportedCount() int {
	n := 0
	for _, m := range c.Modules {
		if m.Exported {
			n++
		}
	}
	return n
}
