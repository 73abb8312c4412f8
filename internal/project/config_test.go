package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadConfigTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "klibexport.toml")
	writeFile(t, path, `
[export]
output = "out"
single_module = true
module_name = "Shared"
policy = "flatten"

[[module]]
path = "libs/a.klib"
exported = true

[[module]]
path = "/abs/b.klib"

[packages]
"com.foo" = "FooKit"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Export.Output != filepath.Join(dir, "out") {
		t.Fatalf("output = %q", cfg.Export.Output)
	}
	if !cfg.Export.SingleModule || cfg.Export.ModuleName != "Shared" || cfg.Export.Policy != "flatten" {
		t.Fatalf("unexpected export section: %+v", cfg.Export)
	}
	if len(cfg.Modules) != 2 {
		t.Fatalf("modules = %d, want 2", len(cfg.Modules))
	}
	if cfg.Modules[0].Path != filepath.Join(dir, "libs", "a.klib") || !cfg.Modules[0].Exported {
		t.Fatalf("module[0] = %+v", cfg.Modules[0])
	}
	if cfg.Modules[1].Path != filepath.FromSlash("/abs/b.klib") || cfg.Modules[1].Exported {
		t.Fatalf("module[1] = %+v", cfg.Modules[1])
	}
	if cfg.Packages["com.foo"] != "FooKit" {
		t.Fatalf("packages = %v", cfg.Packages)
	}
	if cfg.ExportedCount() != 1 {
		t.Fatalf("exported = %d, want 1", cfg.ExportedCount())
	}
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "klibexport.yaml")
	writeFile(t, path, `
export:
  policy: pascal
module:
  - path: a.klib
    exported: true
    swift_name: AKit
packages:
  com.bar: ""
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Export.Policy != "pascal" {
		t.Fatalf("policy = %q", cfg.Export.Policy)
	}
	if cfg.Modules[0].SwiftName != "AKit" {
		t.Fatalf("swift_name = %q", cfg.Modules[0].SwiftName)
	}
	target, ok := cfg.Packages["com.bar"]
	if !ok || target != "" {
		t.Fatalf("packages = %v", cfg.Packages)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	noExport := filepath.Join(dir, "a", "klibexport.toml")
	writeFile(t, noExport, "[[module]]\npath = \"x\"\n")
	if _, err := LoadConfig(noExport); !errors.Is(err, ErrExportSectionMissing) {
		t.Fatalf("err = %v, want ErrExportSectionMissing", err)
	}

	noModules := filepath.Join(dir, "b", "klibexport.toml")
	writeFile(t, noModules, "[export]\noutput = \"o\"\n")
	if _, err := LoadConfig(noModules); !errors.Is(err, ErrNoModules) {
		t.Fatalf("err = %v, want ErrNoModules", err)
	}

	unknown := filepath.Join(dir, "c", "klibexport.toml")
	writeFile(t, unknown, "[export]\noutptu = \"o\"\n[[module]]\npath = \"x\"\n")
	if _, err := LoadConfig(unknown); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestFindConfigWalksUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "klibexport.yaml")
	writeFile(t, path, "export: {}\n")
	nested := filepath.Join(dir, "x", "y")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, ok, err := FindConfig(nested)
	if err != nil || !ok {
		t.Fatalf("FindConfig: ok=%v err=%v", ok, err)
	}
	if got != path {
		t.Fatalf("FindConfig = %q, want %q", got, path)
	}
}

func TestSplitDependsAndDigest(t *testing.T) {
	deps := SplitDepends(" stdlib  org.a:core stdlib ")
	if len(deps) != 2 || deps[0] != "stdlib" || deps[1] != "org.a:core" {
		t.Fatalf("deps = %v", deps)
	}
	if SplitDepends("   ") != nil {
		t.Fatalf("expected nil deps")
	}
	a := HashBytes([]byte("a"))
	if a.IsZero() || len(a.Hex()) != 64 || len(a.Short()) != 12 {
		t.Fatalf("bad digest %s", a.Hex())
	}
	if Combine(a) == Combine(a, a) {
		t.Fatalf("combine must depend on deps")
	}
	if IsValidModuleName("has space") || !IsValidModuleName("org.example:lib") {
		t.Fatalf("unexpected module name validation")
	}
}
