package kotlin

import (
	"fmt"
	"sort"

	"fortio.org/safecast"

	"klibexport/internal/project"
)

// DeclID identifies a declaration inside its module arena.
type DeclID uint32

// NoDeclID marks the absence of a declaration reference.
const NoDeclID DeclID = 0

// IsValid reports whether the ID refers to an allocated declaration.
func (id DeclID) IsValid() bool { return id != NoDeclID }

// ModuleID is the index of a module in the linked module order.
type ModuleID uint32

// Ref is a global, non-owning declaration identity. Cross-module
// references are always Refs resolved through the symbol table.
type Ref struct {
	Module ModuleID
	Decl   DeclID
}

// IsValid reports whether the reference points at a declaration.
func (r Ref) IsValid() bool { return r.Decl.IsValid() }

func (r Ref) String() string { return fmt.Sprintf("%d:%d", r.Module, r.Decl) }

// PackageFragment holds the top-level declarations of one package.
type PackageFragment struct {
	Name  string         `msgpack:"n"`
	Decls []*Declaration `msgpack:"d"`
}

// Module is one loaded klib.
type Module struct {
	Name            string             `msgpack:"name"`
	ShortName       string             `msgpack:"short,omitempty"`
	Path            string             `msgpack:"-"`
	Exported        bool               `msgpack:"-"`
	SwiftName       string             `msgpack:"-"`
	Depends         []string           `msgpack:"deps,omitempty"`
	ABIVersion      string             `msgpack:"abi"`
	CompilerVersion string             `msgpack:"compiler,omitempty"`
	MetadataVersion string             `msgpack:"metadata,omitempty"`
	ContentHash     project.Digest     `msgpack:"hash"`
	Packages        []*PackageFragment `msgpack:"pkgs"`

	// arena, index 0 reserved for NoDeclID
	decls []*Declaration
}

// Seal assigns arena IDs to every declaration in deterministic tree order
// (packages in slice order, declarations pre-order) and fills Parent links.
// Seal is idempotent; it must run before the module is shared between workers.
func (m *Module) Seal() {
	m.decls = m.decls[:0]
	m.decls = append(m.decls, nil)
	var visit func(d *Declaration, parent DeclID)
	visit = func(d *Declaration, parent DeclID) {
		value, err := safecast.Conv[uint32](len(m.decls))
		if err != nil {
			panic(fmt.Errorf("declaration arena overflow: %w", err))
		}
		d.ID = DeclID(value)
		d.Parent = parent
		m.decls = append(m.decls, d)
		for _, mem := range d.Members {
			visit(mem, d.ID)
		}
	}
	for _, pkg := range m.Packages {
		for _, d := range pkg.Decls {
			visit(d, NoDeclID)
		}
	}
}

// Decl returns the declaration for id or nil.
func (m *Module) Decl(id DeclID) *Declaration {
	if !id.IsValid() || int(id) >= len(m.decls) {
		return nil
	}
	return m.decls[id]
}

// Len reports number of declarations excluding the sentinel.
func (m *Module) Len() int {
	if len(m.decls) == 0 {
		return 0
	}
	return len(m.decls) - 1
}

// Decls exposes the arena without the sentinel, in Seal order.
func (m *Module) Decls() []*Declaration {
	if len(m.decls) <= 1 {
		return nil
	}
	return m.decls[1:]
}

// Package returns the fragment named pkg, creating it when absent.
func (m *Module) Package(pkg string) *PackageFragment {
	for _, p := range m.Packages {
		if p.Name == pkg {
			return p
		}
	}
	p := &PackageFragment{Name: pkg}
	m.Packages = append(m.Packages, p)
	return p
}

// PackageNames lists the packages that hold at least one declaration, sorted.
func (m *Module) PackageNames() []string {
	out := make([]string, 0, len(m.Packages))
	for _, p := range m.Packages {
		if len(p.Decls) > 0 {
			out = append(out, p.Name)
		}
	}
	sort.Strings(out)
	return out
}

// HasPackage reports whether pkg or one of its sub-packages holds declarations.
// The root package "" has no sub-packages.
func (m *Module) HasPackage(pkg string) bool {
	for _, p := range m.Packages {
		if len(p.Decls) == 0 {
			continue
		}
		if p.Name == pkg || (pkg != "" && hasPrefixSegment(p.Name, pkg)) {
			return true
		}
	}
	return false
}

func hasPrefixSegment(name, prefix string) bool {
	return len(name) > len(prefix) && name[:len(prefix)] == prefix && name[len(prefix)] == '.'
}

// DisplayName is the name used for the emitted Swift module.
func (m *Module) DisplayName() string {
	if m.SwiftName != "" {
		return m.SwiftName
	}
	if m.ShortName != "" {
		return m.ShortName
	}
	return m.Name
}
