// Package emit renders the classified and named declaration tree as Swift
// source units.
//
// Output is a pure function of the frozen classification, the name
// registry and the options: modules are visited in processing order,
// namespaces and declarations in sorted order.
package emit

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"klibexport/internal/classify"
	"klibexport/internal/kotlin"
	"klibexport/internal/linker"
	"klibexport/internal/naming"
)

// ErrInternal marks invariant violations found while rendering.
var ErrInternal = errors.New("internal emitter error")

func internalf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInternal)
}

// RuntimeModule is imported by every unit.
const RuntimeModule = "KotlinRuntime"

// Options select the unit layout.
type Options struct {
	// SingleModule puts every exported module into one unit.
	SingleModule bool
	// ModuleName names the single unit; "Shared" when empty.
	ModuleName string
}

// Unit is one generated Swift file.
type Unit struct {
	// Module is the Swift module name.
	Module string
	// Path is the file name relative to the output directory.
	Path string
	// Sources lists the klib unique names rendered into the unit.
	Sources []string
	Text    []byte
}

// Emit renders one unit per exported module, or a single unit.
func Emit(res *classify.Result, reg *naming.Registry, opts Options) ([]Unit, error) {
	table := res.Table()
	var exported []kotlin.ModuleID
	for i, m := range table.Modules() {
		if m.Exported {
			exported = append(exported, kotlin.ModuleID(i))
		}
	}
	if len(exported) == 0 {
		return nil, nil
	}

	var groups [][]kotlin.ModuleID
	var names []string
	if opts.SingleModule {
		name := opts.ModuleName
		if name == "" {
			name = "Shared"
		}
		groups = append(groups, exported)
		names = append(names, name)
	} else {
		for _, id := range exported {
			groups = append(groups, []kotlin.ModuleID{id})
			names = append(names, swiftModuleName(table.Module(id)))
		}
	}

	units := make([]Unit, 0, len(groups))
	for i, group := range groups {
		e := newEmitter(res, reg, names[i], group, groupOwner(table, groups, names))
		text, err := e.emitUnit()
		if err != nil {
			return nil, errors.Wrapf(err, "emit %s", names[i])
		}
		sources := make([]string, len(group))
		for j, id := range group {
			sources[j] = table.Module(id).Name
		}
		units = append(units, Unit{
			Module:  names[i],
			Path:    names[i] + ".swift",
			Sources: sources,
			Text:    text,
		})
	}
	return units, nil
}

func swiftModuleName(m *kotlin.Module) string {
	name, _ := naming.Sanitize(m.DisplayName())
	return name
}

// groupOwner maps every module to the Swift module that declares it.
func groupOwner(table *linker.Table, groups [][]kotlin.ModuleID, names []string) map[kotlin.ModuleID]string {
	owner := make(map[kotlin.ModuleID]string, len(table.Modules()))
	for i, m := range table.Modules() {
		owner[kotlin.ModuleID(i)] = swiftModuleName(m)
	}
	for i, group := range groups {
		for _, id := range group {
			owner[id] = names[i]
		}
	}
	return owner
}

// Emitter renders one unit.
type Emitter struct {
	res     *classify.Result
	table   *linker.Table
	reg     *naming.Registry
	module  string
	group   []kotlin.ModuleID
	owner   map[kotlin.ModuleID]string
	imports map[string]kotlin.ModuleID
	buf     strings.Builder
	depth   int
	err     error
}

func newEmitter(res *classify.Result, reg *naming.Registry, module string, group []kotlin.ModuleID, owner map[kotlin.ModuleID]string) *Emitter {
	return &Emitter{
		res:     res,
		table:   res.Table(),
		reg:     reg,
		module:  module,
		group:   group,
		owner:   owner,
		imports: make(map[string]kotlin.ModuleID),
	}
}

// names resolves references for the type renderer. References outside
// the unit are qualified with their Swift module and imported.
func (e *Emitter) names(ref kotlin.Ref) (string, bool) {
	if !e.res.Supported(ref) {
		return "", false
	}
	b, ok := e.reg.Lookup(ref)
	if !ok {
		return "", false
	}
	if slices.Contains(e.group, ref.Module) {
		return b.Qualified(), true
	}
	mod := e.owner[ref.Module]
	e.imports[mod] = ref.Module
	return mod + "." + b.Qualified(), true
}

func (e *Emitter) emitUnit() ([]byte, error) {
	var body strings.Builder
	namespaces := make(map[string]bool)
	for _, mid := range e.group {
		blocks, err := e.blocks(mid)
		if err != nil {
			return nil, err
		}
		for _, blk := range blocks {
			if blk.ns != "" {
				namespaces[blk.ns] = true
			}
			e.buf.Reset()
			e.block(blk)
			if e.err != nil {
				return nil, e.err
			}
			body.WriteString(e.buf.String())
		}
	}

	e.buf.Reset()
	e.header()
	e.namespaceTree(namespaces)
	e.buf.WriteString(body.String())
	return []byte(e.buf.String()), nil
}

func (e *Emitter) header() {
	fmt.Fprintf(&e.buf, "import %s\n", RuntimeModule)
	mods := make([]string, 0, len(e.imports))
	for mod := range e.imports {
		mods = append(mods, mod)
	}
	sort.Slice(mods, func(i, j int) bool {
		a, b := e.imports[mods[i]], e.imports[mods[j]]
		if a != b {
			return a < b
		}
		return mods[i] < mods[j]
	})
	for _, mod := range mods {
		fmt.Fprintf(&e.buf, "import %s\n", mod)
	}
}

// namespaceTree declares every namespace path as nested caseless enums.
func (e *Emitter) namespaceTree(paths map[string]bool) {
	type node struct {
		children map[string]*node
	}
	root := &node{children: map[string]*node{}}
	for path := range paths {
		n := root
		for _, seg := range strings.Split(path, ".") {
			child, ok := n.children[seg]
			if !ok {
				child = &node{children: map[string]*node{}}
				n.children[seg] = child
			}
			n = child
		}
	}
	var walk func(n *node)
	walk = func(n *node) {
		segs := make([]string, 0, len(n.children))
		for seg := range n.children {
			segs = append(segs, seg)
		}
		sort.Strings(segs)
		for _, seg := range segs {
			child := n.children[seg]
			if len(child.children) == 0 {
				e.line("public enum %s {}", seg)
				continue
			}
			e.line("public enum %s {", seg)
			e.depth++
			walk(child)
			e.depth--
			e.line("}")
		}
	}
	if len(root.children) > 0 {
		e.buf.WriteByte('\n')
	}
	walk(root)
}

func (e *Emitter) line(format string, args ...any) {
	e.buf.WriteString(strings.Repeat("    ", e.depth))
	fmt.Fprintf(&e.buf, format, args...)
	e.buf.WriteByte('\n')
}

func (e *Emitter) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
