// Package fixture builds kotlin.Module values from compact YAML
// descriptions. The descriptions are used by tests and by the pack command
// to produce real klib artifacts without a Kotlin toolchain.
//
//	name: org.example:lib
//	short_name: lib
//	depends: [stdlib]
//	packages:
//	  com.example:
//	    - class: Greeter
//	      modifiers: [open]
//	      members:
//	        - constructor: ["name: String"]
//	        - fun: greet
//	          params: ["times: Int = 1"]
//	          returns: String
package fixture

import (
	"bytes"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"klibexport/internal/kotlin"
)

// ConstructorName is the member name used for constructors.
const ConstructorName = "<init>"

type moduleNode struct {
	Name            string                `yaml:"name"`
	ShortName       string                `yaml:"short_name"`
	Depends         []string              `yaml:"depends"`
	ABIVersion      string                `yaml:"abi_version"`
	CompilerVersion string                `yaml:"compiler_version"`
	MetadataVersion string                `yaml:"metadata_version"`
	Packages        map[string][]declNode `yaml:"packages"`
}

type declNode struct {
	Class       string    `yaml:"class"`
	Interface   string    `yaml:"interface"`
	Object      string    `yaml:"object"`
	Enum        string    `yaml:"enum"`
	Fun         string    `yaml:"fun"`
	Val         string    `yaml:"val"`
	Var         string    `yaml:"var"`
	Typealias   string    `yaml:"typealias"`
	Constructor *[]string `yaml:"constructor"`

	Visibility string     `yaml:"visibility"`
	Modifiers  []string   `yaml:"modifiers"`
	TypeParams []string   `yaml:"type_params"`
	Params     []string   `yaml:"params"`
	Returns    string     `yaml:"returns"`
	Receiver   string     `yaml:"receiver"`
	Type       string     `yaml:"type"`
	Target     string     `yaml:"target"`
	Supertypes []string   `yaml:"supertypes"`
	Entries    []string   `yaml:"entries"`
	Members    []declNode `yaml:"members"`
}

// Parse decodes a single module description.
func Parse(data []byte) (*kotlin.Module, error) {
	mods, err := ParseAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(mods) != 1 {
		return nil, errors.Newf("fixture: expected one module, got %d", len(mods))
	}
	return mods[0], nil
}

// ParseAll decodes every YAML document of r as a module description.
func ParseAll(r io.Reader) ([]*kotlin.Module, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var out []*kotlin.Module
	for {
		var node moduleNode
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "fixture")
		}
		mod, err := node.build()
		if err != nil {
			return nil, errors.Wrapf(err, "fixture %s", node.Name)
		}
		out = append(out, mod)
	}
	return out, nil
}

// LoadFile reads every module description stored in path.
func LoadFile(path string) ([]*kotlin.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseAll(f)
}

func (n *moduleNode) build() (*kotlin.Module, error) {
	if strings.TrimSpace(n.Name) == "" {
		return nil, errors.New("module without name")
	}
	mod := &kotlin.Module{
		Name:            n.Name,
		ShortName:       n.ShortName,
		Depends:         n.Depends,
		ABIVersion:      n.ABIVersion,
		CompilerVersion: n.CompilerVersion,
		MetadataVersion: n.MetadataVersion,
	}
	if mod.ABIVersion == "" {
		mod.ABIVersion = "1.8.0"
	}
	pkgs := make([]string, 0, len(n.Packages))
	for pkg := range n.Packages {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	for _, pkg := range pkgs {
		frag := mod.Package(pkg)
		for i := range n.Packages[pkg] {
			d, err := n.Packages[pkg][i].build(pkg, nil, "")
			if err != nil {
				return nil, err
			}
			frag.Decls = append(frag.Decls, d)
		}
	}
	mod.Seal()
	return mod, nil
}

// kind picks the declaration kind from the single naming key set on the node.
func (n *declNode) kind() (kotlin.DeclKind, kotlin.DeclFlags, string, error) {
	type candidate struct {
		name  string
		kind  kotlin.DeclKind
		flags kotlin.DeclFlags
	}
	all := []candidate{
		{n.Class, kotlin.DeclClass, 0},
		{n.Interface, kotlin.DeclClass, kotlin.FlagInterface},
		{n.Object, kotlin.DeclClass, kotlin.FlagObject},
		{n.Enum, kotlin.DeclEnum, 0},
		{n.Fun, kotlin.DeclFunction, 0},
		{n.Val, kotlin.DeclProperty, 0},
		{n.Var, kotlin.DeclProperty, kotlin.FlagVar},
		{n.Typealias, kotlin.DeclTypealias, 0},
	}
	var picked []candidate
	for _, c := range all {
		if c.name != "" {
			picked = append(picked, c)
		}
	}
	if n.Constructor != nil {
		picked = append(picked, candidate{ConstructorName, kotlin.DeclFunction, kotlin.FlagConstructor})
	}
	switch len(picked) {
	case 0:
		return 0, 0, "", errors.New("declaration without kind key")
	case 1:
		return picked[0].kind, picked[0].flags, picked[0].name, nil
	default:
		return 0, 0, "", errors.Newf("declaration %q has %d kind keys", picked[0].name, len(picked))
	}
}

func (n *declNode) build(pkg string, scope []string, parent kotlin.FqName) (*kotlin.Declaration, error) {
	kind, flags, name, err := n.kind()
	if err != nil {
		return nil, err
	}
	d := &kotlin.Declaration{Kind: kind, Name: name, Flags: flags}
	if parent == "" {
		d.FqName = kotlin.NewFqName(pkg, name)
	} else {
		d.FqName = parent.Child(name)
	}
	if err := n.applyModifiers(d); err != nil {
		return nil, errors.Wrapf(err, "%s", d.FqName)
	}

	tps, names, err := parseTypeParams(n.TypeParams, pkg, scope)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", d.FqName)
	}
	d.TypeParams = tps
	scope = append(append([]string(nil), scope...), names...)

	typ := func(src string) (*kotlin.TypeRef, error) {
		if src == "" {
			return nil, nil
		}
		return ParseType(src, pkg, scope)
	}

	if d.Receiver, err = typ(n.Receiver); err != nil {
		return nil, errors.Wrapf(err, "%s: receiver", d.FqName)
	}
	params := n.Params
	if n.Constructor != nil {
		params = *n.Constructor
	}
	for _, p := range params {
		vp, err := parseValueParam(p, pkg, scope)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", d.FqName)
		}
		d.ValueParams = append(d.ValueParams, vp)
	}
	switch kind {
	case kotlin.DeclFunction:
		if d.IsConstructor() {
			break
		}
		ret := n.Returns
		if ret == "" {
			ret = "Unit"
		}
		if d.Returns, err = typ(ret); err != nil {
			return nil, errors.Wrapf(err, "%s: returns", d.FqName)
		}
	case kotlin.DeclProperty:
		if n.Type == "" {
			return nil, errors.Newf("%s: property without type", d.FqName)
		}
		if d.Type, err = typ(n.Type); err != nil {
			return nil, errors.Wrapf(err, "%s: type", d.FqName)
		}
	case kotlin.DeclTypealias:
		if n.Target == "" {
			return nil, errors.Newf("%s: typealias without target", d.FqName)
		}
		if d.Target, err = typ(n.Target); err != nil {
			return nil, errors.Wrapf(err, "%s: target", d.FqName)
		}
	}
	for _, s := range n.Supertypes {
		st, err := typ(s)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: supertype", d.FqName)
		}
		d.Supertypes = append(d.Supertypes, st)
	}
	d.EnumEntries = n.Entries

	for i := range n.Members {
		m, err := n.Members[i].build(pkg, scope, d.FqName)
		if err != nil {
			return nil, err
		}
		d.Members = append(d.Members, m)
	}
	return d, nil
}

func (n *declNode) applyModifiers(d *kotlin.Declaration) error {
	switch n.Visibility {
	case "", "public":
		d.Visibility = kotlin.VisibilityPublic
	case "protected":
		d.Visibility = kotlin.VisibilityProtected
	case "internal":
		d.Visibility = kotlin.VisibilityInternal
	case "private":
		d.Visibility = kotlin.VisibilityPrivate
	default:
		return errors.Newf("unknown visibility %q", n.Visibility)
	}
	for _, m := range n.Modifiers {
		switch m {
		case "final":
			d.Modality = kotlin.ModalityFinal
		case "open":
			d.Modality = kotlin.ModalityOpen
		case "abstract":
			d.Modality = kotlin.ModalityAbstract
		case "sealed":
			d.Modality = kotlin.ModalitySealed
		default:
			flag, ok := kotlin.ParseFlag(m)
			if !ok {
				return errors.Newf("unknown modifier %q", m)
			}
			d.Flags |= flag
		}
	}
	// interfaces are implicitly abstract
	if d.IsInterface() && d.Modality == kotlin.ModalityFinal {
		d.Modality = kotlin.ModalityAbstract
	}
	return nil
}

// parseTypeParams reads "[reified] [in|out] Name [: Bound & Bound2]".
// All names are put in scope before bounds are parsed, so F-bounds resolve.
func parseTypeParams(srcs []string, pkg string, outer []string) ([]kotlin.TypeParameter, []string, error) {
	if len(srcs) == 0 {
		return nil, nil, nil
	}
	type raw struct {
		head, bounds string
	}
	raws := make([]raw, len(srcs))
	names := make([]string, len(srcs))
	out := make([]kotlin.TypeParameter, len(srcs))
	for i, src := range srcs {
		head, bounds, _ := strings.Cut(src, ":")
		raws[i] = raw{head: head, bounds: bounds}
		fields := strings.Fields(head)
		if len(fields) == 0 {
			return nil, nil, errors.New("empty type parameter")
		}
		for _, f := range fields[:len(fields)-1] {
			switch f {
			case "reified":
				out[i].Reified = true
			case "in":
				out[i].Variance = kotlin.VarianceIn
			case "out":
				out[i].Variance = kotlin.VarianceOut
			default:
				return nil, nil, errors.Newf("type parameter %q: unknown modifier %q", src, f)
			}
		}
		out[i].Name = fields[len(fields)-1]
		names[i] = out[i].Name
	}
	scope := append(append([]string(nil), outer...), names...)
	for i, r := range raws {
		if strings.TrimSpace(r.bounds) == "" {
			continue
		}
		for _, b := range strings.Split(r.bounds, "&") {
			t, err := ParseType(b, pkg, scope)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "type parameter %s", out[i].Name)
			}
			out[i].Bounds = append(out[i].Bounds, t)
		}
	}
	return out, names, nil
}

// parseValueParam reads "[vararg] name: Type [= default]".
func parseValueParam(src, pkg string, scope []string) (kotlin.ValueParam, error) {
	var vp kotlin.ValueParam
	src = strings.TrimSpace(src)
	if rest, ok := strings.CutPrefix(src, "vararg "); ok {
		vp.Vararg = true
		src = strings.TrimSpace(rest)
	}
	name, typ, ok := strings.Cut(src, ":")
	if !ok {
		return vp, errors.Newf("parameter %q: expected 'name: Type'", src)
	}
	vp.Name = strings.TrimSpace(name)
	if vp.Name == "" {
		return vp, errors.Newf("parameter %q: empty name", src)
	}
	if t, _, hasDefault := strings.Cut(typ, "="); hasDefault {
		vp.HasDefault = true
		typ = t
	}
	t, err := ParseType(typ, pkg, scope)
	if err != nil {
		return vp, errors.Wrapf(err, "parameter %s", vp.Name)
	}
	vp.Type = t
	return vp, nil
}
