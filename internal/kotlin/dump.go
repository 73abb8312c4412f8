package kotlin

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Dump writes a readable declaration tree of m: the module header, then each
// non-empty package in name order with declarations in source order.
func Dump(w io.Writer, m *Module) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "module %s", m.Name)
	if m.ShortName != "" && m.ShortName != m.Name {
		fmt.Fprintf(bw, " (%s)", m.ShortName)
	}
	fmt.Fprintf(bw, " abi=%s\n", m.ABIVersion)
	if len(m.Depends) > 0 {
		fmt.Fprintf(bw, "depends: %s\n", strings.Join(m.Depends, ", "))
	}

	pkgs := append([]*PackageFragment(nil), m.Packages...)
	sort.SliceStable(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
	for _, p := range pkgs {
		if len(p.Decls) == 0 {
			continue
		}
		name := p.Name
		if name == "" {
			name = "<root>"
		}
		fmt.Fprintf(bw, "\npackage %s\n", name)
		for _, d := range p.Decls {
			dumpDecl(bw, d, 1)
		}
	}
	return bw.Flush()
}

func dumpDecl(w *bufio.Writer, d *Declaration, depth int) {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("  ", depth))
	if d.Visibility != VisibilityPublic {
		sb.WriteString(d.Visibility.String() + " ")
	}
	if d.Modality != ModalityFinal {
		sb.WriteString(d.Modality.String() + " ")
	}
	kw := declKeyword(d)
	sb.WriteString(kw)
	if !d.IsConstructor() {
		sb.WriteString(" " + d.Name)
	}
	if len(d.TypeParams) > 0 {
		params := make([]string, len(d.TypeParams))
		for i, tp := range d.TypeParams {
			s := tp.Name
			if v := tp.Variance.String(); v != "" {
				s = v + " " + s
			}
			if tp.Reified {
				s = "reified " + s
			}
			for j, b := range tp.Bounds {
				if j == 0 {
					s += " : "
				} else {
					s += " & "
				}
				s += b.String()
			}
			params[i] = s
		}
		sb.WriteString("<" + strings.Join(params, ", ") + ">")
	}
	sb.WriteString(d.Signature())
	if len(d.Supertypes) > 0 {
		supers := make([]string, len(d.Supertypes))
		for i, s := range d.Supertypes {
			supers[i] = s.String()
		}
		sb.WriteString(" : " + strings.Join(supers, ", "))
	}
	// флаги, которые уже выражены ключевым словом, не повторяем
	var rest []string
	for _, f := range d.Flags.Strings() {
		if f != kw && f != "constructor" {
			rest = append(rest, f)
		}
	}
	if len(rest) > 0 {
		sb.WriteString(" [" + strings.Join(rest, ", ") + "]")
	}
	fmt.Fprintln(w, sb.String())

	if len(d.EnumEntries) > 0 {
		fmt.Fprintf(w, "%sentries: %s\n", strings.Repeat("  ", depth+1), strings.Join(d.EnumEntries, ", "))
	}
	for _, mem := range d.Members {
		dumpDecl(w, mem, depth+1)
	}
}

func declKeyword(d *Declaration) string {
	switch d.Kind {
	case DeclClass:
		switch {
		case d.IsInterface():
			return "interface"
		case d.IsObject():
			return "object"
		}
		return "class"
	case DeclEnum:
		return "enum"
	case DeclTypealias:
		return "typealias"
	case DeclProperty:
		if d.IsVar() {
			return "var"
		}
		return "val"
	case DeclFunction:
		if d.IsConstructor() {
			return "constructor"
		}
		return "fun"
	default:
		return d.Kind.String()
	}
}
