package swift

import (
	"fmt"
	"strings"

	"klibexport/internal/kotlin"
)

// NameFunc returns the qualified Swift spelling of a declaration reference
// as seen from the unit being rendered.
type NameFunc func(ref kotlin.Ref) (string, bool)

// Render spells id as a Swift type in a value position. Protocol
// references become existentials.
func (in *Interner) Render(id TypeID, names NameFunc) (string, error) {
	var sb strings.Builder
	if err := in.render(&sb, id, names, true); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RenderConstraint spells id as used in inheritance clauses and generic
// constraints, where protocols are named plainly.
func (in *Interner) RenderConstraint(id TypeID, names NameFunc) (string, error) {
	var sb strings.Builder
	if err := in.render(&sb, id, names, false); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (in *Interner) render(sb *strings.Builder, id TypeID, names NameFunc, value bool) error {
	tt, ok := in.Lookup(id)
	if !ok {
		return fmt.Errorf("swift: invalid type id %d", id)
	}
	switch tt.Kind {
	case KindVoid:
		sb.WriteString("Swift.Void")
	case KindNever:
		sb.WriteString("Swift.Never")
	case KindBool:
		sb.WriteString("Swift.Bool")
	case KindInt:
		fmt.Fprintf(sb, "Swift.Int%d", tt.Width)
	case KindUInt:
		fmt.Fprintf(sb, "Swift.UInt%d", tt.Width)
	case KindFloat:
		sb.WriteString("Swift.Float")
	case KindDouble:
		sb.WriteString("Swift.Double")
	case KindCodeUnit:
		sb.WriteString("Swift.Unicode.UTF16.CodeUnit")
	case KindString:
		sb.WriteString("Swift.String")
	case KindKotlinBase:
		sb.WriteString("KotlinRuntime.KotlinBase")
	case KindOptional:
		wrap := in.needsParens(tt.Elem)
		if wrap {
			sb.WriteByte('(')
		}
		if err := in.render(sb, tt.Elem, names, true); err != nil {
			return err
		}
		if wrap {
			sb.WriteByte(')')
		}
		sb.WriteByte('?')
	case KindArray:
		sb.WriteByte('[')
		if err := in.render(sb, tt.Elem, names, true); err != nil {
			return err
		}
		sb.WriteByte(']')
	case KindSet:
		sb.WriteString("Swift.Set<")
		if err := in.render(sb, tt.Elem, names, true); err != nil {
			return err
		}
		sb.WriteByte('>')
	case KindDictionary:
		sb.WriteByte('[')
		if err := in.render(sb, tt.Key, names, true); err != nil {
			return err
		}
		sb.WriteString(": ")
		if err := in.render(sb, tt.Elem, names, true); err != nil {
			return err
		}
		sb.WriteByte(']')
	case KindNominal:
		info, _ := in.NominalInfo(id)
		name, ok := names(info.Ref)
		if !ok {
			return fmt.Errorf("swift: no binding for declaration %s", info.Ref)
		}
		if info.Protocol && value {
			sb.WriteString("any ")
		}
		sb.WriteString(name)
		if len(info.Args) > 0 {
			sb.WriteByte('<')
			for i, a := range info.Args {
				if i > 0 {
					sb.WriteString(", ")
				}
				if err := in.render(sb, a, names, true); err != nil {
					return err
				}
			}
			sb.WriteByte('>')
		}
	case KindParam:
		name, _ := in.ParamName(id)
		sb.WriteString(name)
	case KindClosure:
		info, _ := in.ClosureInfo(id)
		sb.WriteByte('(')
		for i, p := range info.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := in.render(sb, p, names, true); err != nil {
				return err
			}
		}
		sb.WriteByte(')')
		if info.Async {
			sb.WriteString(" async")
		}
		sb.WriteString(" -> ")
		if err := in.render(sb, info.Result, names, true); err != nil {
			return err
		}
	case KindTuple:
		info, _ := in.TupleInfo(id)
		sb.WriteByte('(')
		for i, e := range info.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := in.render(sb, e, names, true); err != nil {
				return err
			}
		}
		sb.WriteByte(')')
	default:
		return fmt.Errorf("swift: cannot render %s", tt.Kind)
	}
	return nil
}

// needsParens reports whether an optional of id must parenthesise it.
func (in *Interner) needsParens(id TypeID) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	switch tt.Kind {
	case KindClosure:
		return true
	case KindNominal:
		info, _ := in.NominalInfo(id)
		return info.Protocol
	default:
		return false
	}
}

// Refs lists the declarations referenced by id in pre-order.
func (in *Interner) Refs(id TypeID) []kotlin.Ref {
	var out []kotlin.Ref
	in.walk(id, func(ref kotlin.Ref) { out = append(out, ref) })
	return out
}

func (in *Interner) walk(id TypeID, fn func(kotlin.Ref)) {
	tt, ok := in.Lookup(id)
	if !ok {
		return
	}
	switch tt.Kind {
	case KindOptional, KindArray, KindSet:
		in.walk(tt.Elem, fn)
	case KindDictionary:
		in.walk(tt.Key, fn)
		in.walk(tt.Elem, fn)
	case KindNominal:
		info, _ := in.NominalInfo(id)
		fn(info.Ref)
		for _, a := range info.Args {
			in.walk(a, fn)
		}
	case KindClosure:
		info, _ := in.ClosureInfo(id)
		for _, p := range info.Params {
			in.walk(p, fn)
		}
		in.walk(info.Result, fn)
	case KindTuple:
		info, _ := in.TupleInfo(id)
		for _, e := range info.Elems {
			in.walk(e, fn)
		}
	}
}
