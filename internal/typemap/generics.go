package typemap

import (
	"klibexport/internal/diag"
	"klibexport/internal/kotlin"
	"klibexport/internal/swift"
)

// GenericParam is a Swift generic parameter with an optional constraint.
type GenericParam struct {
	Name  string
	Bound swift.TypeID // NoTypeID when unconstrained
}

// TypeParams maps declaration type parameters. Declaration-site variance,
// multiple bounds and bounds mentioning the declaration's own parameters
// have no Swift counterpart.
func (m *Mapper) TypeParams(tps []kotlin.TypeParameter) ([]GenericParam, []kotlin.Ref, error) {
	if len(tps) == 0 {
		return nil, nil, nil
	}
	own := make(map[string]bool, len(tps))
	for _, tp := range tps {
		own[tp.Name] = true
	}
	var deps []kotlin.Ref
	out := make([]GenericParam, 0, len(tps))
	for _, tp := range tps {
		if tp.Variance != kotlin.VarianceInvariant {
			return nil, deps, unsupported(diag.UnsVariance, "type parameter %s declares %s variance", tp.Name, tp.Variance)
		}
		if len(tp.Bounds) > 1 {
			return nil, deps, unsupported(diag.UnsBounds, "type parameter %s has %d upper bounds", tp.Name, len(tp.Bounds))
		}
		gp := GenericParam{Name: tp.Name}
		if len(tp.Bounds) == 1 {
			bound := tp.Bounds[0]
			if mentionsParams(bound, own) {
				return nil, deps, unsupported(diag.UnsBounds, "type parameter %s has a self-referential bound %s", tp.Name, bound)
			}
			// Swift constraints are never optional; T : X? constrains to X
			if bound.Kind == kotlin.TypeNullable {
				bound = bound.Inner
			}
			mapped, err := m.Map(bound)
			deps = append(deps, mapped.Deps...)
			if err != nil {
				return nil, deps, err
			}
			gp.Bound = mapped.Type
		}
		out = append(out, gp)
	}
	return out, deps, nil
}

func mentionsParams(t *kotlin.TypeRef, names map[string]bool) bool {
	found := false
	t.Walk(func(n *kotlin.TypeRef) bool {
		if n.Kind == kotlin.TypeParamRef && names[string(n.Name)] {
			found = true
		}
		return !found
	})
	return found
}
