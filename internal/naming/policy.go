// Package naming binds Swift identifiers to exported declarations.
//
// Packages map to Swift namespaces through a Policy; declarations claim
// identifiers in a Registry in a fixed order so that collisions are always
// resolved the same way.
package naming

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"klibexport/internal/diag"
	"klibexport/internal/kotlin"
	"klibexport/internal/project"
	"klibexport/internal/swift"
)

// ErrConfiguration marks fatal naming configuration problems.
var ErrConfiguration = project.ErrConfiguration

// ConfigError is a fatal configuration problem with its diagnostic code.
type ConfigError struct {
	Code diag.Code
	Msg  string
}

func (e *ConfigError) Error() string { return e.Msg }

func configError(code diag.Code, hint string, format string, args ...any) error {
	var err error = &ConfigError{Code: code, Msg: fmt.Sprintf(format, args...)}
	if hint != "" {
		err = errors.WithHint(err, hint)
	}
	return errors.Mark(err, ErrConfiguration)
}

// Transform is the default package to namespace mapping.
type Transform uint8

const (
	// TransformNested keeps every package segment as a nested namespace.
	TransformNested Transform = iota
	// TransformFlatten puts all declarations at the module top level.
	TransformFlatten
	// TransformPascal joins the segments into one PascalCase namespace.
	TransformPascal
)

func (t Transform) String() string {
	switch t {
	case TransformFlatten:
		return "flatten"
	case TransformPascal:
		return "pascal"
	default:
		return "nested"
	}
}

// ParseTransform reads a policy name; "" means nested.
func ParseTransform(s string) (Transform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nested":
		return TransformNested, nil
	case "flatten", "flat":
		return TransformFlatten, nil
	case "pascal":
		return TransformPascal, nil
	default:
		return TransformNested, configError(diag.ConfInvalidPolicy,
			"valid policies are nested, flatten and pascal", "unknown naming policy %q", s)
	}
}

// Policy maps source packages to Swift namespace paths.
type Policy struct {
	Default Transform
	// Overrides maps a package (and its sub-packages) to a dotted Swift
	// namespace path; "" places declarations at the module top level.
	Overrides map[string]string
}

var titleCaser = cases.Title(language.Und, cases.NoLower)

// Namespace returns the escaped Swift namespace path for pkg.
func (p Policy) Namespace(pkg string) string {
	if target, rest, ok := p.override(pkg); ok {
		return joinPath(target, nestedPath(rest))
	}
	return p.transform(pkg)
}

// override finds the longest override key covering pkg.
func (p Policy) override(pkg string) (target, rest string, ok bool) {
	best := -1
	for src, tgt := range p.Overrides {
		covered := src == pkg || (src != "" && strings.HasPrefix(pkg, src+"."))
		if !covered || len(src) <= best {
			continue
		}
		best = len(src)
		target, ok = tgt, true
		rest = strings.TrimPrefix(strings.TrimPrefix(pkg, src), ".")
	}
	return target, rest, ok
}

func (p Policy) transform(pkg string) string {
	if pkg == "" {
		return ""
	}
	switch p.Default {
	case TransformFlatten:
		return ""
	case TransformPascal:
		var sb strings.Builder
		for _, s := range strings.Split(pkg, ".") {
			sb.WriteString(titleCaser.String(s))
		}
		ident, _ := Sanitize(sb.String())
		return swift.Escape(ident)
	default:
		return nestedPath(pkg)
	}
}

func nestedPath(pkg string) string {
	if pkg == "" {
		return ""
	}
	segs := strings.Split(pkg, ".")
	for i, s := range segs {
		ident, _ := Sanitize(s)
		segs[i] = swift.Escape(ident)
	}
	return strings.Join(segs, ".")
}

func joinPath(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "." + b
	}
}

// Validate checks overrides against the loaded modules. Targets must be
// valid namespace paths and every overridden package must exist in at
// least one module.
func (p Policy) Validate(mods []*kotlin.Module) error {
	srcs := make([]string, 0, len(p.Overrides))
	for src := range p.Overrides {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)
	for _, src := range srcs {
		target := p.Overrides[src]
		if !swift.IsNamespacePath(target) {
			return configError(diag.ConfInvalidTarget,
				"targets are dot separated Swift identifiers, or empty for the module top level",
				"package %q: invalid target namespace %q", src, target)
		}
		found := false
		for _, m := range mods {
			if m.HasPackage(src) {
				found = true
				break
			}
		}
		if !found {
			return configError(diag.ConfMissingTarget,
				"remove the override or load the module that declares the package",
				"package %q is not declared by any loaded module", src)
		}
	}
	return nil
}

// CodeOf extracts the diagnostic code of a configuration error.
func CodeOf(err error) (diag.Code, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return diag.UnknownCode, false
}
