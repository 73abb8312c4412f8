package naming

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"klibexport/internal/kotlin"
	"klibexport/internal/swift"
)

// Sanitize turns a source name into a plain Swift identifier: NFC form,
// invalid characters replaced by '_', a leading digit prefixed with '_'.
// changed reports whether the result differs from name.
func Sanitize(name string) (ident string, changed bool) {
	nfc := norm.NFC.String(name)
	if nfc == "" {
		return "_", true
	}
	var sb strings.Builder
	sb.Grow(len(nfc) + 1)
	for i, r := range nfc {
		switch {
		case i == 0 && unicode.IsDigit(r):
			sb.WriteByte('_')
			sb.WriteRune(r)
		case i == 0 && !swift.IsIdentifierStart(r), !swift.IsIdentifierPart(r):
			sb.WriteByte('_')
		default:
			sb.WriteRune(r)
		}
	}
	ident = sb.String()
	return ident, ident != name
}

// Binding is the Swift name of one declaration.
type Binding struct {
	// Namespace is the escaped dotted path, "" for the module top level.
	Namespace string
	// Name is the escaped identifier.
	Name    string
	Renamed bool
}

// Qualified returns the namespace-qualified name.
func (b Binding) Qualified() string { return joinPath(b.Namespace, b.Name) }

// Claimant describes the declaration asking for an identifier.
type Claimant struct {
	Ref    kotlin.Ref
	Module string // sanitized module display name
	Kind   kotlin.DeclKind
	// Params is the overload key of functions; unused for other kinds.
	Params string
	// Namespace marks a namespace enum segment. Segments are shared by
	// every package and module that emits into them.
	Namespace bool
}

type claimKey struct {
	ns    string
	ident string
}

// Registry tracks identifiers already taken per namespace. It is a plain
// value owned by one resolution pass.
type Registry struct {
	claims   map[claimKey][]Claimant
	bindings map[kotlin.Ref]Binding
	log      []LogEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		claims:   make(map[claimKey][]Claimant),
		bindings: make(map[kotlin.Ref]Binding),
	}
}

// Claim reserves ident (unescaped) in namespace ns for c and returns the
// identifier actually granted. A function may share an identifier with
// other functions whose parameters differ; every other overlap collides.
// On collision the name is qualified with the module when the first
// claimant comes from another module, with the kind otherwise, and then
// numbered from 2 until free. prev is the claimant that caused the rename.
func (r *Registry) Claim(ns, ident string, c Claimant) (granted string, prev *Claimant) {
	key := claimKey{ns: ns, ident: ident}
	holders := r.claims[key]
	if compatible(holders, c) {
		r.claims[key] = append(holders, c)
		return ident, nil
	}
	first := holders[0]
	base := ident + "_" + c.Kind.String()
	if first.Module != c.Module {
		base = c.Module + "_" + ident
	}
	candidate := base
	for n := 2; r.taken(ns, candidate); n++ {
		candidate = base + "_" + strconv.Itoa(n)
	}
	r.claims[claimKey{ns: ns, ident: candidate}] = []Claimant{c}
	return candidate, &first
}

func (r *Registry) taken(ns, ident string) bool {
	return len(r.claims[claimKey{ns: ns, ident: ident}]) > 0
}

func compatible(holders []Claimant, c Claimant) bool {
	if len(holders) == 0 {
		return true
	}
	if c.Namespace {
		for _, h := range holders {
			if !h.Namespace {
				return false
			}
		}
		return true
	}
	if c.Kind != kotlin.DeclFunction {
		return false
	}
	for _, h := range holders {
		if h.Kind != kotlin.DeclFunction || h.Params == c.Params {
			return false
		}
	}
	return true
}

// Lookup returns the binding of ref.
func (r *Registry) Lookup(ref kotlin.Ref) (Binding, bool) {
	b, ok := r.bindings[ref]
	return b, ok
}

// Len reports the number of bound declarations.
func (r *Registry) Len() int { return len(r.bindings) }

func (r *Registry) bind(ref kotlin.Ref, b Binding) { r.bindings[ref] = b }

// LogEntry is one line of the binding log.
type LogEntry struct {
	Module string
	Source string
	Swift  string
	Reason string
}

func (e LogEntry) String() string {
	return fmt.Sprintf("%s\t%s\t%s\t%s", e.Module, e.Source, e.Swift, e.Reason)
}

// Log returns the binding log in resolution order.
func (r *Registry) Log() []LogEntry { return r.log }
