package fixture

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"klibexport/internal/kotlin"
)

var builtinShortNames = map[string]kotlin.FqName{
	"Boolean":     "kotlin/Boolean",
	"Byte":        "kotlin/Byte",
	"Short":       "kotlin/Short",
	"Int":         "kotlin/Int",
	"Long":        "kotlin/Long",
	"UByte":       "kotlin/UByte",
	"UShort":      "kotlin/UShort",
	"UInt":        "kotlin/UInt",
	"ULong":       "kotlin/ULong",
	"Float":       "kotlin/Float",
	"Double":      "kotlin/Double",
	"Char":        "kotlin/Char",
	"String":      "kotlin/String",
	"Unit":        "kotlin/Unit",
	"Nothing":     "kotlin/Nothing",
	"Any":         "kotlin/Any",
	"Array":       "kotlin/Array",
	"List":        "kotlin/collections/List",
	"MutableList": "kotlin/collections/MutableList",
	"Set":         "kotlin/collections/Set",
	"MutableSet":  "kotlin/collections/MutableSet",
	"Map":         "kotlin/collections/Map",
	"MutableMap":  "kotlin/collections/MutableMap",
}

// typeParser reads Kotlin type syntax:
//
//	type   := "suspend"? base "?"*
//	base   := "(" types ")" "->" type        function
//	        | "(" type ")"                   grouping
//	        | "(" type "," types ")"         tuple
//	        | name args? ("." "(" types ")" "->" type)?
//	args   := "<" arg ("," arg)* ">"
//	arg    := "*" | ("in" | "out")? type
//
// Unqualified names resolve to builtins, type parameters in scope, or the
// current package, in that order; names with a lower-case first segment are
// fully qualified. "!reason" yields an error type.
type typeParser struct {
	src    string
	pos    int
	pkg    string
	params map[string]bool
}

// ParseType parses src in the context of package pkg with the given type
// parameters in scope.
func ParseType(src, pkg string, typeParams []string) (*kotlin.TypeRef, error) {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "!") {
		return kotlin.ErrorType(strings.TrimSpace(src[1:])), nil
	}
	p := &typeParser{src: src, pkg: pkg, params: make(map[string]bool, len(typeParams))}
	for _, tp := range typeParams {
		p.params[tp] = true
	}
	t, err := p.parseType()
	if err != nil {
		return nil, errors.Wrapf(err, "type %q", src)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, errors.Newf("type %q: unexpected %q at %d", src, p.src[p.pos:], p.pos)
	}
	return t, nil
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) eat(s string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], s) {
		p.pos += len(s)
		return true
	}
	return false
}

// keyword consumes kw only when it is followed by a space.
func (p *typeParser) keyword(kw string) bool {
	p.skipSpace()
	rest := p.src[p.pos:]
	if strings.HasPrefix(rest, kw+" ") {
		p.pos += len(kw) + 1
		return true
	}
	return false
}

func (p *typeParser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if r == '_' || r == '$' || unicode.IsLetter(r) || (p.pos > start && unicode.IsDigit(r)) {
			p.pos += size
			continue
		}
		break
	}
	if start == p.pos {
		return "", errors.Newf("expected identifier at %d", start)
	}
	return p.src[start:p.pos], nil
}

func (p *typeParser) parseType() (*kotlin.TypeRef, error) {
	suspend := p.keyword("suspend")
	t, err := p.parseBase(suspend)
	if err != nil {
		return nil, err
	}
	for p.peek() == '?' {
		p.pos++
		t = kotlin.Nullable(t)
	}
	return t, nil
}

func (p *typeParser) parseList(close byte) ([]*kotlin.TypeRef, error) {
	var out []*kotlin.TypeRef
	if p.peek() == close {
		p.pos++
		return out, nil
	}
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		switch p.peek() {
		case ',':
			p.pos++
		case close:
			p.pos++
			return out, nil
		default:
			return nil, errors.Newf("expected ',' or %q at %d", close, p.pos)
		}
	}
}

func (p *typeParser) parseBase(suspend bool) (*kotlin.TypeRef, error) {
	if p.peek() == '(' {
		p.pos++
		elems, err := p.parseList(')')
		if err != nil {
			return nil, err
		}
		if p.eat("->") {
			result, err := p.parseType()
			if err != nil {
				return nil, err
			}
			return kotlin.FunctionType(nil, elems, result, suspend), nil
		}
		if suspend {
			return nil, errors.New("suspend applies to function types only")
		}
		switch len(elems) {
		case 0:
			return nil, errors.New("empty parentheses without '->'")
		case 1:
			return elems[0], nil
		default:
			return kotlin.TupleType(elems...), nil
		}
	}

	name, err := p.parseName()
	if err != nil {
		return nil, err
	}
	var args []kotlin.TypeArg
	if p.peek() == '<' {
		p.pos++
		args, err = p.parseArgs()
		if err != nil {
			return nil, err
		}
	}
	base, err := p.resolve(name, args)
	if err != nil {
		return nil, err
	}

	// receiver function type: Recv.(A) -> B
	if p.peek() == '.' {
		p.pos++
		if p.peek() != '(' {
			return nil, errors.Newf("expected '(' after receiver at %d", p.pos)
		}
		p.pos++
		params, err := p.parseList(')')
		if err != nil {
			return nil, err
		}
		if !p.eat("->") {
			return nil, errors.Newf("expected '->' at %d", p.pos)
		}
		result, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return kotlin.FunctionType(base, params, result, suspend), nil
	}
	if suspend {
		return nil, errors.New("suspend applies to function types only")
	}
	return base, nil
}

// parseName reads a dotted name; a '.' followed by '(' is left for the
// receiver syntax.
func (p *typeParser) parseName() (string, error) {
	first, err := p.ident()
	if err != nil {
		return "", err
	}
	parts := []string{first}
	for p.pos+1 < len(p.src) && p.src[p.pos] == '.' && p.src[p.pos+1] != '(' && p.src[p.pos+1] != ' ' {
		p.pos++
		seg, err := p.ident()
		if err != nil {
			return "", err
		}
		parts = append(parts, seg)
	}
	return strings.Join(parts, "."), nil
}

func (p *typeParser) parseArgs() ([]kotlin.TypeArg, error) {
	var out []kotlin.TypeArg
	for {
		var arg kotlin.TypeArg
		switch {
		case p.eat("*"):
			arg.Projection = kotlin.ProjectionStar
		default:
			if p.keyword("in") {
				arg.Projection = kotlin.ProjectionIn
			} else if p.keyword("out") {
				arg.Projection = kotlin.ProjectionOut
			}
			t, err := p.parseType()
			if err != nil {
				return nil, err
			}
			arg.Type = t
		}
		out = append(out, arg)
		switch p.peek() {
		case ',':
			p.pos++
		case '>':
			p.pos++
			return out, nil
		default:
			return nil, errors.Newf("expected ',' or '>' at %d", p.pos)
		}
	}
}

func (p *typeParser) resolve(name string, args []kotlin.TypeArg) (*kotlin.TypeRef, error) {
	if !strings.Contains(name, ".") {
		if fq, ok := builtinShortNames[name]; ok {
			return kotlin.ClassType(fq, args...), nil
		}
		if p.params[name] {
			if len(args) > 0 {
				return nil, errors.Newf("type parameter %s cannot take arguments", name)
			}
			return kotlin.TypeParam(name), nil
		}
	}
	first, _, dotted := strings.Cut(name, ".")
	if r, _ := utf8.DecodeRuneInString(first); !dotted || unicode.IsUpper(r) {
		// Simple or Outer.Inner in the current package
		return kotlin.ClassType(kotlin.NewFqName(p.pkg, name), args...), nil
	}
	return kotlin.ClassType(kotlin.ParseDottedFqName(name), args...), nil
}
