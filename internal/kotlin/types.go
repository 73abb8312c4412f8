package kotlin

import (
	"fmt"
	"strings"
)

// TypeKind enumerates the shapes a TypeRef can take.
type TypeKind uint8

const (
	TypeInvalid TypeKind = iota
	TypePrimitive
	TypeNullable
	TypeClass
	TypeGeneric
	TypeFunction
	TypeTuple
	TypeNothing
	TypeAny
	TypeParamRef
	TypeError
)

func (k TypeKind) String() string {
	switch k {
	case TypePrimitive:
		return "primitive"
	case TypeNullable:
		return "nullable"
	case TypeClass:
		return "class"
	case TypeGeneric:
		return "generic"
	case TypeFunction:
		return "function"
	case TypeTuple:
		return "tuple"
	case TypeNothing:
		return "nothing"
	case TypeAny:
		return "any"
	case TypeParamRef:
		return "type-parameter"
	case TypeError:
		return "error"
	default:
		return fmt.Sprintf("TypeKind(%d)", k)
	}
}

// Projection is the use-site variance of a generic argument.
type Projection uint8

const (
	ProjectionInvariant Projection = iota
	ProjectionIn
	ProjectionOut
	ProjectionStar
)

func (p Projection) String() string {
	switch p {
	case ProjectionIn:
		return "in"
	case ProjectionOut:
		return "out"
	case ProjectionStar:
		return "*"
	default:
		return ""
	}
}

// Variance is the declaration-site variance of a type parameter.
type Variance uint8

const (
	VarianceInvariant Variance = iota
	VarianceIn
	VarianceOut
)

func (v Variance) String() string {
	switch v {
	case VarianceIn:
		return "in"
	case VarianceOut:
		return "out"
	default:
		return ""
	}
}

// TypeArg is one argument of a generic type.
type TypeArg struct {
	Projection Projection `msgpack:"p"`
	Type       *TypeRef   `msgpack:"t"`
}

// TypeRef is a tagged variant describing a source type as it appears in
// declaration signatures.
//
//   - Primitive: Name is the builtin FqName ("kotlin/Int").
//   - Nullable: Inner wraps the non-null type.
//   - Class: Name is the classifier FqName.
//   - Generic: Name is the base classifier, Args its arguments.
//   - Function: Params, Result, optional Receiver, Suspend.
//   - Tuple: Params holds the elements.
//   - TypeParamRef: Name is the parameter name.
//   - Error: Name carries the reason the type could not be read.
type TypeRef struct {
	Kind     TypeKind   `msgpack:"k"`
	Name     FqName     `msgpack:"n,omitempty"`
	Args     []TypeArg  `msgpack:"a,omitempty"`
	Inner    *TypeRef   `msgpack:"i,omitempty"`
	Params   []*TypeRef `msgpack:"ps,omitempty"`
	Result   *TypeRef   `msgpack:"r,omitempty"`
	Receiver *TypeRef   `msgpack:"rc,omitempty"`
	Suspend  bool       `msgpack:"s,omitempty"`
}

// builtin classifiers that are modelled as primitives
var primitiveNames = map[FqName]struct{}{
	"kotlin/Boolean": {},
	"kotlin/Byte":    {},
	"kotlin/Short":   {},
	"kotlin/Int":     {},
	"kotlin/Long":    {},
	"kotlin/UByte":   {},
	"kotlin/UShort":  {},
	"kotlin/UInt":    {},
	"kotlin/ULong":   {},
	"kotlin/Float":   {},
	"kotlin/Double":  {},
	"kotlin/Char":    {},
	"kotlin/String":  {},
	"kotlin/Unit":    {},
}

const (
	NameNothing FqName = "kotlin/Nothing"
	NameAny     FqName = "kotlin/Any"
)

// IsPrimitiveName reports whether fq names a builtin modelled as Primitive.
func IsPrimitiveName(fq FqName) bool {
	_, ok := primitiveNames[fq]
	return ok
}

// Primitive builds a builtin type reference; short names are accepted.
func Primitive(name string) *TypeRef {
	fq := FqName(name)
	if !strings.Contains(name, "/") {
		fq = FqName("kotlin/" + name)
	}
	return &TypeRef{Kind: TypePrimitive, Name: fq}
}

// ClassType builds a nominal reference, normalising builtins
// (primitives, Nothing, Any) to their dedicated kinds.
func ClassType(fq FqName, args ...TypeArg) *TypeRef {
	if len(args) == 0 {
		switch {
		case fq == NameNothing:
			return &TypeRef{Kind: TypeNothing}
		case fq == NameAny:
			return &TypeRef{Kind: TypeAny}
		case IsPrimitiveName(fq):
			return &TypeRef{Kind: TypePrimitive, Name: fq}
		}
		return &TypeRef{Kind: TypeClass, Name: fq}
	}
	return &TypeRef{Kind: TypeGeneric, Name: fq, Args: args}
}

// Nullable wraps t; Kotlin nullability is idempotent, so T?? collapses to T?.
func Nullable(t *TypeRef) *TypeRef {
	if t != nil && t.Kind == TypeNullable {
		return t
	}
	return &TypeRef{Kind: TypeNullable, Inner: t}
}

// FunctionType builds a (possibly suspending) function type.
func FunctionType(receiver *TypeRef, params []*TypeRef, result *TypeRef, suspend bool) *TypeRef {
	return &TypeRef{Kind: TypeFunction, Receiver: receiver, Params: params, Result: result, Suspend: suspend}
}

// TupleType builds a tuple type.
func TupleType(elems ...*TypeRef) *TypeRef {
	return &TypeRef{Kind: TypeTuple, Params: elems}
}

// TypeParam references a type parameter by name.
func TypeParam(name string) *TypeRef {
	return &TypeRef{Kind: TypeParamRef, Name: FqName(name)}
}

// ErrorType marks a type the reader could not materialise.
func ErrorType(reason string) *TypeRef {
	return &TypeRef{Kind: TypeError, Name: FqName(reason)}
}

// Invariant wraps t as an invariant generic argument.
func Invariant(t *TypeRef) TypeArg { return TypeArg{Type: t} }

// Star is the star projection argument.
func Star() TypeArg { return TypeArg{Projection: ProjectionStar} }

// IsNullable reports whether the reference is nullable at the top level.
func (t *TypeRef) IsNullable() bool { return t != nil && t.Kind == TypeNullable }

// String renders the type in Kotlin source syntax.
func (t *TypeRef) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TypePrimitive, TypeClass:
		return t.Name.Dotted()
	case TypeNothing:
		return "kotlin.Nothing"
	case TypeAny:
		return "kotlin.Any"
	case TypeNullable:
		inner := t.Inner.String()
		if t.Inner != nil && t.Inner.Kind == TypeFunction {
			inner = "(" + inner + ")"
		}
		return inner + "?"
	case TypeGeneric:
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			switch a.Projection {
			case ProjectionStar:
				args[i] = "*"
			case ProjectionIn, ProjectionOut:
				args[i] = a.Projection.String() + " " + a.Type.String()
			default:
				args[i] = a.Type.String()
			}
		}
		return t.Name.Dotted() + "<" + strings.Join(args, ", ") + ">"
	case TypeFunction:
		var sb strings.Builder
		if t.Suspend {
			sb.WriteString("suspend ")
		}
		if t.Receiver != nil {
			sb.WriteString(t.Receiver.String())
			sb.WriteByte('.')
		}
		sb.WriteByte('(')
		for i, p := range t.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.String())
		}
		sb.WriteString(") -> ")
		sb.WriteString(t.Result.String())
		return sb.String()
	case TypeTuple:
		elems := make([]string, len(t.Params))
		for i, p := range t.Params {
			elems[i] = p.String()
		}
		return "(" + strings.Join(elems, ", ") + ")"
	case TypeParamRef:
		return string(t.Name)
	case TypeError:
		return "<error: " + string(t.Name) + ">"
	default:
		return "<invalid>"
	}
}

// Walk visits t and every nested type reference in pre-order.
func (t *TypeRef) Walk(fn func(*TypeRef) bool) {
	if t == nil || !fn(t) {
		return
	}
	t.Inner.Walk(fn)
	for _, a := range t.Args {
		a.Type.Walk(fn)
	}
	t.Receiver.Walk(fn)
	for _, p := range t.Params {
		p.Walk(fn)
	}
	t.Result.Walk(fn)
}
