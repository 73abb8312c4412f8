package swift

import (
	"fmt"

	"klibexport/internal/kotlin"
)

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates the Swift type shapes the exporter produces.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindNever
	KindBool
	KindInt
	KindUInt
	KindFloat
	KindDouble
	KindCodeUnit
	KindString
	KindKotlinBase
	KindOptional
	KindArray
	KindSet
	KindDictionary
	KindNominal
	KindParam
	KindClosure
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindNever:
		return "never"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUInt:
		return "uint"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindCodeUnit:
		return "codeunit"
	case KindString:
		return "string"
	case KindKotlinBase:
		return "kotlinbase"
	case KindOptional:
		return "optional"
	case KindArray:
		return "array"
	case KindSet:
		return "set"
	case KindDictionary:
		return "dictionary"
	case KindNominal:
		return "nominal"
	case KindParam:
		return "param"
	case KindClosure:
		return "closure"
	case KindTuple:
		return "tuple"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers.
type Width uint8

const (
	WidthAny Width = 0
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
)

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind    Kind
	Elem    TypeID // optional/array/set element, dictionary value
	Key     TypeID // dictionary key
	Width   Width  // for integers
	Payload uint32 // side table slot for nominal/param/closure/tuple
}

// MakeInt describes a signed integer of the given width.
func MakeInt(width Width) Type {
	return Type{Kind: KindInt, Width: width}
}

// MakeUInt describes an unsigned integer type.
func MakeUInt(width Width) Type {
	return Type{Kind: KindUInt, Width: width}
}

// MakeOptional describes T?.
func MakeOptional(elem TypeID) Type {
	return Type{Kind: KindOptional, Elem: elem}
}

// MakeArray describes [T].
func MakeArray(elem TypeID) Type {
	return Type{Kind: KindArray, Elem: elem}
}

// MakeSet describes Swift.Set<T>.
func MakeSet(elem TypeID) Type {
	return Type{Kind: KindSet, Elem: elem}
}

// MakeDictionary describes [K: V].
func MakeDictionary(key, value TypeID) Type {
	return Type{Kind: KindDictionary, Key: key, Elem: value}
}

// NominalInfo describes a reference to an exported declaration. The Swift
// spelling is not known when the type is interned; it is looked up through
// the naming bindings at render time.
type NominalInfo struct {
	Ref      kotlin.Ref
	Args     []TypeID
	Protocol bool // rendered as an existential ("any P") in value positions
}

// ClosureInfo stores metadata for closure types.
type ClosureInfo struct {
	Params []TypeID
	Result TypeID
	Async  bool
}

// TupleInfo stores the element types for a tuple type.
type TupleInfo struct {
	Elems []TypeID
}

func cloneIDs(ids []TypeID) []TypeID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]TypeID, len(ids))
	copy(out, ids)
	return out
}
