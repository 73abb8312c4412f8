package swift

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for the standard Swift types the mapper targets.
type Builtins struct {
	Void       TypeID
	Never      TypeID
	Bool       TypeID
	Int8       TypeID
	Int16      TypeID
	Int32      TypeID
	Int64      TypeID
	UInt8      TypeID
	UInt16     TypeID
	UInt32     TypeID
	UInt64     TypeID
	Float      TypeID
	Double     TypeID
	CodeUnit   TypeID
	String     TypeID
	KotlinBase TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// An interner is owned by one module and is not safe for concurrent use.
type Interner struct {
	types    []Type
	index    map[Type]TypeID
	builtins Builtins

	nominals     []NominalInfo
	nominalIndex map[string]TypeID
	params       []string
	paramIndex   map[string]TypeID
	closures     []ClosureInfo
	tuples       []TupleInfo
}

// NewInterner constructs an interner seeded with builtin types.
func NewInterner() *Interner {
	in := &Interner{
		index:        make(map[Type]TypeID, 64),
		nominalIndex: make(map[string]TypeID),
		paramIndex:   make(map[string]TypeID),
	}
	// slot 0 of every table is the invalid sentinel
	in.types = append(in.types, Type{})
	in.nominals = append(in.nominals, NominalInfo{})
	in.params = append(in.params, "")
	in.closures = append(in.closures, ClosureInfo{})
	in.tuples = append(in.tuples, TupleInfo{})

	in.builtins = Builtins{
		Void:       in.Intern(Type{Kind: KindVoid}),
		Never:      in.Intern(Type{Kind: KindNever}),
		Bool:       in.Intern(Type{Kind: KindBool}),
		Int8:       in.Intern(MakeInt(Width8)),
		Int16:      in.Intern(MakeInt(Width16)),
		Int32:      in.Intern(MakeInt(Width32)),
		Int64:      in.Intern(MakeInt(Width64)),
		UInt8:      in.Intern(MakeUInt(Width8)),
		UInt16:     in.Intern(MakeUInt(Width16)),
		UInt32:     in.Intern(MakeUInt(Width32)),
		UInt64:     in.Intern(MakeUInt(Width64)),
		Float:      in.Intern(Type{Kind: KindFloat}),
		Double:     in.Intern(Type{Kind: KindDouble}),
		CodeUnit:   in.Intern(Type{Kind: KindCodeUnit}),
		String:     in.Intern(Type{Kind: KindString}),
		KotlinBase: in.Intern(Type{Kind: KindKotlinBase}),
	}
	return in
}

// Builtins returns TypeIDs for builtin types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Len reports the number of interned types.
func (in *Interner) Len() int {
	return len(in.types) - 1
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	if id, ok := in.index[t]; ok {
		return id
	}
	return in.internRaw(t)
}

func (in *Interner) internRaw(t Type) TypeID {
	id := TypeID(toUint32(len(in.types), "types"))
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("swift: invalid TypeID")
	}
	return tt
}

// Optional wraps elem; optionals never nest.
func (in *Interner) Optional(elem TypeID) TypeID {
	if tt, ok := in.Lookup(elem); ok && tt.Kind == KindOptional {
		return elem
	}
	return in.Intern(MakeOptional(elem))
}

// RegisterNominal creates or finds a nominal reference.
func (in *Interner) RegisterNominal(info NominalInfo) TypeID {
	var key strings.Builder
	key.WriteString(info.Ref.String())
	if info.Protocol {
		key.WriteString("p")
	}
	for _, a := range info.Args {
		key.WriteByte(',')
		key.WriteString(strconv.FormatUint(uint64(a), 10))
	}
	if id, ok := in.nominalIndex[key.String()]; ok {
		return id
	}
	in.nominals = append(in.nominals, NominalInfo{Ref: info.Ref, Args: cloneIDs(info.Args), Protocol: info.Protocol})
	slot := toUint32(len(in.nominals)-1, "nominal info")
	id := in.internRaw(Type{Kind: KindNominal, Payload: slot})
	in.nominalIndex[key.String()] = id
	return id
}

// NominalInfo returns metadata for a nominal TypeID.
func (in *Interner) NominalInfo(id TypeID) (*NominalInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindNominal || int(tt.Payload) >= len(in.nominals) {
		return nil, false
	}
	return &in.nominals[tt.Payload], true
}

// RegisterParam creates or finds a generic parameter reference.
func (in *Interner) RegisterParam(name string) TypeID {
	if id, ok := in.paramIndex[name]; ok {
		return id
	}
	in.params = append(in.params, name)
	slot := toUint32(len(in.params)-1, "param")
	id := in.internRaw(Type{Kind: KindParam, Payload: slot})
	in.paramIndex[name] = id
	return id
}

// ParamName returns the name of a generic parameter TypeID.
func (in *Interner) ParamName(id TypeID) (string, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindParam || int(tt.Payload) >= len(in.params) {
		return "", false
	}
	return in.params[tt.Payload], true
}

// RegisterClosure creates or finds a closure type.
func (in *Interner) RegisterClosure(params []TypeID, result TypeID, async bool) TypeID {
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind != KindClosure || int(tt.Payload) >= len(in.closures) {
			continue
		}
		info := in.closures[tt.Payload]
		if info.Result == result && info.Async == async && slices.Equal(info.Params, params) {
			return id
		}
	}
	in.closures = append(in.closures, ClosureInfo{Params: cloneIDs(params), Result: result, Async: async})
	slot := toUint32(len(in.closures)-1, "closure info")
	return in.internRaw(Type{Kind: KindClosure, Payload: slot})
}

// ClosureInfo retrieves closure metadata by TypeID.
func (in *Interner) ClosureInfo(id TypeID) (*ClosureInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindClosure || int(tt.Payload) >= len(in.closures) {
		return nil, false
	}
	return &in.closures[tt.Payload], true
}

// RegisterTuple creates or finds a tuple type with the given elements.
func (in *Interner) RegisterTuple(elems []TypeID) TypeID {
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind != KindTuple || int(tt.Payload) >= len(in.tuples) {
			continue
		}
		if slices.Equal(in.tuples[tt.Payload].Elems, elems) {
			return id
		}
	}
	in.tuples = append(in.tuples, TupleInfo{Elems: cloneIDs(elems)})
	slot := toUint32(len(in.tuples)-1, "tuple info")
	return in.internRaw(Type{Kind: KindTuple, Payload: slot})
}

// TupleInfo returns the element types for a tuple TypeID.
func (in *Interner) TupleInfo(id TypeID) (*TupleInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindTuple || int(tt.Payload) >= len(in.tuples) {
		return nil, false
	}
	return &in.tuples[tt.Payload], true
}

func toUint32(n int, what string) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("%s overflow: %w", what, err))
	}
	return v
}
