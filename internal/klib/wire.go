package klib

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"klibexport/internal/kotlin"
)

// Field numbers of the linkdata messages.
//
//	Header:    1 name, 2 format_version, 3 package (repeated)
//	Fragment:  1 package, 2 string (repeated), 3 type (repeated), 4 decl (repeated)
//	Type:      1 kind, 2 name, 3 arg, 4 inner, 5 param, 6 result, 7 receiver, 8 suspend
//	TypeArg:   1 projection, 2 type
//	Decl:      1 kind, 2 name, 3 visibility, 4 modality, 5 flags, 6 type_param,
//	           7 value_param, 8 returns, 9 receiver, 10 type, 11 target,
//	           12 supertype, 13 enum_entry, 14 member
//	TypeParam: 1 name, 2 variance, 3 bound, 4 reified
//	Param:     1 name, 2 type, 3 has_default, 4 vararg
//
// Strings are indexes into the fragment string table; type references are
// 1-based indexes into the fragment type table and may only point at
// entries that precede the referencing type.
const (
	hdrName    protowire.Number = 1
	hdrVersion protowire.Number = 2
	hdrPackage protowire.Number = 3

	fragPackage protowire.Number = 1
	fragString  protowire.Number = 2
	fragType    protowire.Number = 3
	fragDecl    protowire.Number = 4

	typKind     protowire.Number = 1
	typName     protowire.Number = 2
	typArg      protowire.Number = 3
	typInner    protowire.Number = 4
	typParam    protowire.Number = 5
	typResult   protowire.Number = 6
	typReceiver protowire.Number = 7
	typSuspend  protowire.Number = 8

	argProjection protowire.Number = 1
	argType       protowire.Number = 2

	declKind       protowire.Number = 1
	declName       protowire.Number = 2
	declVisibility protowire.Number = 3
	declModality   protowire.Number = 4
	declFlags      protowire.Number = 5
	declTypeParam  protowire.Number = 6
	declValueParam protowire.Number = 7
	declReturns    protowire.Number = 8
	declReceiver   protowire.Number = 9
	declType       protowire.Number = 10
	declTarget     protowire.Number = 11
	declSupertype  protowire.Number = 12
	declEnumEntry  protowire.Number = 13
	declMember     protowire.Number = 14

	tpName     protowire.Number = 1
	tpVariance protowire.Number = 2
	tpBound    protowire.Number = 3
	tpReified  protowire.Number = 4

	vpName       protowire.Number = 1
	vpType       protowire.Number = 2
	vpHasDefault protowire.Number = 3
	vpVararg     protowire.Number = 4
)

// Header is the decoded linkdata/module message.
type Header struct {
	Name          string
	FormatVersion uint64
	Packages      []string
}

// field is one decoded wire field: Bytes for length-delimited values,
// Varint otherwise.
type field struct {
	Num    protowire.Number
	Type   protowire.Type
	Varint uint64
	Bytes  []byte
}

func (f field) expect(typ protowire.Type) error {
	if f.Type != typ {
		return fmt.Errorf("field %d: wire type %d, expected %d", f.Num, f.Type, typ)
	}
	return nil
}

// walkFields decodes a message field by field. Unknown wire types are
// skipped so newer writers can add fields.
func walkFields(b []byte, visit func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		f := field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.Varint = v
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.Bytes = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		if err := visit(f); err != nil {
			return err
		}
	}
	return nil
}

// DecodeHeader parses the linkdata/module message.
func DecodeHeader(b []byte) (Header, error) {
	var h Header
	err := walkFields(b, func(f field) error {
		switch f.Num {
		case hdrName:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			h.Name = string(f.Bytes)
		case hdrVersion:
			if err := f.expect(protowire.VarintType); err != nil {
				return err
			}
			h.FormatVersion = f.Varint
		case hdrPackage:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			h.Packages = append(h.Packages, string(f.Bytes))
		}
		return nil
	})
	return h, err
}

// EncodeHeader renders the linkdata/module message.
func EncodeHeader(h Header) []byte {
	var b []byte
	b = protowire.AppendTag(b, hdrName, protowire.BytesType)
	b = protowire.AppendString(b, h.Name)
	b = protowire.AppendTag(b, hdrVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, h.FormatVersion)
	for _, p := range h.Packages {
		b = protowire.AppendTag(b, hdrPackage, protowire.BytesType)
		b = protowire.AppendString(b, p)
	}
	return b
}

// fragmentDecoder holds the tables of one fragment while its declarations
// are materialised.
type fragmentDecoder struct {
	pkg     string
	strings []string
	types   []*kotlin.TypeRef
}

// DecodeFragment parses one package fragment into top-level declarations.
func DecodeFragment(b []byte) (pkg string, decls []*kotlin.Declaration, err error) {
	var (
		rawTypes [][]byte
		rawDecls [][]byte
		d        fragmentDecoder
	)
	err = walkFields(b, func(f field) error {
		if err := f.expect(protowire.BytesType); err != nil {
			return err
		}
		switch f.Num {
		case fragPackage:
			d.pkg = string(f.Bytes)
		case fragString:
			d.strings = append(d.strings, string(f.Bytes))
		case fragType:
			rawTypes = append(rawTypes, f.Bytes)
		case fragDecl:
			rawDecls = append(rawDecls, f.Bytes)
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	d.types = make([]*kotlin.TypeRef, 0, len(rawTypes))
	for i, raw := range rawTypes {
		t, err := d.decodeType(raw, i)
		if err != nil {
			return "", nil, fmt.Errorf("type #%d: %w", i, err)
		}
		d.types = append(d.types, t)
	}
	decls = make([]*kotlin.Declaration, 0, len(rawDecls))
	for i, raw := range rawDecls {
		decl, err := d.decodeDecl(raw, "")
		if err != nil {
			return "", nil, fmt.Errorf("declaration #%d: %w", i, err)
		}
		decls = append(decls, decl)
	}
	return d.pkg, decls, nil
}

func (d *fragmentDecoder) str(idx uint64) (string, error) {
	if idx >= uint64(len(d.strings)) {
		return "", fmt.Errorf("string index %d out of range (table has %d)", idx, len(d.strings))
	}
	return d.strings[idx], nil
}

// typeRef resolves a 1-based type index; limit is the number of table
// entries the reference may point at.
func (d *fragmentDecoder) typeRef(ref uint64, limit int) (*kotlin.TypeRef, error) {
	if ref == 0 || ref > uint64(limit) {
		return nil, fmt.Errorf("type reference %d out of range (limit %d)", ref, limit)
	}
	return d.types[ref-1], nil
}

func (d *fragmentDecoder) decodeType(b []byte, self int) (*kotlin.TypeRef, error) {
	t := &kotlin.TypeRef{}
	err := walkFields(b, func(f field) error {
		switch f.Num {
		case typKind:
			if err := f.expect(protowire.VarintType); err != nil {
				return err
			}
			if f.Varint == 0 || f.Varint > uint64(kotlin.TypeError) {
				return fmt.Errorf("unknown type kind %d", f.Varint)
			}
			t.Kind = kotlin.TypeKind(f.Varint)
		case typName:
			if err := f.expect(protowire.VarintType); err != nil {
				return err
			}
			s, err := d.str(f.Varint)
			if err != nil {
				return err
			}
			t.Name = kotlin.FqName(s)
		case typArg:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			arg, err := d.decodeArg(f.Bytes, self)
			if err != nil {
				return err
			}
			t.Args = append(t.Args, arg)
		case typInner, typParam, typResult, typReceiver:
			if err := f.expect(protowire.VarintType); err != nil {
				return err
			}
			ref, err := d.typeRef(f.Varint, self)
			if err != nil {
				return err
			}
			switch f.Num {
			case typInner:
				t.Inner = ref
			case typParam:
				t.Params = append(t.Params, ref)
			case typResult:
				t.Result = ref
			default:
				t.Receiver = ref
			}
		case typSuspend:
			if err := f.expect(protowire.VarintType); err != nil {
				return err
			}
			t.Suspend = protowire.DecodeBool(f.Varint)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if t.Kind == kotlin.TypeInvalid {
		return nil, fmt.Errorf("type without kind")
	}
	if t.Kind == kotlin.TypeNullable && t.Inner == nil {
		return nil, fmt.Errorf("nullable type without inner type")
	}
	if t.Kind == kotlin.TypeFunction && t.Result == nil {
		return nil, fmt.Errorf("function type without result")
	}
	return t, nil
}

func (d *fragmentDecoder) decodeArg(b []byte, self int) (kotlin.TypeArg, error) {
	var arg kotlin.TypeArg
	err := walkFields(b, func(f field) error {
		if err := f.expect(protowire.VarintType); err != nil {
			return err
		}
		switch f.Num {
		case argProjection:
			if f.Varint > uint64(kotlin.ProjectionStar) {
				return fmt.Errorf("unknown projection %d", f.Varint)
			}
			arg.Projection = kotlin.Projection(f.Varint)
		case argType:
			ref, err := d.typeRef(f.Varint, self)
			if err != nil {
				return err
			}
			arg.Type = ref
		}
		return nil
	})
	if err == nil && arg.Type == nil && arg.Projection != kotlin.ProjectionStar {
		err = fmt.Errorf("type argument without type")
	}
	return arg, err
}

func (d *fragmentDecoder) decodeDecl(b []byte, parent kotlin.FqName) (*kotlin.Declaration, error) {
	decl := &kotlin.Declaration{}
	limit := len(d.types)
	var members [][]byte
	err := walkFields(b, func(f field) error {
		switch f.Num {
		case declKind, declVisibility, declModality, declFlags, declName, declEnumEntry,
			declReturns, declReceiver, declType, declTarget, declSupertype:
			if err := f.expect(protowire.VarintType); err != nil {
				return err
			}
		case declTypeParam, declValueParam, declMember:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
		}
		switch f.Num {
		case declKind:
			if f.Varint == 0 || f.Varint > uint64(kotlin.DeclFunction) {
				return fmt.Errorf("unknown declaration kind %d", f.Varint)
			}
			decl.Kind = kotlin.DeclKind(f.Varint)
		case declName:
			s, err := d.str(f.Varint)
			if err != nil {
				return err
			}
			decl.Name = s
		case declVisibility:
			if f.Varint > uint64(kotlin.VisibilityPrivate) {
				return fmt.Errorf("unknown visibility %d", f.Varint)
			}
			decl.Visibility = kotlin.Visibility(f.Varint)
		case declModality:
			if f.Varint > uint64(kotlin.ModalitySealed) {
				return fmt.Errorf("unknown modality %d", f.Varint)
			}
			decl.Modality = kotlin.Modality(f.Varint)
		case declFlags:
			decl.Flags = kotlin.DeclFlags(f.Varint)
		case declTypeParam:
			tp, err := d.decodeTypeParam(f.Bytes)
			if err != nil {
				return err
			}
			decl.TypeParams = append(decl.TypeParams, tp)
		case declValueParam:
			vp, err := d.decodeValueParam(f.Bytes)
			if err != nil {
				return err
			}
			decl.ValueParams = append(decl.ValueParams, vp)
		case declReturns, declReceiver, declType, declTarget, declSupertype:
			ref, err := d.typeRef(f.Varint, limit)
			if err != nil {
				return err
			}
			switch f.Num {
			case declReturns:
				decl.Returns = ref
			case declReceiver:
				decl.Receiver = ref
			case declType:
				decl.Type = ref
			case declTarget:
				decl.Target = ref
			default:
				decl.Supertypes = append(decl.Supertypes, ref)
			}
		case declEnumEntry:
			s, err := d.str(f.Varint)
			if err != nil {
				return err
			}
			decl.EnumEntries = append(decl.EnumEntries, s)
		case declMember:
			members = append(members, f.Bytes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if decl.Kind == kotlin.DeclInvalid {
		return nil, fmt.Errorf("declaration %q without kind", decl.Name)
	}
	if parent == "" {
		decl.FqName = kotlin.NewFqName(d.pkg, decl.Name)
	} else {
		decl.FqName = parent.Child(decl.Name)
	}
	for i, raw := range members {
		m, err := d.decodeDecl(raw, decl.FqName)
		if err != nil {
			return nil, fmt.Errorf("%s member #%d: %w", decl.FqName.Dotted(), i, err)
		}
		decl.Members = append(decl.Members, m)
	}
	return decl, nil
}

func (d *fragmentDecoder) decodeTypeParam(b []byte) (kotlin.TypeParameter, error) {
	var tp kotlin.TypeParameter
	err := walkFields(b, func(f field) error {
		if err := f.expect(protowire.VarintType); err != nil {
			return err
		}
		switch f.Num {
		case tpName:
			s, err := d.str(f.Varint)
			if err != nil {
				return err
			}
			tp.Name = s
		case tpVariance:
			if f.Varint > uint64(kotlin.VarianceOut) {
				return fmt.Errorf("unknown variance %d", f.Varint)
			}
			tp.Variance = kotlin.Variance(f.Varint)
		case tpBound:
			ref, err := d.typeRef(f.Varint, len(d.types))
			if err != nil {
				return err
			}
			tp.Bounds = append(tp.Bounds, ref)
		case tpReified:
			tp.Reified = protowire.DecodeBool(f.Varint)
		}
		return nil
	})
	return tp, err
}

func (d *fragmentDecoder) decodeValueParam(b []byte) (kotlin.ValueParam, error) {
	var vp kotlin.ValueParam
	err := walkFields(b, func(f field) error {
		if err := f.expect(protowire.VarintType); err != nil {
			return err
		}
		switch f.Num {
		case vpName:
			s, err := d.str(f.Varint)
			if err != nil {
				return err
			}
			vp.Name = s
		case vpType:
			ref, err := d.typeRef(f.Varint, len(d.types))
			if err != nil {
				return err
			}
			vp.Type = ref
		case vpHasDefault:
			vp.HasDefault = protowire.DecodeBool(f.Varint)
		case vpVararg:
			vp.Vararg = protowire.DecodeBool(f.Varint)
		}
		return nil
	})
	if err == nil && vp.Type == nil {
		err = fmt.Errorf("parameter %q without type", vp.Name)
	}
	return vp, err
}

// fragmentEncoder builds the string and type tables while declarations are
// appended.
type fragmentEncoder struct {
	strIndex map[string]uint64
	strings  []string
	types    [][]byte
	decls    [][]byte
}

func newFragmentEncoder() *fragmentEncoder {
	return &fragmentEncoder{strIndex: make(map[string]uint64)}
}

func (e *fragmentEncoder) str(s string) uint64 {
	if idx, ok := e.strIndex[s]; ok {
		return idx
	}
	idx := uint64(len(e.strings))
	e.strings = append(e.strings, s)
	e.strIndex[s] = idx
	return idx
}

// typ appends t (children first) and returns its 1-based index.
func (e *fragmentEncoder) typ(t *kotlin.TypeRef) uint64 {
	var (
		inner, result, receiver uint64
		params                  []uint64
		args                    [][]byte
	)
	if t.Inner != nil {
		inner = e.typ(t.Inner)
	}
	for _, a := range t.Args {
		var ab []byte
		ab = protowire.AppendTag(ab, argProjection, protowire.VarintType)
		ab = protowire.AppendVarint(ab, uint64(a.Projection))
		if a.Type != nil {
			ab = protowire.AppendTag(ab, argType, protowire.VarintType)
			ab = protowire.AppendVarint(ab, e.typ(a.Type))
		}
		args = append(args, ab)
	}
	if t.Receiver != nil {
		receiver = e.typ(t.Receiver)
	}
	for _, p := range t.Params {
		params = append(params, e.typ(p))
	}
	if t.Result != nil {
		result = e.typ(t.Result)
	}

	var b []byte
	b = protowire.AppendTag(b, typKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.Kind))
	if t.Name != "" {
		b = protowire.AppendTag(b, typName, protowire.VarintType)
		b = protowire.AppendVarint(b, e.str(string(t.Name)))
	}
	for _, ab := range args {
		b = protowire.AppendTag(b, typArg, protowire.BytesType)
		b = protowire.AppendBytes(b, ab)
	}
	b = appendRef(b, typInner, inner)
	for _, p := range params {
		b = appendRef(b, typParam, p)
	}
	b = appendRef(b, typResult, result)
	b = appendRef(b, typReceiver, receiver)
	if t.Suspend {
		b = protowire.AppendTag(b, typSuspend, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	e.types = append(e.types, b)
	return uint64(len(e.types))
}

func appendRef(b []byte, num protowire.Number, ref uint64) []byte {
	if ref == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, ref)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarintField(b, num, protowire.EncodeBool(v))
}

func (e *fragmentEncoder) encodeDecl(d *kotlin.Declaration) []byte {
	var b []byte
	b = protowire.AppendTag(b, declKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.Kind))
	b = protowire.AppendTag(b, declName, protowire.VarintType)
	b = protowire.AppendVarint(b, e.str(d.Name))
	b = appendVarintField(b, declVisibility, uint64(d.Visibility))
	b = appendVarintField(b, declModality, uint64(d.Modality))
	b = appendVarintField(b, declFlags, uint64(d.Flags))
	for _, tp := range d.TypeParams {
		var tb []byte
		tb = protowire.AppendTag(tb, tpName, protowire.VarintType)
		tb = protowire.AppendVarint(tb, e.str(tp.Name))
		tb = appendVarintField(tb, tpVariance, uint64(tp.Variance))
		for _, bound := range tp.Bounds {
			tb = appendRef(tb, tpBound, e.typ(bound))
		}
		tb = appendBoolField(tb, tpReified, tp.Reified)
		b = protowire.AppendTag(b, declTypeParam, protowire.BytesType)
		b = protowire.AppendBytes(b, tb)
	}
	for _, vp := range d.ValueParams {
		var vb []byte
		vb = protowire.AppendTag(vb, vpName, protowire.VarintType)
		vb = protowire.AppendVarint(vb, e.str(vp.Name))
		if vp.Type != nil {
			vb = appendRef(vb, vpType, e.typ(vp.Type))
		}
		vb = appendBoolField(vb, vpHasDefault, vp.HasDefault)
		vb = appendBoolField(vb, vpVararg, vp.Vararg)
		b = protowire.AppendTag(b, declValueParam, protowire.BytesType)
		b = protowire.AppendBytes(b, vb)
	}
	for _, ref := range []struct {
		num protowire.Number
		t   *kotlin.TypeRef
	}{
		{declReturns, d.Returns},
		{declReceiver, d.Receiver},
		{declType, d.Type},
		{declTarget, d.Target},
	} {
		if ref.t != nil {
			b = appendRef(b, ref.num, e.typ(ref.t))
		}
	}
	for _, st := range d.Supertypes {
		b = appendRef(b, declSupertype, e.typ(st))
	}
	for _, entry := range d.EnumEntries {
		b = protowire.AppendTag(b, declEnumEntry, protowire.VarintType)
		b = protowire.AppendVarint(b, e.str(entry))
	}
	for _, m := range d.Members {
		b = protowire.AppendTag(b, declMember, protowire.BytesType)
		b = protowire.AppendBytes(b, e.encodeDecl(m))
	}
	return b
}

// EncodeFragment renders one package fragment.
func EncodeFragment(pkg string, decls []*kotlin.Declaration) []byte {
	e := newFragmentEncoder()
	for _, d := range decls {
		e.decls = append(e.decls, e.encodeDecl(d))
	}
	var b []byte
	b = protowire.AppendTag(b, fragPackage, protowire.BytesType)
	b = protowire.AppendString(b, pkg)
	for _, s := range e.strings {
		b = protowire.AppendTag(b, fragString, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	for _, t := range e.types {
		b = protowire.AppendTag(b, fragType, protowire.BytesType)
		b = protowire.AppendBytes(b, t)
	}
	for _, d := range e.decls {
		b = protowire.AppendTag(b, fragDecl, protowire.BytesType)
		b = protowire.AppendBytes(b, d)
	}
	return b
}
