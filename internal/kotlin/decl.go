package kotlin

// DeclKind classifies a declaration.
type DeclKind uint8

const (
	DeclInvalid DeclKind = iota
	DeclClass
	DeclEnum
	DeclTypealias
	DeclProperty
	DeclFunction
)

func (k DeclKind) String() string {
	switch k {
	case DeclClass:
		return "class"
	case DeclEnum:
		return "enum"
	case DeclTypealias:
		return "typealias"
	case DeclProperty:
		return "property"
	case DeclFunction:
		return "function"
	default:
		return "invalid"
	}
}

// IsClassifier reports whether the kind names a type.
func (k DeclKind) IsClassifier() bool {
	return k == DeclClass || k == DeclEnum || k == DeclTypealias
}

// Visibility mirrors Kotlin visibility modifiers.
type Visibility uint8

const (
	VisibilityPublic Visibility = iota
	VisibilityProtected
	VisibilityInternal
	VisibilityPrivate
)

func (v Visibility) String() string {
	switch v {
	case VisibilityProtected:
		return "protected"
	case VisibilityInternal:
		return "internal"
	case VisibilityPrivate:
		return "private"
	default:
		return "public"
	}
}

// Modality mirrors Kotlin modality modifiers.
type Modality uint8

const (
	ModalityFinal Modality = iota
	ModalityOpen
	ModalityAbstract
	ModalitySealed
)

func (m Modality) String() string {
	switch m {
	case ModalityOpen:
		return "open"
	case ModalityAbstract:
		return "abstract"
	case ModalitySealed:
		return "sealed"
	default:
		return "final"
	}
}

// DeclFlags encode misc attributes for quick checks.
type DeclFlags uint32

const (
	FlagConstructor DeclFlags = 1 << iota
	FlagSuspend
	FlagInner
	FlagVar
	FlagConst
	FlagInterface
	FlagObject
	FlagCompanion
	FlagData
	FlagExternal
	FlagOperator
	FlagInline
	FlagExpect
	FlagValue
	FlagSynthetic
)

var flagLabels = [...]struct {
	flag  DeclFlags
	label string
}{
	{FlagConstructor, "constructor"},
	{FlagSuspend, "suspend"},
	{FlagInner, "inner"},
	{FlagVar, "var"},
	{FlagConst, "const"},
	{FlagInterface, "interface"},
	{FlagObject, "object"},
	{FlagCompanion, "companion"},
	{FlagData, "data"},
	{FlagExternal, "external"},
	{FlagOperator, "operator"},
	{FlagInline, "inline"},
	{FlagExpect, "expect"},
	{FlagValue, "value"},
	{FlagSynthetic, "synthetic"},
}

// Has reports whether all bits of mask are set.
func (f DeclFlags) Has(mask DeclFlags) bool { return f&mask == mask }

// Strings returns a slice of textual flag labels.
func (f DeclFlags) Strings() []string {
	if f == 0 {
		return nil
	}
	labels := make([]string, 0, 4)
	for _, fl := range flagLabels {
		if f&fl.flag != 0 {
			labels = append(labels, fl.label)
		}
	}
	return labels
}

// ParseFlag maps a modifier keyword to its flag.
func ParseFlag(label string) (DeclFlags, bool) {
	for _, fl := range flagLabels {
		if fl.label == label {
			return fl.flag, true
		}
	}
	return 0, false
}

// ValueParam is one value parameter of a function or constructor.
type ValueParam struct {
	Name       string   `msgpack:"n"`
	Type       *TypeRef `msgpack:"t"`
	HasDefault bool     `msgpack:"d,omitempty"`
	Vararg     bool     `msgpack:"v,omitempty"`
}

// TypeParameter declares a generic parameter.
type TypeParameter struct {
	Name     string     `msgpack:"n"`
	Variance Variance   `msgpack:"v,omitempty"`
	Bounds   []*TypeRef `msgpack:"b,omitempty"`
	Reified  bool       `msgpack:"r,omitempty"`
}

// Declaration is one node of a module's declaration tree.
//
// Which signature fields are meaningful depends on Kind:
// functions use ValueParams/Returns/Receiver, properties use Type/Receiver,
// typealiases use Target, classes use Supertypes/Members and enums EnumEntries.
// ID and Parent are assigned by Module.Seal and are not serialised.
type Declaration struct {
	Kind        DeclKind        `msgpack:"k"`
	Name        string          `msgpack:"n"`
	FqName      FqName          `msgpack:"fq"`
	Visibility  Visibility      `msgpack:"vis,omitempty"`
	Modality    Modality        `msgpack:"mod,omitempty"`
	Flags       DeclFlags       `msgpack:"f,omitempty"`
	TypeParams  []TypeParameter `msgpack:"tp,omitempty"`
	ValueParams []ValueParam    `msgpack:"vp,omitempty"`
	Returns     *TypeRef        `msgpack:"ret,omitempty"`
	Receiver    *TypeRef        `msgpack:"rcv,omitempty"`
	Type        *TypeRef        `msgpack:"t,omitempty"`
	Target      *TypeRef        `msgpack:"tgt,omitempty"`
	Supertypes  []*TypeRef      `msgpack:"sup,omitempty"`
	EnumEntries []string        `msgpack:"ee,omitempty"`
	Members     []*Declaration  `msgpack:"m,omitempty"`

	ID     DeclID `msgpack:"-"`
	Parent DeclID `msgpack:"-"`
}

// Package returns the dotted containing package.
func (d *Declaration) Package() string { return d.FqName.Package() }

func (d *Declaration) IsConstructor() bool { return d.Flags.Has(FlagConstructor) }
func (d *Declaration) IsInterface() bool   { return d.Flags.Has(FlagInterface) }
func (d *Declaration) IsObject() bool      { return d.Flags.Has(FlagObject) }
func (d *Declaration) IsVar() bool         { return d.Flags.Has(FlagVar) }
func (d *Declaration) IsSuspend() bool     { return d.Flags.Has(FlagSuspend) }

// Signature renders a compact, deterministic description of the
// declaration's own shape; used for ordering overloads and in dumps.
func (d *Declaration) Signature() string {
	switch d.Kind {
	case DeclFunction:
		s := "("
		for i, p := range d.ValueParams {
			if i > 0 {
				s += ", "
			}
			s += p.Name + ": " + p.Type.String()
		}
		s += ")"
		if d.Returns != nil {
			s += ": " + d.Returns.String()
		}
		if d.Receiver != nil {
			s = d.Receiver.String() + "." + s
		}
		return s
	case DeclProperty:
		if d.Receiver != nil {
			return d.Receiver.String() + ".: " + d.Type.String()
		}
		return ": " + d.Type.String()
	case DeclTypealias:
		return " = " + d.Target.String()
	default:
		return ""
	}
}

// Refs lists every type reference of the declaration's own signature in
// declaration order: receiver, type parameter bounds, value parameters,
// return/property/alias type, supertypes. Members are not included.
func (d *Declaration) Refs() []*TypeRef {
	var out []*TypeRef
	if d.Receiver != nil {
		out = append(out, d.Receiver)
	}
	for _, tp := range d.TypeParams {
		out = append(out, tp.Bounds...)
	}
	for _, p := range d.ValueParams {
		out = append(out, p.Type)
	}
	for _, t := range []*TypeRef{d.Returns, d.Type, d.Target} {
		if t != nil {
			out = append(out, t)
		}
	}
	out = append(out, d.Supertypes...)
	return out
}

// Walk visits d and all nested members in pre-order.
func (d *Declaration) Walk(fn func(*Declaration) bool) {
	if d == nil || !fn(d) {
		return
	}
	for _, m := range d.Members {
		m.Walk(fn)
	}
}
