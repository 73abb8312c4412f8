// Package classify decides which declarations make it into the Swift
// interface.
//
// Classification runs in two passes. The local pass looks at one module at a
// time (modules run in parallel, each with its own type interner) and applies
// the per-kind rules and the type mapper. The propagation pass runs on the
// frozen results and downgrades declarations whose dependencies are not
// supported until nothing changes.
package classify

import (
	"klibexport/internal/diag"
	"klibexport/internal/swift"
	"klibexport/internal/typemap"
)

// Status is the classification outcome of one declaration.
type Status uint8

const (
	StatusSupported Status = iota
	StatusUnsupported
	// StatusHidden marks declarations that are not part of the public
	// surface; they are neither emitted nor reported.
	StatusHidden
)

func (s Status) String() string {
	switch s {
	case StatusSupported:
		return "supported"
	case StatusUnsupported:
		return "unsupported"
	case StatusHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// Verdict is the status of a declaration and, when unsupported, why.
type Verdict struct {
	Status Status
	Code   diag.Code
	Reason string
}

func supported() Verdict { return Verdict{Status: StatusSupported} }

func hidden() Verdict { return Verdict{Status: StatusHidden} }

func unsupportedVerdict(code diag.Code, reason string) Verdict {
	return Verdict{Status: StatusUnsupported, Code: code, Reason: reason}
}

// Param is one mapped value parameter.
type Param struct {
	Name   string
	Type   swift.TypeID
	Vararg bool
}

// Signature holds the mapped types of a supported declaration, interned in
// the interner of its module.
type Signature struct {
	Generics []typemap.GenericParam
	// Receiver of extension functions, NoTypeID otherwise.
	Receiver swift.TypeID
	Params   []Param
	Result   swift.TypeID
	// NoReturn is set for functions returning Nothing.
	NoReturn bool
	// Type of a property.
	Type swift.TypeID
	// Target of a typealias.
	Target swift.TypeID
	// Superclass is NoTypeID for classes rooted at KotlinBase.
	Superclass   swift.TypeID
	Conformances []swift.TypeID
}
