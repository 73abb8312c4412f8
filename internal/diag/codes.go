package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// Чтение klib
	ReadInfo               Code = 1000
	ReadIO                 Code = 1001
	ReadCorrupt            Code = 1002
	ReadMissingManifest    Code = 1003
	ReadMissingField       Code = 1004
	ReadUnsupportedVersion Code = 1005
	ReadMissingSection     Code = 1006
	ReadDuplicateModule    Code = 1007

	// Конфигурация
	ConfInfo            Code = 2000
	ConfMissingTarget   Code = 2001
	ConfInvalidTarget   Code = 2002
	ConfDependencyCycle Code = 2003
	ConfInvalidPolicy   Code = 2004
	ConfNoExported      Code = 2005

	// Неподдерживаемые декларации
	UnsInfo                Code = 3000
	UnsType                Code = 3001
	UnsProjection          Code = 3002
	UnsVariance            Code = 3003
	UnsBounds              Code = 3004
	UnsRecursiveType       Code = 3005
	UnsArity               Code = 3006
	UnsInnerClass          Code = 3007
	UnsSealedClass         Code = 3008
	UnsValueClass          Code = 3009
	UnsOperatorName        Code = 3010
	UnsExternal            Code = 3011
	UnsCompanion           Code = 3012
	UnsReified             Code = 3013
	UnsEnumTypeParams      Code = 3014
	UnsDependency          Code = 3015
	UnsDuplicateDecl       Code = 3016
	UnsSupertype           Code = 3017
	UnsConformanceDropped  Code = 3018
	UnsTuple               Code = 3019
	UnsErrorType           Code = 3020
	UnsExtensionProperty   Code = 3021
	UnsGenericProperty     Code = 3022
	UnsEmptyName           Code = 3023
	UnsMemberOfUnsupported Code = 3024

	// Ссылки
	RefInfo              Code = 4000
	RefUnresolved        Code = 4001
	RefModuleNotLoaded   Code = 4002
	RefMissingDependency Code = 4003

	// Имена
	NameInfo      Code = 5000
	NameCollision Code = 5001
	NameEscaped   Code = 5002
	NameSanitized Code = 5003

	// Observability
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var (
	codeDescription = map[Code]string{
		UnknownCode:            "Unknown error",
		ReadInfo:               "Klib read information",
		ReadIO:                 "Klib I/O error",
		ReadCorrupt:            "Corrupt klib data",
		ReadMissingManifest:    "Klib manifest missing",
		ReadMissingField:       "Required manifest field missing",
		ReadUnsupportedVersion: "Unsupported klib version",
		ReadMissingSection:     "Required metadata section missing",
		ReadDuplicateModule:    "Duplicate module unique_name",
		ConfInfo:               "Configuration information",
		ConfMissingTarget:      "Package override names an unknown package",
		ConfInvalidTarget:      "Package override target is not a valid Swift namespace",
		ConfDependencyCycle:    "Module dependency cycle",
		ConfInvalidPolicy:      "Unknown flattening policy",
		ConfNoExported:         "No exported modules",
		UnsInfo:                "Unsupported declaration information",
		UnsType:                "Type cannot be represented in Swift",
		UnsProjection:          "Use-site variance is not representable",
		UnsVariance:            "Declaration-site variance is not representable",
		UnsBounds:              "Type parameter bounds are not representable",
		UnsRecursiveType:       "Recursive type",
		UnsArity:               "Generic arity mismatch",
		UnsInnerClass:          "Inner classes are not supported",
		UnsSealedClass:         "Sealed classes are not supported",
		UnsValueClass:          "Value classes are not supported",
		UnsOperatorName:        "Operator name is not a Swift identifier",
		UnsExternal:            "External declarations are not supported",
		UnsCompanion:           "Companion objects are not supported",
		UnsReified:             "Reified type parameters are not supported",
		UnsEnumTypeParams:      "Generic enum classes are not supported",
		UnsDependency:          "Depends on an unsupported declaration",
		UnsDuplicateDecl:       "Duplicate declaration",
		UnsSupertype:           "Unsupported supertype",
		UnsConformanceDropped:  "Unsupported interface conformance dropped",
		UnsTuple:               "Tuple shape is not representable",
		UnsErrorType:           "Unreadable type in signature",
		UnsExtensionProperty:   "Extension properties are not supported",
		UnsGenericProperty:     "Generic properties are not supported",
		UnsEmptyName:           "Declaration without a name",
		UnsMemberOfUnsupported: "Member of an unsupported declaration",
		RefInfo:                "Reference information",
		RefUnresolved:          "Unresolved reference",
		RefModuleNotLoaded:     "Referenced module not loaded",
		RefMissingDependency:   "Declared dependency not loaded",
		NameInfo:               "Naming information",
		NameCollision:          "Name collision disambiguated",
		NameEscaped:            "Reserved word escaped",
		NameSanitized:          "Identifier sanitized",
		ObsInfo:                "Observability information",
		ObsTimings:             "Pipeline timings",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("RD%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("CF%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("UN%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("RF%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("NM%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OB%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
