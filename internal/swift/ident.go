package swift

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// keywords that cannot be used as identifiers without backticks
var reserved = map[string]struct{}{
	"associatedtype": {}, "class": {}, "deinit": {}, "enum": {}, "extension": {},
	"fileprivate": {}, "func": {}, "import": {}, "init": {}, "inout": {},
	"internal": {}, "let": {}, "open": {}, "operator": {}, "private": {},
	"precedencegroup": {}, "protocol": {}, "public": {}, "rethrows": {},
	"static": {}, "struct": {}, "subscript": {}, "typealias": {}, "var": {},

	"break": {}, "case": {}, "catch": {}, "continue": {}, "default": {},
	"defer": {}, "do": {}, "else": {}, "fallthrough": {}, "for": {},
	"guard": {}, "if": {}, "in": {}, "repeat": {}, "return": {}, "throw": {},
	"switch": {}, "where": {}, "while": {},

	"Any": {}, "as": {}, "await": {}, "false": {}, "is": {}, "nil": {},
	"self": {}, "Self": {}, "super": {}, "throws": {}, "true": {}, "try": {},
	"_": {},
}

// IsReserved reports whether s is a Swift keyword.
func IsReserved(s string) bool {
	_, ok := reserved[s]
	return ok
}

// IsIdentifierStart reports whether r may start an identifier.
func IsIdentifierStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// IsIdentifierPart reports whether r may continue an identifier.
func IsIdentifierPart(r rune) bool {
	return IsIdentifierStart(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// IsIdentifier reports whether s is a plain (unescaped) identifier.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == utf8.RuneError {
			return false
		}
		if i == 0 && !IsIdentifierStart(r) {
			return false
		}
		if !IsIdentifierPart(r) {
			return false
		}
	}
	return true
}

// Escape wraps keywords in backticks.
func Escape(s string) string {
	if IsReserved(s) {
		return "`" + s + "`"
	}
	return s
}

// Unescape strips surrounding backticks.
func Unescape(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(s, "`"), "`")
}

// IsNamespacePath reports whether every dot separated segment of path is an
// identifier. The empty path is the module top level.
func IsNamespacePath(path string) bool {
	if path == "" {
		return true
	}
	for _, seg := range strings.Split(path, ".") {
		if !IsIdentifier(seg) || IsReserved(seg) {
			return false
		}
	}
	return true
}
