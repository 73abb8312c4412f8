package kotlin

import "strings"

// FqName is a fully-qualified source name in Kotlin metadata spelling:
// package segments are separated by '/', nested classifiers by '.',
// e.g. "com/foo/Outer.Inner". Root-package names carry no '/'.
type FqName string

// NewFqName joins a dotted package name and a (possibly nested) short name.
func NewFqName(pkg, name string) FqName {
	if pkg == "" {
		return FqName(name)
	}
	return FqName(strings.ReplaceAll(pkg, ".", "/") + "/" + name)
}

// Package returns the dotted package part ("com.foo" for "com/foo/Bar").
func (n FqName) Package() string {
	s := string(n)
	idx := strings.LastIndexByte(s, '/')
	if idx < 0 {
		return ""
	}
	return strings.ReplaceAll(s[:idx], "/", ".")
}

// ClassPath returns the part after the package ("Outer.Inner").
func (n FqName) ClassPath() string {
	s := string(n)
	if idx := strings.LastIndexByte(s, '/'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// Short returns the last simple name segment.
func (n FqName) Short() string {
	cp := n.ClassPath()
	if idx := strings.LastIndexByte(cp, '.'); idx >= 0 {
		return cp[idx+1:]
	}
	return cp
}

// Parent returns the enclosing classifier for nested names, or "" for
// top-level names.
func (n FqName) Parent() FqName {
	s := string(n)
	slash := strings.LastIndexByte(s, '/')
	dot := strings.LastIndexByte(s, '.')
	if dot <= slash {
		return ""
	}
	return FqName(s[:dot])
}

// Child builds the name of a member or nested classifier.
func (n FqName) Child(name string) FqName {
	if n == "" {
		return FqName(name)
	}
	return FqName(string(n) + "." + name)
}

// Dotted renders the name the way Kotlin sources spell it ("com.foo.Outer.Inner").
func (n FqName) Dotted() string {
	return strings.ReplaceAll(string(n), "/", ".")
}

func (n FqName) String() string { return n.Dotted() }

// ParseDottedFqName splits a dotted source spelling using the Kotlin naming
// convention: lower-case leading segments form the package, the first
// capitalised segment starts the class path.
func ParseDottedFqName(dotted string) FqName {
	parts := strings.Split(dotted, ".")
	split := len(parts) - 1
	for i, p := range parts {
		if p != "" && p[0] >= 'A' && p[0] <= 'Z' {
			split = i
			break
		}
	}
	pkg := strings.Join(parts[:split], ".")
	return NewFqName(pkg, strings.Join(parts[split:], "."))
}
