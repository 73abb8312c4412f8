package kotlin

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	box := &Declaration{
		Kind:       DeclClass,
		Name:       "Box",
		FqName:     NewFqName("com.ex", "Box"),
		Modality:   ModalityOpen,
		TypeParams: []TypeParameter{{Name: "T", Variance: VarianceOut}},
		Members: []*Declaration{
			{Kind: DeclFunction, Name: "<init>", Flags: FlagConstructor},
			{Kind: DeclProperty, Name: "size", Flags: FlagVar, Type: Primitive("Int")},
		},
	}
	color := &Declaration{
		Kind:        DeclEnum,
		Name:        "Color",
		FqName:      NewFqName("com.ex", "Color"),
		Visibility:  VisibilityInternal,
		EnumEntries: []string{"RED", "GREEN"},
	}
	top := &Declaration{Kind: DeclFunction, Name: "main", FqName: NewFqName("", "main"), Flags: FlagSuspend}
	m := &Module{
		Name:       "lib",
		ShortName:  "Lib",
		ABIVersion: "1.8.0",
		Depends:    []string{"core"},
		Packages: []*PackageFragment{
			{Name: "com.ex", Decls: []*Declaration{box, color}},
			{Name: "", Decls: []*Declaration{top}},
			{Name: "empty"},
		},
	}
	m.Seal()

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, m))
	out := buf.String()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	assert.Equal(t, "module lib (Lib) abi=1.8.0", lines[0])
	assert.Equal(t, "depends: core", lines[1])
	assert.Equal(t, "package <root>", lines[3])
	assert.Equal(t, "  fun main() [suspend]", lines[4])
	assert.Equal(t, "package com.ex", lines[6])
	assert.Equal(t, "  open class Box<out T>", lines[7])
	assert.Equal(t, "    constructor()", lines[8])
	assert.True(t, strings.HasPrefix(lines[9], "    var size: "), lines[9])
	assert.Equal(t, "  internal enum Color", lines[10])
	assert.Equal(t, "    entries: RED, GREEN", lines[11])
	assert.NotContains(t, out, "package empty")
}
