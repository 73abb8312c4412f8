package klib

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"klibexport/internal/diag"
	"klibexport/internal/kotlin"
)

func sampleModule() *kotlin.Module {
	m := &kotlin.Module{
		Name:       "org.example:lib",
		ShortName:  "lib",
		Depends:    []string{"stdlib", "org.example:base"},
		ABIVersion: "1.8.0",
	}
	listOfInt := kotlin.ClassType("kotlin/collections/List", kotlin.Invariant(kotlin.Primitive("Int")))
	m.Package("com.foo").Decls = []*kotlin.Declaration{
		{
			Kind:       kotlin.DeclClass,
			Name:       "Bar",
			Modality:   kotlin.ModalityOpen,
			Supertypes: []*kotlin.TypeRef{kotlin.ClassType("com/foo/Base")},
			TypeParams: []kotlin.TypeParameter{{Name: "T", Bounds: []*kotlin.TypeRef{kotlin.Nullable(kotlin.ClassType(kotlin.NameAny))}}},
			Members: []*kotlin.Declaration{
				{Kind: kotlin.DeclFunction, Name: "<init>", Flags: kotlin.FlagConstructor,
					ValueParams: []kotlin.ValueParam{{Name: "x", Type: kotlin.Nullable(kotlin.Primitive("Int")), HasDefault: true}}},
				{Kind: kotlin.DeclProperty, Name: "items", Flags: kotlin.FlagVar, Type: listOfInt},
				{Kind: kotlin.DeclFunction, Name: "run", Flags: kotlin.FlagSuspend,
					ValueParams: []kotlin.ValueParam{{Name: "cb", Type: kotlin.FunctionType(nil,
						[]*kotlin.TypeRef{kotlin.TypeParam("T")}, kotlin.Primitive("Unit"), true)}},
					Returns: kotlin.ClassType(kotlin.NameNothing)},
			},
		},
		{Kind: kotlin.DeclEnum, Name: "Color", EnumEntries: []string{"RED", "GREEN"}},
		{Kind: kotlin.DeclTypealias, Name: "Ints", Target: listOfInt, Visibility: kotlin.VisibilityInternal},
	}
	m.Package("").Decls = []*kotlin.Declaration{
		{Kind: kotlin.DeclFunction, Name: "top", Returns: kotlin.Primitive("String"),
			ValueParams: []kotlin.ValueParam{{Name: "m", Type: kotlin.ClassType("kotlin/collections/Map",
				kotlin.Invariant(kotlin.Primitive("String")), kotlin.Star())}}},
	}
	return m
}

func TestWriteReadDirectoryRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lib")
	src := sampleModule()
	require.NoError(t, Write(dir, src))

	got, err := Read(context.Background(), dir, Options{})
	require.NoError(t, err)

	assert.Equal(t, "org.example:lib", got.Name)
	assert.Equal(t, "lib", got.ShortName)
	assert.Equal(t, []string{"stdlib", "org.example:base"}, got.Depends)
	assert.False(t, got.ContentHash.IsZero())
	assert.Equal(t, []string{"", "com.foo"}, got.PackageNames())

	bar := got.Package("com.foo").Decls[0]
	assert.Equal(t, kotlin.FqName("com/foo/Bar"), bar.FqName)
	assert.Equal(t, kotlin.ModalityOpen, bar.Modality)
	require.Len(t, bar.Members, 3)
	assert.Equal(t, kotlin.FqName("com/foo/Bar.run"), bar.Members[2].FqName)
	assert.Equal(t, "kotlin.Int?", bar.Members[0].ValueParams[0].Type.String())
	assert.True(t, bar.Members[0].ValueParams[0].HasDefault)
	assert.Equal(t, "kotlin.collections.List<kotlin.Int>", bar.Members[1].Type.String())
	assert.Equal(t, "suspend (T) -> kotlin.Unit", bar.Members[2].ValueParams[0].Type.String())
	assert.Equal(t, kotlin.TypeNothing, bar.Members[2].Returns.Kind)
	assert.Equal(t, "kotlin.Any?", bar.TypeParams[0].Bounds[0].String())

	color := got.Package("com.foo").Decls[1]
	assert.Equal(t, []string{"RED", "GREEN"}, color.EnumEntries)
	alias := got.Package("com.foo").Decls[2]
	assert.Equal(t, kotlin.VisibilityInternal, alias.Visibility)

	top := got.Package("").Decls[0]
	assert.Equal(t, kotlin.FqName("top"), top.FqName)
	assert.Equal(t, "kotlin.collections.Map<kotlin.String, *>", top.ValueParams[0].Type.String())

	assert.Equal(t, 7, got.Len(), "declarations must be sealed")
}

func TestArchiveIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.klib")
	b := filepath.Join(dir, "b.klib")
	require.NoError(t, WriteArchive(a, sampleModule()))
	require.NoError(t, WriteArchive(b, sampleModule()))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)

	mod, err := Read(context.Background(), a, Options{})
	require.NoError(t, err)
	assert.Equal(t, "org.example:lib", mod.Name)
	assert.Equal(t, 7, mod.Len())
}

func TestLargePackageSplitsIntoFragments(t *testing.T) {
	m := &kotlin.Module{Name: "big"}
	frag := m.Package("p")
	for i := range maxFragmentDecls + 5 {
		frag.Decls = append(frag.Decls, &kotlin.Declaration{
			Kind: kotlin.DeclProperty, Name: "v" + strings.Repeat("x", i%3) + string(rune('a'+i%26)),
			Type: kotlin.Primitive("Int"),
		})
	}
	files, err := Encode(m)
	require.NoError(t, err)
	var fragments int
	for _, f := range files {
		if strings.HasSuffix(f.Name, fragmentExt) {
			fragments++
		}
	}
	assert.Equal(t, 2, fragments)

	dir := t.TempDir()
	require.NoError(t, Write(dir, m))
	got, err := Read(context.Background(), dir, Options{})
	require.NoError(t, err)
	require.Len(t, got.Package("p").Decls, maxFragmentDecls+5)
	for i, d := range got.Package("p").Decls {
		assert.Equal(t, frag.Decls[i].Name, d.Name)
	}
}

func writeRaw(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

func TestReadErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing path", func(t *testing.T) {
		_, err := Read(ctx, filepath.Join(t.TempDir(), "nope"), Options{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRead))
		assert.Equal(t, diag.ReadIO, CodeOf(err))
	})

	t.Run("corrupt archive", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "bad.klib")
		require.NoError(t, os.WriteFile(p, []byte("not a zip"), 0o644))
		_, err := Read(ctx, p, Options{})
		assert.True(t, errors.Is(err, ErrRead))
		assert.Equal(t, diag.ReadCorrupt, CodeOf(err))
	})

	t.Run("missing manifest", func(t *testing.T) {
		dir := t.TempDir()
		writeRaw(t, dir, "default/linkdata/module", EncodeHeader(Header{Name: "x", FormatVersion: FormatVersion}))
		_, err := Read(ctx, dir, Options{})
		assert.Equal(t, diag.ReadMissingManifest, CodeOf(err))
	})

	t.Run("missing unique name", func(t *testing.T) {
		dir := t.TempDir()
		writeRaw(t, dir, "default/manifest", []byte("abi_version=1.8.0\n"))
		_, err := Read(ctx, dir, Options{})
		assert.Equal(t, diag.ReadMissingField, CodeOf(err))
	})

	t.Run("unsupported abi", func(t *testing.T) {
		dir := t.TempDir()
		writeRaw(t, dir, "default/manifest", []byte("unique_name=x\nabi_version=2.1.0\n"))
		_, err := Read(ctx, dir, Options{})
		assert.Equal(t, diag.ReadUnsupportedVersion, CodeOf(err))
		assert.NotEmpty(t, errors.GetAllHints(err))
	})

	t.Run("missing linkdata", func(t *testing.T) {
		dir := t.TempDir()
		writeRaw(t, dir, "default/manifest", []byte("unique_name=x\nabi_version=1.8.0\n"))
		_, err := Read(ctx, dir, Options{})
		assert.Equal(t, diag.ReadMissingSection, CodeOf(err))
	})

	t.Run("unsupported format", func(t *testing.T) {
		dir := t.TempDir()
		writeRaw(t, dir, "default/manifest", []byte("unique_name=x\nabi_version=1.8.0\n"))
		writeRaw(t, dir, "default/linkdata/module", EncodeHeader(Header{Name: "x", FormatVersion: 7}))
		_, err := Read(ctx, dir, Options{})
		assert.Equal(t, diag.ReadUnsupportedVersion, CodeOf(err))
	})

	t.Run("string index out of range", func(t *testing.T) {
		dir := t.TempDir()
		writeRaw(t, dir, "default/manifest", []byte("unique_name=x\nabi_version=1.8.0\n"))
		writeRaw(t, dir, "default/linkdata/module", EncodeHeader(Header{Name: "x", FormatVersion: FormatVersion, Packages: []string{"p"}}))
		var decl []byte
		decl = protowire.AppendTag(decl, declKind, protowire.VarintType)
		decl = protowire.AppendVarint(decl, uint64(kotlin.DeclClass))
		decl = protowire.AppendTag(decl, declName, protowire.VarintType)
		decl = protowire.AppendVarint(decl, 42)
		var frag []byte
		frag = protowire.AppendTag(frag, fragPackage, protowire.BytesType)
		frag = protowire.AppendString(frag, "p")
		frag = protowire.AppendTag(frag, fragDecl, protowire.BytesType)
		frag = protowire.AppendBytes(frag, decl)
		writeRaw(t, dir, "default/linkdata/package_p/0_p.knm", frag)
		_, err := Read(ctx, dir, Options{})
		require.Error(t, err)
		assert.Equal(t, diag.ReadCorrupt, CodeOf(err))
		assert.Contains(t, err.Error(), "out of range")
	})

	t.Run("truncated fragment", func(t *testing.T) {
		dir := t.TempDir()
		writeRaw(t, dir, "default/manifest", []byte("unique_name=x\nabi_version=1.8.0\n"))
		writeRaw(t, dir, "default/linkdata/module", EncodeHeader(Header{Name: "x", FormatVersion: FormatVersion, Packages: []string{"p"}}))
		full := EncodeFragment("p", []*kotlin.Declaration{{Kind: kotlin.DeclClass, Name: "A"}})
		writeRaw(t, dir, "default/linkdata/package_p/0_p.knm", full[:len(full)-2])
		_, err := Read(ctx, dir, Options{})
		assert.Equal(t, diag.ReadCorrupt, CodeOf(err))
	})
}

func TestForwardTypeReferenceRejected(t *testing.T) {
	var typ []byte
	typ = protowire.AppendTag(typ, typKind, protowire.VarintType)
	typ = protowire.AppendVarint(typ, uint64(kotlin.TypeNullable))
	typ = protowire.AppendTag(typ, typInner, protowire.VarintType)
	typ = protowire.AppendVarint(typ, 1) // points at itself
	var frag []byte
	frag = protowire.AppendTag(frag, fragType, protowire.BytesType)
	frag = protowire.AppendBytes(frag, typ)
	_, _, err := DecodeFragment(frag)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type #0")
}

func TestManifestProperties(t *testing.T) {
	src := "# comment\n" +
		"! other comment\n" +
		"unique_name = org.example\\:lib\n" +
		"abi_version: 1.8.0\n" +
		"depends=stdlib \\\n    base\n" +
		"custom\\ key=caf\\u00e9\n"
	m, err := ParseManifest(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "org.example:lib", m.UniqueName)
	assert.Equal(t, "1.8.0", m.ABIVersion)
	assert.Equal(t, []string{"stdlib", "base"}, m.Depends)
	assert.Equal(t, "café", m.Extra["custom key"])

	again, err := ParseManifest(strings.NewReader(string(m.Encode())))
	require.NoError(t, err)
	assert.Equal(t, m, again)
}

func TestCheckABIVersion(t *testing.T) {
	assert.NoError(t, CheckABIVersion("x", "1.4.0"))
	assert.NoError(t, CheckABIVersion("x", "1.9.2"))
	assert.Error(t, CheckABIVersion("x", "1.3.9"))
	assert.Error(t, CheckABIVersion("x", "2.0.0"))
	err := CheckABIVersion("x", "garbage")
	assert.True(t, errors.Is(err, ErrRead))
}

func TestReadHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, sampleModule()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Read(ctx, dir, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
