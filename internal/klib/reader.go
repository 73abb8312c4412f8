package klib

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"klibexport/internal/diag"
	"klibexport/internal/kotlin"
	"klibexport/internal/project"
)

// DefaultComponent is the klib component holding the metadata.
const DefaultComponent = "default"

const (
	manifestFile = "manifest"
	linkdataDir  = "linkdata"
	headerFile   = "module"
	fragmentExt  = ".knm"
)

// Options tune Read.
type Options struct {
	// Component overrides the component directory (default "default").
	Component string
}

func (o Options) component() string {
	if o.Component == "" {
		return DefaultComponent
	}
	return o.Component
}

// Library is an opened klib, either an unpacked directory or a zip archive.
type Library struct {
	Path string
	Hash project.Digest

	fsys fs.FS
}

// Open opens path and computes its content hash. The whole artifact is
// hashed up front so cache lookups can happen before decoding.
func Open(p string) (*Library, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, readError(p, diag.ReadIO, err)
	}
	if info.IsDir() {
		fsys := os.DirFS(p)
		hash, err := hashTree(fsys)
		if err != nil {
			return nil, readError(p, diag.ReadIO, err)
		}
		return &Library{Path: p, Hash: hash, fsys: fsys}, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, readError(p, diag.ReadIO, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, readErrorf(p, diag.ReadCorrupt, "not a klib archive: %v", err)
	}
	return &Library{Path: p, Hash: project.HashBytes(data), fsys: zr}, nil
}

// hashTree digests every regular file as "path\x00content\x00" in path order.
func hashTree(fsys fs.FS) (project.Digest, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return project.Digest{}, err
	}
	sort.Strings(files)
	h := sha256.New()
	for _, f := range files {
		data, err := fs.ReadFile(fsys, f)
		if err != nil {
			return project.Digest{}, err
		}
		_, _ = io.WriteString(h, f)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(data)
		_, _ = h.Write([]byte{0})
	}
	var out project.Digest
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Manifest reads and validates the component manifest.
func (l *Library) Manifest(opts Options) (Manifest, error) {
	name := path.Join(opts.component(), manifestFile)
	f, err := l.fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{}, readErrorf(l.Path, diag.ReadMissingManifest, "missing %s", name)
		}
		return Manifest{}, readError(l.Path, diag.ReadIO, err)
	}
	defer f.Close()
	m, err := ParseManifest(f)
	if err != nil {
		return Manifest{}, readError(l.Path, diag.ReadCorrupt, err)
	}
	if strings.TrimSpace(m.UniqueName) == "" {
		return Manifest{}, readErrorf(l.Path, diag.ReadMissingField, "manifest has no %s", KeyUniqueName)
	}
	if !project.IsValidModuleName(m.UniqueName) {
		return Manifest{}, readErrorf(l.Path, diag.ReadCorrupt, "invalid %s %q", KeyUniqueName, m.UniqueName)
	}
	if m.ABIVersion == "" {
		return Manifest{}, readErrorf(l.Path, diag.ReadMissingField, "manifest has no %s", KeyABIVersion)
	}
	if err := CheckABIVersion(l.Path, m.ABIVersion); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Header reads the linkdata header.
func (l *Library) Header(opts Options) (Header, error) {
	name := path.Join(opts.component(), linkdataDir, headerFile)
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Header{}, readErrorf(l.Path, diag.ReadMissingSection, "missing %s", name)
		}
		return Header{}, readError(l.Path, diag.ReadIO, err)
	}
	h, err := DecodeHeader(data)
	if err != nil {
		return Header{}, readErrorf(l.Path, diag.ReadCorrupt, "%s: %v", name, err)
	}
	if err := checkFormatVersion(l.Path, h.FormatVersion); err != nil {
		return Header{}, err
	}
	return h, nil
}

// PackageDir is the linkdata directory holding the fragments of pkg.
func PackageDir(component, pkg string) string {
	return path.Join(component, linkdataDir, "package_"+pkg)
}

// fragmentFiles lists the fragment files of pkg ordered by their numeric prefix.
func (l *Library) fragmentFiles(opts Options, pkg string) ([]string, error) {
	dir := PackageDir(opts.component(), pkg)
	entries, err := fs.ReadDir(l.fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, readErrorf(l.Path, diag.ReadMissingSection, "missing %s", dir)
		}
		return nil, readError(l.Path, diag.ReadIO, err)
	}
	type numbered struct {
		n    int
		name string
	}
	var files []numbered
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fragmentExt) {
			continue
		}
		prefix, _, _ := strings.Cut(e.Name(), "_")
		n, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, readErrorf(l.Path, diag.ReadCorrupt, "%s/%s: fragment name without index", dir, e.Name())
		}
		files = append(files, numbered{n: n, name: e.Name()})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].n != files[j].n {
			return files[i].n < files[j].n
		}
		return files[i].name < files[j].name
	})
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = path.Join(dir, f.name)
	}
	return out, nil
}

// Load decodes the library into a sealed module.
func (l *Library) Load(ctx context.Context, opts Options) (*kotlin.Module, error) {
	manifest, err := l.Manifest(opts)
	if err != nil {
		return nil, err
	}
	header, err := l.Header(opts)
	if err != nil {
		return nil, err
	}
	if header.Name != "" && header.Name != manifest.UniqueName {
		return nil, readErrorf(l.Path, diag.ReadCorrupt,
			"linkdata names module %q but manifest says %q", header.Name, manifest.UniqueName)
	}

	mod := &kotlin.Module{
		Name:            manifest.UniqueName,
		ShortName:       manifest.ShortName,
		Path:            l.Path,
		Depends:         manifest.Depends,
		ABIVersion:      manifest.ABIVersion,
		CompilerVersion: manifest.CompilerVersion,
		MetadataVersion: manifest.MetadataVersion,
		ContentHash:     l.Hash,
	}
	for _, pkg := range header.Packages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		files, err := l.fragmentFiles(opts, pkg)
		if err != nil {
			return nil, err
		}
		frag := mod.Package(pkg)
		for _, name := range files {
			data, err := fs.ReadFile(l.fsys, name)
			if err != nil {
				return nil, readError(l.Path, diag.ReadIO, err)
			}
			fragPkg, decls, err := DecodeFragment(data)
			if err != nil {
				return nil, readErrorf(l.Path, diag.ReadCorrupt, "%s: %v", name, err)
			}
			if fragPkg != pkg {
				return nil, readErrorf(l.Path, diag.ReadCorrupt, "%s: fragment of package %q in %q", name, fragPkg, pkg)
			}
			frag.Decls = append(frag.Decls, decls...)
		}
	}
	mod.Seal()
	return mod, nil
}

// Read opens and decodes one klib.
func Read(ctx context.Context, p string, opts Options) (*kotlin.Module, error) {
	lib, err := Open(p)
	if err != nil {
		return nil, err
	}
	return lib.Load(ctx, opts)
}
