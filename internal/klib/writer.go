package klib

import (
	"archive/zip"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"klibexport/internal/kotlin"
)

// maxFragmentDecls splits large packages into several fragment files.
const maxFragmentDecls = 128

// File is one entry of an encoded library.
type File struct {
	Name string // slash separated, relative to the library root
	Data []byte
}

// Encode renders m into the klib layout, entries sorted by name.
func Encode(m *kotlin.Module) ([]File, error) {
	if m == nil || m.Name == "" {
		return nil, fmt.Errorf("klib: module without unique name")
	}
	abi := m.ABIVersion
	if abi == "" {
		abi = DefaultABIVersion
	}
	manifest := Manifest{
		UniqueName:      m.Name,
		ShortName:       m.ShortName,
		ABIVersion:      abi,
		CompilerVersion: m.CompilerVersion,
		MetadataVersion: m.MetadataVersion,
		Depends:         m.Depends,
	}
	files := []File{{Name: path.Join(DefaultComponent, manifestFile), Data: manifest.Encode()}}

	pkgs := make([]*kotlin.PackageFragment, 0, len(m.Packages))
	for _, p := range m.Packages {
		if len(p.Decls) > 0 {
			pkgs = append(pkgs, p)
		}
	}
	sort.SliceStable(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })

	header := Header{Name: m.Name, FormatVersion: FormatVersion}
	for _, p := range pkgs {
		header.Packages = append(header.Packages, p.Name)
		short := p.Name
		if idx := strings.LastIndexByte(short, '.'); idx >= 0 {
			short = short[idx+1:]
		}
		if short == "" {
			short = "root"
		}
		for n, start := 0, 0; start < len(p.Decls); n, start = n+1, start+maxFragmentDecls {
			end := min(start+maxFragmentDecls, len(p.Decls))
			files = append(files, File{
				Name: path.Join(PackageDir(DefaultComponent, p.Name), fmt.Sprintf("%d_%s%s", n, short, fragmentExt)),
				Data: EncodeFragment(p.Name, p.Decls[start:end]),
			})
		}
	}
	files = append(files, File{
		Name: path.Join(DefaultComponent, linkdataDir, headerFile),
		Data: EncodeHeader(header),
	})
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Write stores m as an unpacked library under dir.
func Write(dir string, m *kotlin.Module) error {
	files, err := Encode(m)
	if err != nil {
		return err
	}
	for _, f := range files {
		target := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, f.Data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// WriteArchive stores m as a .klib zip archive. Entries carry no
// timestamps, so equal modules produce byte-identical archives.
func WriteArchive(archive string, m *kotlin.Module) (err error) {
	files, err := Encode(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(archive), 0o755); err != nil {
		return err
	}
	out, err := os.Create(archive)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	zw := zip.NewWriter(out)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate})
		if err != nil {
			return err
		}
		if _, err := w.Write(f.Data); err != nil {
			return err
		}
	}
	return zw.Close()
}
