package klib

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"klibexport/internal/project"
)

// Manifest keys.
const (
	KeyUniqueName       = "unique_name"
	KeyShortName        = "short_name"
	KeyABIVersion       = "abi_version"
	KeyCompilerVersion  = "compiler_version"
	KeyMetadataVersion  = "metadata_version"
	KeyDepends          = "depends"
	KeyNativeTargets    = "native_targets"
	KeyBuiltinsPlatform = "builtins_platform"
)

// Manifest is the decoded default/manifest file.
type Manifest struct {
	UniqueName       string
	ShortName        string
	ABIVersion       string
	CompilerVersion  string
	MetadataVersion  string
	Depends          []string
	NativeTargets    []string
	BuiltinsPlatform string
	// Extra keeps keys the reader does not interpret.
	Extra map[string]string
}

// ParseManifest decodes a Java properties manifest. Missing required keys
// are reported by the caller so the error can carry the library path.
func ParseManifest(r io.Reader) (Manifest, error) {
	props, err := parseProperties(r)
	if err != nil {
		return Manifest{}, err
	}
	m := Manifest{
		UniqueName:       props[KeyUniqueName],
		ShortName:        props[KeyShortName],
		ABIVersion:       props[KeyABIVersion],
		CompilerVersion:  props[KeyCompilerVersion],
		MetadataVersion:  props[KeyMetadataVersion],
		Depends:          project.SplitDepends(props[KeyDepends]),
		NativeTargets:    strings.Fields(props[KeyNativeTargets]),
		BuiltinsPlatform: props[KeyBuiltinsPlatform],
	}
	for _, k := range []string{KeyUniqueName, KeyShortName, KeyABIVersion, KeyCompilerVersion,
		KeyMetadataVersion, KeyDepends, KeyNativeTargets, KeyBuiltinsPlatform} {
		delete(props, k)
	}
	if len(props) > 0 {
		m.Extra = props
	}
	return m, nil
}

// Encode renders the manifest with keys in sorted order.
func (m Manifest) Encode() []byte {
	props := make(map[string]string, len(m.Extra)+8)
	for k, v := range m.Extra {
		props[k] = v
	}
	set := func(k, v string) {
		if v != "" {
			props[k] = v
		}
	}
	set(KeyUniqueName, m.UniqueName)
	set(KeyShortName, m.ShortName)
	set(KeyABIVersion, m.ABIVersion)
	set(KeyCompilerVersion, m.CompilerVersion)
	set(KeyMetadataVersion, m.MetadataVersion)
	set(KeyDepends, strings.Join(m.Depends, " "))
	set(KeyNativeTargets, strings.Join(m.NativeTargets, " "))
	set(KeyBuiltinsPlatform, m.BuiltinsPlatform)

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for _, k := range keys {
		buf.WriteString(escapeProperty(k, true))
		buf.WriteByte('=')
		buf.WriteString(escapeProperty(props[k], false))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func parseProperties(r io.Reader) (map[string]string, error) {
	props := make(map[string]string)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var logical strings.Builder
	continued := false
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if continued {
			line = strings.TrimLeft(line, " \t\f")
		} else {
			trimmed := strings.TrimLeft(line, " \t\f")
			if trimmed == "" || trimmed[0] == '#' || trimmed[0] == '!' {
				continue
			}
			line = trimmed
		}
		if trailingBackslashes(line)%2 == 1 {
			logical.WriteString(line[:len(line)-1])
			continued = true
			continue
		}
		logical.WriteString(line)
		continued = false
		key, value, err := splitProperty(logical.String())
		logical.Reset()
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", lineNo, err)
		}
		props[key] = value
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if continued && logical.Len() > 0 {
		key, value, err := splitProperty(logical.String())
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", lineNo, err)
		}
		props[key] = value
	}
	return props, nil
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}

func splitProperty(line string) (key, value string, err error) {
	sep := len(line)
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '\\' {
			i++
			continue
		}
		if c == '=' || c == ':' || c == ' ' || c == '\t' || c == '\f' {
			sep = i
			break
		}
	}
	rawKey := line[:sep]
	rest := line[sep:]
	rest = strings.TrimLeft(rest, " \t\f")
	if rest != "" && (rest[0] == '=' || rest[0] == ':') {
		rest = strings.TrimLeft(rest[1:], " \t\f")
	}
	if key, err = unescapeProperty(rawKey); err != nil {
		return "", "", err
	}
	if value, err = unescapeProperty(rest); err != nil {
		return "", "", err
	}
	return key, value, nil
}

func unescapeProperty(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if i+4 >= len(s) {
				return "", fmt.Errorf("truncated unicode escape in %q", s)
			}
			r, err := strconv.ParseUint(s[i+1:i+5], 16, 16)
			if err != nil {
				return "", fmt.Errorf("bad unicode escape in %q", s)
			}
			b.WriteRune(rune(r))
			i += 4
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

func escapeProperty(s string, key bool) string {
	var b strings.Builder
	for i, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '=', ':', '#', '!':
			if key || i == 0 {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		case ' ':
			if key || i == 0 {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
