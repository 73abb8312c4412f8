package project

import (
	"strings"
	"unicode"
)

// ModuleMeta is the graph-level view of one loaded klib: just enough to
// order modules and detect missing or duplicate inputs.
type ModuleMeta struct {
	Name        string   // manifest unique_name
	Path        string   // путь к артефакту, как его передал пользователь
	Depends     []string // manifest depends, в порядке манифеста
	Exported    bool
	ContentHash Digest // хеш содержимого артефакта
	ModuleHash  Digest // агрегированный хеш модуля с учётом зависимостей
}

// IsValidModuleName reports whether name can serve as a klib unique_name:
// non-empty, printable and free of whitespace.
func IsValidModuleName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// SplitDepends parses the manifest "depends" value (space separated).
// Duplicates are dropped, first occurrence order is kept.
func SplitDepends(value string) []string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
