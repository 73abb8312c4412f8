package diagfmt

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Format selects a diagnostics renderer.
type Format uint8

const (
	// FormatPretty is the human readable, optionally colored layout.
	FormatPretty Format = iota
	// FormatShort prints one stable line per diagnostic.
	FormatShort
	FormatJSON
	FormatSarif
)

func (f Format) String() string {
	switch f {
	case FormatShort:
		return "short"
	case FormatJSON:
		return "json"
	case FormatSarif:
		return "sarif"
	default:
		return "pretty"
	}
}

// ParseFormat reads a --format value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pretty":
		return FormatPretty, nil
	case "short":
		return FormatShort, nil
	case "json":
		return FormatJSON, nil
	case "sarif":
		return FormatSarif, nil
	}
	return FormatPretty, errors.WithHint(errors.Newf("unknown diagnostics format %q", s),
		"valid formats are pretty, short, json and sarif")
}

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color     bool
	Width     int // максимальная ширина строки, 0 - не ограничено
	ShowNotes bool
	// Summary appends a "N warnings, M infos" line.
	Summary bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	Max          int // обрезка вывода, не Bag
	IncludeNotes bool
}

// SarifRunMeta provides metadata for SARIF output.
type SarifRunMeta struct {
	ToolName       string
	ToolVersion    string
	InvocationArgs []string
	// Inputs identify the run; the run GUID is derived from them, so equal
	// inputs give equal reports.
	Inputs []string
}
