package diag

import (
	"fmt"
	"sort"
	"strings"
)

type goldenDiagnostic struct {
	Severity string
	Code     string
	Subject  string
	Message  string
}

// FormatGoldenDiagnostics renders diagnostics into a stable, single-line-per-entry
// representation suitable for golden files. Entries are sorted by subject,
// severity, code and message and returned as a single string (empty when
// nothing remains). Observability entries are dropped since they carry timings.
func FormatGoldenDiagnostics(diags []Diagnostic, includeNotes bool) string {
	return formatDiagnostics(diags, includeNotes, true)
}

// FormatShortDiagnostics renders diagnostics into a stable, single-line-per-entry
// representation intended for CLI short output.
func FormatShortDiagnostics(diags []Diagnostic, includeNotes bool) string {
	return formatDiagnostics(diags, includeNotes, false)
}

func formatDiagnostics(diags []Diagnostic, includeNotes, skipObservability bool) string {
	if len(diags) == 0 {
		return ""
	}

	sorted := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		if skipObservability && d.Code >= ObsInfo && d.Code < ObsInfo+1000 {
			continue
		}
		sorted = append(sorted, d)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return Less(sorted[i], sorted[j]) })

	rendered := make([]goldenDiagnostic, 0, len(sorted))
	for i := range sorted {
		rendered = appendDiagnostic(rendered, &sorted[i], includeNotes)
	}

	var b strings.Builder
	for i, d := range rendered {
		fmt.Fprintf(&b, "%s %s %s %s", d.Severity, d.Code, d.Subject, d.Message)
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func appendDiagnostic(out []goldenDiagnostic, d *Diagnostic, includeNotes bool) []goldenDiagnostic {
	out = append(out, goldenDiagnostic{
		Severity: severityLabel(d.Severity),
		Code:     d.Code.ID(),
		Subject:  d.Subject.String(),
		Message:  sanitizeMessage(d.Message),
	})

	if includeNotes {
		for _, note := range d.Notes {
			subject := note.Subject
			if subject.IsZero() {
				subject = d.Subject
			}
			out = append(out, goldenDiagnostic{
				Severity: "note",
				Code:     d.Code.ID(),
				Subject:  subject.String(),
				Message:  sanitizeMessage(note.Msg),
			})
		}
	}

	return out
}

func severityLabel(sev Severity) string {
	switch sev {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	default:
		return "info"
	}
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
