package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"klibexport/internal/diag"
)

type palette struct {
	err, warn, info, note, code, subject *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:     color.New(color.FgRed, color.Bold),
		warn:    color.New(color.FgYellow, color.Bold),
		info:    color.New(color.FgCyan),
		note:    color.New(color.FgBlue),
		code:    color.New(color.Bold),
		subject: color.New(color.FgWhite, color.Faint),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.note, p.code, p.subject} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <severity>[<CODE>]: <subject>: <Message>
// затем Notes с отступом.
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) error {
	p := newPalette(opts.Color)
	for _, d := range bag.Items() {
		sev := p.severity(d.Severity).Sprint(strings.ToLower(d.Severity.String()))
		line := fmt.Sprintf("%s[%s]: %s: %s", sev, p.code.Sprint(d.Code.ID()), p.subject.Sprint(d.Subject.String()), d.Message)
		if _, err := fmt.Fprintln(w, clip(line, opts.Width)); err != nil {
			return err
		}
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			subject := n.Subject
			if subject.IsZero() {
				subject = d.Subject
			}
			note := fmt.Sprintf("  %s: %s: %s", p.note.Sprint("note"), subject, n.Msg)
			if _, err := fmt.Fprintln(w, clip(note, opts.Width)); err != nil {
				return err
			}
		}
	}
	if dropped := bag.Dropped(); dropped > 0 {
		if _, err := fmt.Fprintf(w, "... %d more diagnostics not shown (--max-diagnostics)\n", dropped); err != nil {
			return err
		}
	}
	if opts.Summary {
		_, err := fmt.Fprintln(w, Summary(bag))
		return err
	}
	return nil
}

// clip shortens a line to width terminal cells. Escape sequences are not
// counted, so colored lines are only clipped when color is off.
func clip(line string, width int) string {
	if width <= 0 || strings.ContainsRune(line, '\x1b') {
		return line
	}
	return runewidth.Truncate(line, width, "…")
}

// Summary counts diagnostics by severity, e.g. "0 errors, 2 warnings, 5 infos".
func Summary(bag *diag.Bag) string {
	return fmt.Sprintf("%s, %s, %s",
		plural(bag.Count(diag.SevError), "error"),
		plural(bag.Count(diag.SevWarning), "warning"),
		plural(bag.Count(diag.SevInfo), "info"))
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// Short prints the stable single-line layout used by golden tests.
func Short(w io.Writer, bag *diag.Bag, includeNotes bool) error {
	out := diag.FormatShortDiagnostics(bag.Items(), includeNotes)
	if out == "" {
		return nil
	}
	_, err := fmt.Fprintln(w, out)
	return err
}
