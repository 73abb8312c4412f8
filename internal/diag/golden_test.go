package diag

import (
	"testing"
)

func TestFormatGoldenDiagnostics(t *testing.T) {
	diags := []Diagnostic{
		{
			Severity: SevWarning,
			Code:     UnsDependency,
			Message:  "first line\nsecond",
			Subject:  Subject{Module: "lib", Decl: "com.foo.Bar", Kind: "class"},
			Notes: []Note{
				{Msg: "note line"},
			},
		},
		{
			Severity: SevInfo,
			Code:     ObsTimings,
			Message:  "load 1ms",
		},
		{
			Severity: SevError,
			Code:     ConfMissingTarget,
			Message:  "another",
		},
	}

	expected := "error CF2001 <run> another\n" +
		"warning UN3015 lib:com.foo.Bar first line second\n" +
		"note UN3015 lib:com.foo.Bar note line"

	if got := FormatGoldenDiagnostics(diags, true); got != expected {
		t.Fatalf("unexpected golden diagnostics:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}

	short := FormatShortDiagnostics(diags, false)
	if want := "error CF2001 <run> another\ninfo OB6001 <run> load 1ms\nwarning UN3015 lib:com.foo.Bar first line second"; short != want {
		t.Fatalf("unexpected short diagnostics:\nwant:\n%s\n\ngot:\n%s", want, short)
	}
}

func TestCodeID(t *testing.T) {
	cases := map[Code]string{
		ReadCorrupt:       "RD1002",
		ConfMissingTarget: "CF2001",
		UnsInnerClass:     "UN3007",
		RefUnresolved:     "RF4001",
		NameCollision:     "NM5001",
		ObsTimings:        "OB6001",
		UnknownCode:       "E0000",
	}
	for code, want := range cases {
		if got := code.ID(); got != want {
			t.Fatalf("%d.ID() = %q, want %q", code, got, want)
		}
	}
}

func TestBagLimitAndMerge(t *testing.T) {
	b := NewBag(1)
	if !b.Add(NewError(ReadIO, Subject{}, "a")) {
		t.Fatalf("first add must succeed")
	}
	if b.Add(NewError(ReadIO, Subject{}, "b")) {
		t.Fatalf("second add must hit the limit")
	}
	if b.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", b.Dropped())
	}

	other := NewBag(0)
	rep := BagReporter{Bag: other}
	ReportWarning(rep, UnsType, Subject{Module: "m"}, "w").WithNote(Subject{}, "n").Emit()
	other.Add(New(SevInfo, NameCollision, Subject{Module: "m"}, "i"))

	b.Merge(other)
	if b.Len() != 3 {
		t.Fatalf("merged len = %d, want 3", b.Len())
	}
	if !b.HasErrors() || !b.HasWarnings() {
		t.Fatalf("expected errors and warnings after merge")
	}
	if got := b.Count(SevInfo); got != 1 {
		t.Fatalf("info count = %d, want 1", got)
	}
	if len(b.Items()[1].Notes) != 1 {
		t.Fatalf("builder note lost: %+v", b.Items()[1])
	}
}
