package version

import (
	"strings"
	"testing"
)

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestColored_Plain(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	for in, want := range map[string]string{
		"1.2.3":                "1.2.3",
		"0.1.0-dev":            "0.1.0-dev",
		"1.2.3-rc.1+build.123": "1.2.3-rc.1+build.123",
		"nightly":              "nightly",
		"":                     "dev",
	} {
		Version = in
		if got := Colored(false); got != want {
			t.Errorf("Colored(false) for %q = %q, want %q", in, got, want)
		}
	}
}

func TestColored_Escapes(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "1.2.3-dev"
	got := Colored(true)
	if !strings.ContainsRune(got, '\x1b') {
		t.Fatalf("expected color escapes in %q", got)
	}
	if !strings.HasSuffix(got, "-dev") {
		t.Fatalf("suffix must stay plain: %q", got)
	}
}
