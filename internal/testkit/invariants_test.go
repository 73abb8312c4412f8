package testkit

import (
	"strings"
	"testing"
)

func TestCheckUnitInvariants(t *testing.T) {
	good := "import KotlinRuntime\n\npublic enum com {\n    public enum ex {}\n}\n\npublic func f() { stub() }\n"
	if err := CheckUnitInvariants([]byte(good)); err != nil {
		t.Fatalf("valid unit rejected: %v", err)
	}

	bad := map[string]string{
		"header":   "import Foundation\n",
		"newline":  "import KotlinRuntime",
		"blank":    "import KotlinRuntime\n\n",
		"tab":      "import KotlinRuntime\n\tpublic func f() {}\n",
		"trailing": "import KotlinRuntime\npublic func f() {} \n",
		"indent":   "import KotlinRuntime\npublic enum a {\n  case x\n}\n",
		"open":     "import KotlinRuntime\npublic enum a {\n",
		"close":    "import KotlinRuntime\n}\n",
	}
	for name, text := range bad {
		if err := CheckUnitInvariants([]byte(text)); err == nil {
			t.Errorf("%s: expected error for %q", name, text)
		}
	}
}

func TestCheckUnitInvariantsReportsLine(t *testing.T) {
	err := CheckUnitInvariants([]byte("import KotlinRuntime\n\npublic func f() {} \n"))
	if err == nil || !strings.HasPrefix(err.Error(), "line 3:") {
		t.Fatalf("unexpected error %v", err)
	}
}
