package testkit

import (
	"bytes"
	"fmt"
)

const unitHeader = "import KotlinRuntime\n"

// CheckUnitInvariants runs a minimal set of layout invariants on an emitted
// Swift unit:
// 1) the unit starts with the runtime import and ends with exactly one newline
// 2) no tabs, carriage returns or trailing spaces
// 3) indentation is a multiple of four spaces
// 4) braces balance and never close below the top level
func CheckUnitInvariants(text []byte) error {
	if !bytes.HasPrefix(text, []byte(unitHeader)) {
		return fmt.Errorf("unit does not start with %q", unitHeader)
	}
	if !bytes.HasSuffix(text, []byte("\n")) || bytes.HasSuffix(text, []byte("\n\n")) {
		return fmt.Errorf("unit must end with exactly one newline")
	}

	depth := 0
	lines := bytes.Split(bytes.TrimSuffix(text, []byte("\n")), []byte("\n"))
	for i, line := range lines {
		no := i + 1
		if bytes.ContainsAny(line, "\t\r") {
			return fmt.Errorf("line %d: tab or carriage return", no)
		}
		if len(line) > 0 && line[len(line)-1] == ' ' {
			return fmt.Errorf("line %d: trailing space", no)
		}
		indent := len(line) - len(bytes.TrimLeft(line, " "))
		if indent%4 != 0 {
			return fmt.Errorf("line %d: indentation %d is not a multiple of 4", no, indent)
		}
		for _, c := range line {
			switch c {
			case '{':
				depth++
			case '}':
				depth--
				if depth < 0 {
					return fmt.Errorf("line %d: unbalanced '}'", no)
				}
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%d unclosed '{' at end of unit", depth)
	}
	return nil
}
