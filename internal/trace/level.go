package trace

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff    Level = iota // no tracing
	LevelError               // run begin/end only, enough to see a failure
	LevelPhase               // + pass boundaries
	LevelDetail              // + modules
	LevelDebug               // + declarations
)

var levelNames = [...]string{"off", "error", "phase", "detail", "debug"}

// deepest scope emitted per level
var levelScopes = [...]Scope{LevelOff: 0, LevelError: ScopeDriver, LevelPhase: ScopePass, LevelDetail: ScopeModule, LevelDebug: ScopeDecl}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel converts a flag value to a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelOff, errors.WithHint(errors.Newf("invalid trace level %q", s),
		"expected one of "+strings.Join(levelNames[:], "|"))
}

// ShouldEmit reports whether events of scope pass this level.
func (l Level) ShouldEmit(scope Scope) bool {
	if int(l) >= len(levelScopes) || scope == 0 {
		return false
	}
	return scope <= levelScopes[l]
}
