package diag

// Subject identifies the declaration (or module) a diagnostic is about.
// Module is the klib unique name, Decl the dotted source name; both may be
// empty for run-level findings.
type Subject struct {
	Module string
	Decl   string
	Kind   string
}

// IsZero reports whether the subject names nothing.
func (s Subject) IsZero() bool { return s == Subject{} }

func (s Subject) String() string {
	switch {
	case s.Module == "" && s.Decl == "":
		return "<run>"
	case s.Decl == "":
		return s.Module
	case s.Module == "":
		return s.Decl
	default:
		return s.Module + ":" + s.Decl
	}
}

type Note struct {
	Subject Subject
	Msg     string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Subject  Subject
	Notes    []Note
}
