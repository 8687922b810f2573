package pot

import "fmt"

// MalformedTableError reports a structurally invalid potential table. It is
// fatal to the run: no partial table is usable for fitting.
// Use errors.Is(err, &MalformedTableError{}) to check for this error.
type MalformedTableError struct {
	File     string // source file, empty for in-memory construction
	Function int    // offending function index, -1 if not function-specific
	Line     int    // offending line number, 0 if unknown
	Reason   string
}

func (e *MalformedTableError) Error() string {
	msg := "malformed potential table"
	if e.File != "" {
		msg += " " + e.File
	}
	if e.Function >= 0 {
		msg += fmt.Sprintf(" (function %d", e.Function)
		if e.Line > 0 {
			msg += fmt.Sprintf(", line %d", e.Line)
		}
		msg += ")"
	} else if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	return msg + ": " + e.Reason
}

func (e *MalformedTableError) Is(target error) bool {
	_, ok := target.(*MalformedTableError)
	return ok
}
