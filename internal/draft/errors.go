package draft

import "fmt"

// ContentError reports a draft text that cannot be turned into a usable
// step graph: unparseable YAML or a tree missing required structure.
// Content errors are operator-visible only; they block a reload attempt
// but never an in-flight session.
type ContentError struct {
	DraftName string
	Reason    string
	Err       error
}

func (e *ContentError) Error() string {
	if e.DraftName != "" {
		return fmt.Sprintf("draft %q: %s", e.DraftName, e.Reason)
	}
	return fmt.Sprintf("draft: %s", e.Reason)
}

func (e *ContentError) Unwrap() error { return e.Err }
