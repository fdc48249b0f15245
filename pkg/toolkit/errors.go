package toolkit

import (
	"fmt"

	"github.com/pkg/errors"
)

// ResolutionError reports a revision or branch reference that does not
// resolve against the revision graph. The lifecycle core recovers from
// it in exactly one place (the branch-existence probe during revision
// creation); everywhere else it propagates.
type ResolutionError struct {
	Ref string
	Msg string
}

func (e *ResolutionError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("cannot resolve %q: %s", e.Ref, e.Msg)
	}

	return fmt.Sprintf("cannot resolve %q", e.Ref)
}

// NewResolutionError returns a ResolutionError for ref.
func NewResolutionError(ref, msg string) error {
	return &ResolutionError{Ref: ref, Msg: msg}
}

// IsResolutionError reports whether err is (or wraps) a ResolutionError.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}
