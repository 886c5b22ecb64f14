package errors

import (
	"errors"
	"fmt"
	"strings"
)

// InputError reports a missing or unusable local input. It is fatal to the
// whole run and is raised before any network activity.
type InputError struct {
	Path    string
	Missing []string
	Reason  string
}

func (e *InputError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Reason, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// NewInputError creates an InputError for path.
func NewInputError(path, reason string, missing ...string) *InputError {
	return &InputError{Path: path, Reason: reason, Missing: missing}
}

// IsInputError reports whether err is an InputError (even when wrapped).
func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}
