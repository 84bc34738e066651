package parser

import (
	"errors"
	"fmt"
)

// ErrNoTargets is returned when the input holds nothing but blank lines.
var ErrNoTargets = errors.New("no targets given")

// FieldError reports a bad submission-wide field (size, epoch, survey...).
type FieldError struct {
	Field   string
	Value   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// LineError reports the first malformed input line.
type LineError struct {
	Line     int // 1-based
	Field    string
	Value    string
	Expected string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("Line %d: Unable to parse %q as %s", e.Line, e.Value, e.Expected)
}

// IsInputError reports whether err was caused by the submitted input
// rather than by the system.
func IsInputError(err error) bool {
	var fe *FieldError
	var le *LineError
	return errors.Is(err, ErrNoTargets) || errors.As(err, &fe) || errors.As(err, &le)
}

func notANumber(field, value string) *FieldError {
	return &FieldError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("Unable to parse %q as a number", value),
	}
}
