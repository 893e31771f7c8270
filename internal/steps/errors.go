package steps

import (
	"errors"
	"fmt"
	"strings"
)

// AssertionError is a step expectation that did not hold.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return e.Message
}

// Failf returns an AssertionError with a formatted message.
func Failf(format string, args ...interface{}) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// IsAssertion reports whether err is, or wraps, an AssertionError.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

// UndefinedStepError is returned for phrases that match no pattern or
// more than one.
type UndefinedStepError struct {
	Text       string
	Candidates []string
}

func (e *UndefinedStepError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("undefined step: %q", e.Text)
	}
	return fmt.Sprintf("ambiguous step: %q matches %s", e.Text, strings.Join(e.Candidates, ", "))
}
