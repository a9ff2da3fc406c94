// Package errx provides small helpers for attaching context to sentinel
// errors while keeping them matchable with errors.Is.
package errx

import "fmt"

// Wrap chains err onto the sentinel: "sentinel: err".
func Wrap(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// With appends a formatted suffix to the sentinel. The format string is
// applied after the sentinel text, so callers typically start it with ": ".
func With(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w"+format, append([]any{sentinel}, args...)...)
}
