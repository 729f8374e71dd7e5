// Package invariant carries the error type for bookkeeping violations.
//
// A Violation means the core's own state has diverged (money would be created
// or destroyed, an index lost an order). It is never a business outcome; the
// trading engine halts on the first one it sees.
package invariant

import (
	"errors"
	"fmt"
)

// ErrViolation matches any *Violation via errors.Is.
var ErrViolation = errors.New("invariant violation")

// Violation describes a broken bookkeeping invariant.
type Violation struct {
	Code string
	Msg  string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("invariant violation [%s]: %s", v.Code, v.Msg)
}

func (v *Violation) Is(target error) bool {
	return target == ErrViolation
}

// Violationf builds a *Violation with a formatted message.
func Violationf(code string, format string, args ...interface{}) error {
	return &Violation{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Code returns the violation code if err wraps a *Violation, "" otherwise.
func Code(err error) string {
	var v *Violation
	if errors.As(err, &v) {
		return v.Code
	}
	return ""
}
