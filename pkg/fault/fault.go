// Package fault classifies errors raised by the console engine so callers can
// decide how to present them: inline, as a dismissible notice, in a batch
// summary, or as a permission-denied screen.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the presentation class of an error.
type Kind string

const (
	// KindUnknown is reported for errors that carry no classification.
	KindUnknown Kind = "unknown"
	// KindValidation errors are caught before any network call and are
	// reported inline without losing entered data.
	KindValidation Kind = "validation"
	// KindResolution errors come from loading the hierarchy or candidates.
	KindResolution Kind = "resolution"
	// KindDispatch errors belong to a single item of a bulk dispatch.
	KindDispatch Kind = "dispatch"
	// KindAuthorization errors block the whole feature.
	KindAuthorization Kind = "authorization"
)

// Error attaches a Kind and the failing operation to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	default:
		return string(e.Kind) + " error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation wraps err as a validation error for op.
func Validation(op string, err error) error {
	return wrap(KindValidation, op, err)
}

// Validationf builds a validation error from a format string.
func Validationf(op, format string, args ...any) error {
	return wrap(KindValidation, op, fmt.Errorf(format, args...))
}

// Resolution wraps err as a resolution error for op.
func Resolution(op string, err error) error {
	return wrap(KindResolution, op, err)
}

// Dispatch wraps err as a per-item dispatch error for op.
func Dispatch(op string, err error) error {
	return wrap(KindDispatch, op, err)
}

// Authorization wraps err as an authorization error for op.
func Authorization(op string, err error) error {
	return wrap(KindAuthorization, op, err)
}

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) && existing.Kind == KindAuthorization {
		// Authorization always wins, whatever layer re-wraps it.
		kind = KindAuthorization
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the outermost classification found in err's chain, except
// that an authorization error anywhere in the chain is always reported as
// such.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if IsAuthorization(err) {
		return KindAuthorization
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsAuthorization reports whether any error in err's chain is an
// authorization error.
func IsAuthorization(err error) bool {
	for err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Kind == KindAuthorization {
			return true
		}
		err = fe.Err
	}
	return false
}
