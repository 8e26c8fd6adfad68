package pipeline

import "fmt"

// ErrorKind is the closed set of failure classes a pipeline operation can
// produce. Callers use it to decide whether a failure is worth retrying:
// provider errors are transient, validation and configuration errors are not.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindProvider      ErrorKind = "provider"
	KindConfiguration ErrorKind = "configuration"
)

// Error tags an underlying failure with its kind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Err: fmt.Errorf(format, args...)}
}

func providerError(err error) *Error {
	return &Error{Kind: KindProvider, Err: err}
}
