package detection

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrConfiguration  = errors.New("configuration error")
	ErrModelLoad      = errors.New("model load error")
	ErrPayload        = errors.New("payload error")
	ErrAuthentication = errors.New("authentication error")
	ErrConnection     = errors.New("connection error")
	ErrTransfer       = errors.New("transfer error")
	ErrInference      = errors.New("inference error")
	ErrPersistence    = errors.New("persistence error")
)

const (
	ExitOK    = 0
	ExitFatal = 1
)

type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.cause
}

// Wrap classifies cause under kind so callers can match it with errors.Is while the
// original message and stack stay attached.
func Wrap(kind, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return errors.WithStack(&kindError{kind: kind, cause: errors.Errorf(format, args...)})
	}
	return errors.WithStack(&kindError{kind: kind, cause: errors.Wrapf(cause, format, args...)})
}

// FatalError terminates the process with Code. Nothing below the top level recovers from it.
type FatalError struct {
	Code int
	Err  error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func Fatal(code int, err error) *FatalError {
	return &FatalError{Code: code, Err: err}
}

// VideoError is a recoverable failure scoped to one video of a batch.
type VideoError struct {
	Video string
	Step  string
	Err   error
}

func (e *VideoError) Error() string {
	return fmt.Sprintf("video %s: %s: %v", e.Video, e.Step, e.Err)
}

func (e *VideoError) Unwrap() error {
	return e.Err
}
