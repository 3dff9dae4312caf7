package decoding

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Use errors.Cause (or errors.Is) on a returned error to get the
// kind.
var (
	ErrMissingConfiguration = errors.New("device has no decoding configuration")
	ErrUnsupportedProfile   = errors.New("unsupported decoding profile")
	ErrConfiguration        = errors.New("invalid decoding configuration")
	ErrUnsupportedDecoder   = errors.New("unsupported decoder")
	ErrSensorResolution     = errors.New("sensors could not be resolved")
	ErrLengthMismatch       = errors.New("payload length mismatch")
	ErrEmptyPayload         = errors.New("payload is empty")
	ErrMalformedPayload     = errors.New("malformed payload")
)

// Error is a decoding failure of a given kind with a human readable message.
type Error struct {
	Kind    error
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Cause returns the error kind (github.com/pkg/errors causer).
func (e *Error) Cause() error {
	return e.Kind
}

// Unwrap returns the error kind.
func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...interface{}) error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}
