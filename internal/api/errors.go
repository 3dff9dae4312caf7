package api

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/sensebox/ttn-osem-integration/internal/decoding"
	"github.com/sensebox/ttn-osem-integration/internal/models"
	"github.com/sensebox/ttn-osem-integration/internal/storage"
)

var errToCode = map[error]int{
	models.ErrMalformedUplink: http.StatusUnprocessableEntity,

	decoding.ErrMissingConfiguration: http.StatusUnprocessableEntity,
	decoding.ErrUnsupportedProfile:   http.StatusUnprocessableEntity,
	decoding.ErrConfiguration:        http.StatusUnprocessableEntity,
	decoding.ErrUnsupportedDecoder:   http.StatusUnprocessableEntity,
	decoding.ErrSensorResolution:     http.StatusUnprocessableEntity,
	decoding.ErrLengthMismatch:       http.StatusUnprocessableEntity,
	decoding.ErrEmptyPayload:         http.StatusUnprocessableEntity,
	decoding.ErrMalformedPayload:     http.StatusUnprocessableEntity,

	storage.ErrInvalidMeasurement: http.StatusUnprocessableEntity,
	storage.ErrDoesNotExist:       http.StatusNotFound,
}

// errToStatusCode returns the HTTP status code for the given error.
// Unclassified errors result in 501.
func errToStatusCode(err error) int {
	code, ok := errToCode[errors.Cause(err)]
	if !ok {
		return http.StatusNotImplemented
	}
	return code
}
