package storage

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// errors
var (
	ErrAlreadyExists      = errors.New("object already exists")
	ErrDoesNotExist       = errors.New("object does not exist")
	ErrInvalidMeasurement = errors.New("invalid measurement")
)

// BoxNotFoundError is returned when no box is configured for a TTN device.
// Its cause is ErrDoesNotExist.
type BoxNotFoundError struct {
	What string
}

func (e BoxNotFoundError) Error() string {
	return fmt.Sprintf("no box found %s", e.What)
}

// Cause returns ErrDoesNotExist.
func (e BoxNotFoundError) Cause() error {
	return ErrDoesNotExist
}

// Unwrap returns ErrDoesNotExist.
func (e BoxNotFoundError) Unwrap() error {
	return ErrDoesNotExist
}

// MeasurementError is returned when decoded measurements can not be stored
// for a box. Its cause is ErrInvalidMeasurement.
type MeasurementError struct {
	Message string
}

func (e MeasurementError) Error() string {
	return e.Message
}

// Cause returns ErrInvalidMeasurement.
func (e MeasurementError) Cause() error {
	return ErrInvalidMeasurement
}

// Unwrap returns ErrInvalidMeasurement.
func (e MeasurementError) Unwrap() error {
	return ErrInvalidMeasurement
}

func handlePSQLError(err error, description string) error {
	if err == sql.ErrNoRows {
		return ErrDoesNotExist
	}

	switch err := err.(type) {
	case *pq.Error:
		switch err.Code.Name() {
		case "unique_violation":
			return ErrAlreadyExists
		case "foreign_key_violation":
			return ErrDoesNotExist
		}
	}

	return errors.Wrap(err, description)
}
