package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"github.com/sensebox/ttn-osem-integration/internal/decoding"
	"github.com/sensebox/ttn-osem-integration/internal/logging"
)

// ValidateMeasurements validates that the given measurements can be stored
// for the given box.
func ValidateMeasurements(b Box, ms []decoding.Measurement) error {
	if len(ms) == 0 {
		return MeasurementError{Message: "no measurements to save"}
	}

	for _, m := range ms {
		if err := m.Valid(); err != nil {
			return MeasurementError{Message: err.Error()}
		}
		if !b.HasSensor(m.SensorID) {
			return MeasurementError{Message: fmt.Sprintf("box %s does not contain sensor %s", b.ID, m.SensorID)}
		}
	}

	return nil
}

// SaveMeasurements validates and stores the given measurements for the
// given box.
func SaveMeasurements(ctx context.Context, db sqlx.ExecerContext, b Box, ms []decoding.Measurement) error {
	if err := ValidateMeasurements(b, ms); err != nil {
		return err
	}

	for _, m := range ms {
		createdAt := time.Now().UTC()
		if m.CreatedAt != nil {
			createdAt = *m.CreatedAt
		}

		var lat, lng, height *float64
		if m.Location != nil {
			lat, lng, height = &m.Location.Lat, &m.Location.Lng, m.Location.Height
		}

		_, err := db.ExecContext(ctx, `
			insert into measurement (
				box_id,
				sensor_id,
				value,
				created_at,
				location_lat,
				location_lng,
				location_height
			) values ($1, $2, $3, $4, $5, $6, $7)`,
			b.ID,
			m.SensorID,
			m.Value,
			createdAt,
			lat,
			lng,
			height,
		)
		if err != nil {
			return handlePSQLError(err, "insert error")
		}
	}

	log.WithFields(log.Fields{
		"box_id": b.ID,
		"count":  len(ms),
		"ctx_id": ctx.Value(logging.ContextIDKey),
	}).Info("storage: measurements saved")

	return nil
}
