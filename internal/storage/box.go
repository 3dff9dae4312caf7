package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sensebox/ttn-osem-integration/internal/decoding"
	"github.com/sensebox/ttn-osem-integration/internal/logging"
)

const boxCacheKeyTempl = "ttn:box:%s:%s" // app_id | dev_id

// Box defines a senseBox with its TTN integration settings.
type Box struct {
	ID               string         `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
	TTNAppID         string         `db:"ttn_app_id" json:"ttnAppID"`
	TTNDevID         string         `db:"ttn_dev_id" json:"ttnDevID"`
	TTNPort          *int           `db:"ttn_port" json:"ttnPort,omitempty"`
	TTNProfile       string         `db:"ttn_profile" json:"ttnProfile"`
	TTNDecodeOptions types.JSONText `db:"ttn_decode_options" json:"ttnDecodeOptions"`
	Sensors          []Sensor       `db:"-" json:"sensors"`
}

// Sensor defines a sensor of a box.
type Sensor struct {
	ID         string `db:"id" json:"id"`
	BoxID      string `db:"box_id" json:"boxID"`
	Position   int    `db:"position" json:"position"`
	Title      string `db:"title" json:"title"`
	SensorType string `db:"sensor_type" json:"sensorType"`
	Unit       string `db:"unit" json:"unit"`
}

// Validate validates the box data.
func (b Box) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("name must not be empty")
	}
	if b.TTNPort != nil && (*b.TTNPort < 0 || *b.TTNPort > 255) {
		return errors.New("ttn port must be between 0 and 255")
	}
	return nil
}

// HasSensor returns true when the box contains a sensor with the given ID.
func (b Box) HasSensor(id string) bool {
	for _, s := range b.Sensors {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Device returns the decoding device for the box. A box without TTN profile
// returns a device without decoding configuration.
func (b Box) Device() (decoding.Device, error) {
	dev := decoding.Device{
		ID: b.ID,
	}

	for _, s := range b.Sensors {
		dev.Sensors = append(dev.Sensors, decoding.Sensor{
			ID:    s.ID,
			Title: s.Title,
			Type:  s.SensorType,
			Unit:  s.Unit,
		})
	}

	if b.TTNProfile == "" {
		return dev, nil
	}

	conf, err := decoding.NewConfig(b.TTNProfile, json.RawMessage(b.TTNDecodeOptions))
	if err != nil {
		return dev, err
	}
	dev.Config = conf

	return dev, nil
}

func newID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", errors.Wrap(err, "new uuid v4 error")
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

// CreateBox creates the given box and its sensors. Empty box and sensor IDs
// are generated.
func CreateBox(ctx context.Context, db sqlx.ExecerContext, b *Box) error {
	if err := b.Validate(); err != nil {
		return errors.Wrap(err, "validate error")
	}

	if b.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}
		b.ID = id
	}

	if len(b.TTNDecodeOptions) == 0 {
		b.TTNDecodeOptions = types.JSONText("{}")
	}

	now := time.Now()

	_, err := db.ExecContext(ctx, `
		insert into box (
			id,
			name,
			created_at,
			updated_at,
			ttn_app_id,
			ttn_dev_id,
			ttn_port,
			ttn_profile,
			ttn_decode_options
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID,
		b.Name,
		now,
		now,
		b.TTNAppID,
		b.TTNDevID,
		b.TTNPort,
		b.TTNProfile,
		b.TTNDecodeOptions,
	)
	if err != nil {
		return handlePSQLError(err, "insert error")
	}

	for i := range b.Sensors {
		if err := upsertSensor(ctx, db, b.ID, i, &b.Sensors[i]); err != nil {
			return err
		}
	}

	b.CreatedAt = now
	b.UpdatedAt = now

	log.WithFields(log.Fields{
		"box_id":  b.ID,
		"app_id":  b.TTNAppID,
		"dev_id":  b.TTNDevID,
		"profile": b.TTNProfile,
		"ctx_id":  ctx.Value(logging.ContextIDKey),
	}).Info("storage: box created")

	return nil
}

func upsertSensor(ctx context.Context, db sqlx.ExecerContext, boxID string, position int, s *Sensor) error {
	if s.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}
		s.ID = id
	}
	s.BoxID = boxID
	s.Position = position

	_, err := db.ExecContext(ctx, `
		insert into sensor (
			id,
			box_id,
			position,
			title,
			sensor_type,
			unit
		) values ($1, $2, $3, $4, $5, $6)
		on conflict (id) do update set
			position = excluded.position,
			title = excluded.title,
			sensor_type = excluded.sensor_type,
			unit = excluded.unit
		where sensor.box_id = excluded.box_id`,
		s.ID,
		s.BoxID,
		s.Position,
		s.Title,
		s.SensorType,
		s.Unit,
	)
	if err != nil {
		return handlePSQLError(err, "insert sensor error")
	}
	return nil
}

// GetBox returns the box (and its sensors) for the given ID.
func GetBox(ctx context.Context, db sqlx.QueryerContext, id string) (Box, error) {
	var b Box
	err := sqlx.GetContext(ctx, db, &b, "select * from box where id = $1", id)
	if err != nil {
		return b, handlePSQLError(err, "select error")
	}

	b.Sensors, err = getSensors(ctx, db, b.ID)
	if err != nil {
		return b, err
	}

	return b, nil
}

func getSensors(ctx context.Context, db sqlx.QueryerContext, boxID string) ([]Sensor, error) {
	var sensors []Sensor
	err := sqlx.SelectContext(ctx, db, &sensors, `
		select *
		from sensor
		where box_id = $1
		order by position`,
		boxID,
	)
	if err != nil {
		return nil, handlePSQLError(err, "select sensors error")
	}
	return sensors, nil
}

// GetBoxesForTTNDevice returns the boxes (oldest first) configured for the
// given TTN application and device ID.
func GetBoxesForTTNDevice(ctx context.Context, db sqlx.QueryerContext, appID, devID string) ([]Box, error) {
	var boxes []Box
	err := sqlx.SelectContext(ctx, db, &boxes, `
		select *
		from box
		where
			ttn_app_id = $1
			and ttn_dev_id = $2
		order by created_at, id`,
		appID,
		devID,
	)
	if err != nil {
		return nil, handlePSQLError(err, "select error")
	}

	for i := range boxes {
		boxes[i].Sensors, err = getSensors(ctx, db, boxes[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return boxes, nil
}

// GetBoxForTTNDevice returns the box for the given TTN application, device
// ID and port. Boxes without configured port match any port. A
// BoxNotFoundError is returned when no box matches.
func GetBoxForTTNDevice(ctx context.Context, db sqlx.QueryerContext, appID, devID string, port *int) (Box, error) {
	boxes, err := GetBoxesForTTNDevice(ctx, db, appID, devID)
	if err != nil {
		return Box{}, err
	}
	return filterBoxesByPort(boxes, appID, devID, port)
}

// GetAndCacheBoxForTTNDevice returns the box for the given TTN application,
// device ID and port. The boxes of a device are cached in Redis.
func GetAndCacheBoxForTTNDevice(ctx context.Context, db sqlx.QueryerContext, appID, devID string, port *int) (Box, error) {
	boxes, err := getBoxesCache(ctx, appID, devID)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"app_id": appID,
			"dev_id": devID,
			"ctx_id": ctx.Value(logging.ContextIDKey),
		}).Error("storage: get boxes from cache error")
	}

	if boxes == nil {
		boxes, err = GetBoxesForTTNDevice(ctx, db, appID, devID)
		if err != nil {
			return Box{}, err
		}

		if err := setBoxesCache(ctx, appID, devID, boxes); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"app_id": appID,
				"dev_id": devID,
				"ctx_id": ctx.Value(logging.ContextIDKey),
			}).Error("storage: set boxes cache error")
		}
	}

	return filterBoxesByPort(boxes, appID, devID, port)
}

func filterBoxesByPort(boxes []Box, appID, devID string, port *int) (Box, error) {
	if len(boxes) == 0 {
		return Box{}, BoxNotFoundError{What: "for dev_id '" + devID + "' and app_id '" + appID + "'"}
	}

	for _, b := range boxes {
		if b.TTNPort == nil || (port != nil && *b.TTNPort == *port) {
			return b, nil
		}
	}

	what := "for port <nil>"
	if port != nil {
		what = "for port " + strconv.Itoa(*port)
	}
	return Box{}, BoxNotFoundError{What: what}
}

func getBoxesCache(ctx context.Context, appID, devID string) ([]Box, error) {
	if redisClient == nil {
		return nil, nil
	}

	b, err := redisClient.Get(ctx, GetRedisKey(boxCacheKeyTempl, appID, devID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get error")
	}

	boxes := []Box{}
	if err := json.Unmarshal(b, &boxes); err != nil {
		return nil, errors.Wrap(err, "unmarshal error")
	}
	return boxes, nil
}

func setBoxesCache(ctx context.Context, appID, devID string, boxes []Box) error {
	if redisClient == nil {
		return nil
	}

	if boxes == nil {
		boxes = []Box{}
	}

	b, err := json.Marshal(boxes)
	if err != nil {
		return errors.Wrap(err, "marshal error")
	}

	if err := redisClient.Set(ctx, GetRedisKey(boxCacheKeyTempl, appID, devID), b, boxCacheTTL).Err(); err != nil {
		return errors.Wrap(err, "set error")
	}
	return nil
}

// FlushBoxCache removes the cached boxes of the given TTN device.
func FlushBoxCache(ctx context.Context, appID, devID string) error {
	if redisClient == nil {
		return nil
	}

	if err := redisClient.Del(ctx, GetRedisKey(boxCacheKeyTempl, appID, devID)).Err(); err != nil {
		return errors.Wrap(err, "delete error")
	}

	log.WithFields(log.Fields{
		"app_id": appID,
		"dev_id": devID,
		"ctx_id": ctx.Value(logging.ContextIDKey),
	}).Debug("storage: box cache flushed")
	return nil
}

// UpdateBox updates the given box. Sensors missing from the box are removed,
// new sensors are created.
func UpdateBox(ctx context.Context, db sqlx.ExtContext, b *Box) error {
	if err := b.Validate(); err != nil {
		return errors.Wrap(err, "validate error")
	}

	if len(b.TTNDecodeOptions) == 0 {
		b.TTNDecodeOptions = types.JSONText("{}")
	}

	old, err := GetBox(ctx, db, b.ID)
	if err != nil {
		return errors.Wrap(err, "get box error")
	}

	now := time.Now()

	_, err = db.ExecContext(ctx, `
		update box set
			updated_at = $2,
			name = $3,
			ttn_app_id = $4,
			ttn_dev_id = $5,
			ttn_port = $6,
			ttn_profile = $7,
			ttn_decode_options = $8
		where id = $1`,
		b.ID,
		now,
		b.Name,
		b.TTNAppID,
		b.TTNDevID,
		b.TTNPort,
		b.TTNProfile,
		b.TTNDecodeOptions,
	)
	if err != nil {
		return handlePSQLError(err, "update error")
	}

	var ids []string
	for i := range b.Sensors {
		if err := upsertSensor(ctx, db, b.ID, i, &b.Sensors[i]); err != nil {
			return err
		}
		ids = append(ids, b.Sensors[i].ID)
	}

	_, err = db.ExecContext(ctx, `
		delete from sensor
		where
			box_id = $1
			and not (id = any($2))`,
		b.ID,
		pq.StringArray(ids),
	)
	if err != nil {
		return handlePSQLError(err, "delete sensors error")
	}

	b.CreatedAt = old.CreatedAt
	b.UpdatedAt = now

	for _, d := range [][2]string{{old.TTNAppID, old.TTNDevID}, {b.TTNAppID, b.TTNDevID}} {
		if err := FlushBoxCache(ctx, d[0], d[1]); err != nil {
			return errors.Wrap(err, "flush box cache error")
		}
	}

	log.WithFields(log.Fields{
		"box_id": b.ID,
		"ctx_id": ctx.Value(logging.ContextIDKey),
	}).Info("storage: box updated")

	return nil
}

// DeleteBox deletes the box (and its sensors and measurements) matching the
// given ID.
func DeleteBox(ctx context.Context, db sqlx.ExtContext, id string) error {
	b, err := GetBox(ctx, db, id)
	if err != nil {
		return errors.Wrap(err, "get box error")
	}

	res, err := db.ExecContext(ctx, "delete from box where id = $1", id)
	if err != nil {
		return handlePSQLError(err, "delete error")
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "get rows affected error")
	}
	if ra == 0 {
		return ErrDoesNotExist
	}

	if err := FlushBoxCache(ctx, b.TTNAppID, b.TTNDevID); err != nil {
		return errors.Wrap(err, "flush box cache error")
	}

	log.WithFields(log.Fields{
		"box_id": id,
		"ctx_id": ctx.Value(logging.ContextIDKey),
	}).Info("storage: box deleted")

	return nil
}
