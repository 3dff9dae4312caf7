package storage

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/sensebox/ttn-osem-integration/internal/decoding"
)

const (
	uplinkLockKeyTempl = "ttn:uplink:lock:%s:%s:%s"  // app_id | dev_id | hex payload
	lastValueKeyTempl  = "ttn:box:%s:sensor:%s:last" // box_id | sensor_id
)

// AcquireUplinkLock acquires the de-duplication lock for the given uplink.
// It returns false when the uplink is already being handled by another
// instance.
func AcquireUplinkLock(ctx context.Context, appID, devID string, payload []byte) (bool, error) {
	if redisClient == nil {
		return true, nil
	}

	key := GetRedisKey(uplinkLockKeyTempl, appID, devID, hex.EncodeToString(payload))
	set, err := redisClient.SetNX(ctx, key, "lock", deduplicationTTL).Result()
	if err != nil {
		return false, errors.Wrap(err, "acquire uplink lock error")
	}
	return set, nil
}

// SetLastValues stores the most recent measurement of each sensor.
func SetLastValues(ctx context.Context, boxID string, ms []decoding.Measurement) error {
	if redisClient == nil || len(ms) == 0 {
		return nil
	}

	latest := make(map[string]decoding.Measurement)
	var order []string
	for _, m := range ms {
		cur, ok := latest[m.SensorID]
		if !ok {
			order = append(order, m.SensorID)
		}
		if !ok || cur.CreatedAt == nil || (m.CreatedAt != nil && !m.CreatedAt.Before(*cur.CreatedAt)) {
			latest[m.SensorID] = m
		}
	}

	pipe := redisClient.TxPipeline()
	for _, id := range order {
		b, err := json.Marshal(latest[id])
		if err != nil {
			return errors.Wrap(err, "marshal error")
		}
		pipe.Set(ctx, GetRedisKey(lastValueKeyTempl, boxID, id), b, lastValueTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "exec error")
	}
	return nil
}

// GetLastValue returns the most recent measurement of the given sensor.
func GetLastValue(ctx context.Context, boxID, sensorID string) (decoding.Measurement, error) {
	var m decoding.Measurement
	if redisClient == nil {
		return m, ErrDoesNotExist
	}

	b, err := redisClient.Get(ctx, GetRedisKey(lastValueKeyTempl, boxID, sensorID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return m, ErrDoesNotExist
		}
		return m, errors.Wrap(err, "get error")
	}

	if err := json.Unmarshal(b, &m); err != nil {
		return m, errors.Wrap(err, "unmarshal error")
	}
	return m, nil
}
