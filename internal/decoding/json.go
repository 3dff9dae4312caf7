package decoding

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

type jsonMeasurement struct {
	SensorID  string          `json:"sensor_id"`
	Sensor    string          `json:"sensor"`
	Value     json.RawMessage `json:"value"`
	CreatedAt *time.Time      `json:"createdAt"`
	Location  *Location       `json:"location"`
}

// jsonMeasurements converts structured measurements. Accepted are
// {"<sensor_id>": value}, {"<sensor_id>": [value, createdAt, location]} and
// [{"sensor_id": "..", "value": .., "createdAt": "..", "location": [..]}].
func jsonMeasurements(payload []byte) ([]Measurement, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, newError(ErrEmptyPayload, "payload is empty")
	}

	switch payload[0] {
	case '[':
		return jsonArrayMeasurements(payload)
	case '{':
		return jsonObjectMeasurements(payload)
	default:
		return nil, newError(ErrMalformedPayload, "json payload must be an object or an array")
	}
}

func jsonArrayMeasurements(payload []byte) ([]Measurement, error) {
	var in []jsonMeasurement
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, newError(ErrMalformedPayload, "invalid json payload: %s", err)
	}

	out := make([]Measurement, 0, len(in))
	for i, jm := range in {
		id := jm.SensorID
		if id == "" {
			id = jm.Sensor
		}

		v, err := parseValue(jm.Value)
		if err != nil {
			return nil, newError(ErrMalformedPayload, "invalid value of measurement %d: %s", i, err)
		}

		out = append(out, Measurement{
			SensorID:  id,
			Value:     v,
			CreatedAt: utc(jm.CreatedAt),
			Location:  jm.Location,
			position:  i,
		})
	}

	return out, nil
}

func jsonObjectMeasurements(payload []byte) ([]Measurement, error) {
	var in map[string]json.RawMessage
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, newError(ErrMalformedPayload, "invalid json payload: %s", err)
	}

	ids := make([]string, 0, len(in))
	for id := range in {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Measurement, 0, len(in))
	for i, id := range ids {
		m := Measurement{
			SensorID: id,
			position: i,
		}

		raw := bytes.TrimSpace(in[id])
		if len(raw) > 0 && raw[0] == '[' {
			var tuple []json.RawMessage
			if err := json.Unmarshal(raw, &tuple); err != nil || len(tuple) == 0 || len(tuple) > 3 {
				return nil, newError(ErrMalformedPayload, "measurement of sensor %s must be [value, createdAt, location]", id)
			}
			raw = tuple[0]

			if len(tuple) > 1 && !isNull(tuple[1]) {
				var ts time.Time
				if err := json.Unmarshal(tuple[1], &ts); err != nil {
					return nil, newError(ErrMalformedPayload, "invalid createdAt of sensor %s: %s", id, err)
				}
				m.CreatedAt = utc(&ts)
			}
			if len(tuple) > 2 && !isNull(tuple[2]) {
				var loc Location
				if err := json.Unmarshal(tuple[2], &loc); err != nil {
					return nil, newError(ErrMalformedPayload, "invalid location of sensor %s: %s", id, err)
				}
				m.Location = &loc
			}
		}

		v, err := parseValue(raw)
		if err != nil {
			return nil, newError(ErrMalformedPayload, "invalid value of sensor %s: %s", id, err)
		}
		m.Value = v

		out = append(out, m)
	}

	return out, nil
}

// parseValue accepts a JSON number or a string holding a number.
func parseValue(raw json.RawMessage) (float64, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, newError(ErrMalformedPayload, "%s is not a number", string(raw))
	}
	return f, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
