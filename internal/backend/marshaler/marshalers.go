package marshaler

import (
	"bytes"
	"encoding/json"
	"time"
)

// Type defines the marshaler type.
type Type int

// Marshaler types.
const (
	Protobuf Type = iota
	JSON
	TTNv2JSON
	TTNv3JSON
)

func (t Type) String() string {
	switch t {
	case Protobuf:
		return "protobuf"
	case JSON:
		return "json"
	case TTNv2JSON:
		return "ttn_v2_json"
	case TTNv3JSON:
		return "ttn_v3_json"
	default:
		return "unknown"
	}
}

// jsonTime is a RFC3339 timestamp which may be empty or null.
type jsonTime struct {
	time.Time
}

func (t *jsonTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		return nil
	}

	var ts time.Time
	if err := json.Unmarshal(b, &ts); err != nil {
		return err
	}
	t.Time = ts.UTC()
	return nil
}

func (t jsonTime) ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	ts := t.Time
	return &ts
}
