package decoding

import (
	"encoding/json"
	"math"
	"time"

	"github.com/pkg/errors"
)

// Location defines a geographic location.
type Location struct {
	Lat    float64
	Lng    float64
	Height *float64
}

// MarshalJSON encodes the location as [lat, lng] or [lat, lng, height].
func (l Location) MarshalJSON() ([]byte, error) {
	out := []float64{l.Lat, l.Lng}
	if l.Height != nil {
		out = append(out, *l.Height)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the location from [lat, lng] or [lat, lng, height]
// or from an object with lat, lng and height (or latitude, longitude and
// altitude) keys.
func (l *Location) UnmarshalJSON(b []byte) error {
	var arr []float64
	if err := json.Unmarshal(b, &arr); err == nil {
		if len(arr) < 2 || len(arr) > 3 {
			return errors.New("location must contain 2 or 3 values")
		}
		l.Lat = arr[0]
		l.Lng = arr[1]
		if len(arr) == 3 {
			l.Height = &arr[2]
		}
		return nil
	}

	var obj map[string]float64
	if err := json.Unmarshal(b, &obj); err != nil {
		return errors.Wrap(err, "unmarshal location error")
	}
	loc, ok := locationFromMap(obj)
	if !ok {
		return errors.New("location requires lat and lng")
	}
	*l = loc
	return nil
}

func locationFromMap(m map[string]float64) (Location, bool) {
	var loc Location
	var okLat, okLng bool

	if loc.Lat, okLat = m["latitude"]; !okLat {
		loc.Lat, okLat = m["lat"]
	}
	if loc.Lng, okLng = m["longitude"]; !okLng {
		loc.Lng, okLng = m["lng"]
	}
	if h, ok := m["altitude"]; ok {
		loc.Height = &h
	} else if h, ok := m["height"]; ok {
		loc.Height = &h
	}

	return loc, okLat && okLng
}

// Measurement holds a single decoded sensor value.
type Measurement struct {
	SensorID  string     `json:"sensor_id"`
	Value     float64    `json:"value"`
	Vector    []float64  `json:"-"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	Location  *Location  `json:"location,omitempty"`

	// position of the plan element which produced the measurement and
	// whether it is bound to a sentinel (timestamp or location) instead of
	// a sensor.
	position int
	sentinel Sentinel
}

// Valid returns an error when the value can not be stored.
func (m Measurement) Valid() error {
	if m.SensorID == "" {
		return errors.New("sensor_id must not be empty")
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return errors.Errorf("value of sensor %s is not a finite number", m.SensorID)
	}
	return nil
}

// Result holds the decoded measurements and the (non-fatal) warnings which
// were raised while decoding.
type Result struct {
	Measurements []Measurement
	Warnings     []string
}
