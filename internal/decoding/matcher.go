package decoding

import "strings"

// Property defines the sensor property a criterion is tested against.
type Property int

// Sensor properties.
const (
	ByID Property = iota
	ByTitle
	ByType
	ByUnit
)

// String implements the fmt.Stringer interface.
func (p Property) String() string {
	switch p {
	case ByID:
		return "id"
	case ByTitle:
		return "title"
	case ByType:
		return "type"
	case ByUnit:
		return "unit"
	default:
		return "unknown"
	}
}

func (p Property) value(s Sensor) string {
	switch p {
	case ByID:
		return s.ID
	case ByTitle:
		return s.Title
	case ByType:
		return s.Type
	case ByUnit:
		return s.Unit
	default:
		return ""
	}
}

// Sensor defines a sensor declared by a device.
type Sensor struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"sensorType"`
	Unit  string `json:"unit"`
}

// Criterion matches a sensor when its Property equals one of the Values
// (case-insensitive).
type Criterion struct {
	Property Property
	Values   []string
}

// Phenomenon defines a measured quantity and the criteria (in order of
// priority) to find the sensor measuring it.
type Phenomenon struct {
	Name     string
	Criteria []Criterion
}

// MatchSensors returns for each phenomenon the id of the matched sensor.
// Phenomena are processed in order. Once a sensor has been matched, it is
// no longer available for the remaining phenomena. Phenomena without match are
// not included in the returned map.
func MatchSensors(sensors []Sensor, phenomena []Phenomenon) map[string]string {
	out := make(map[string]string)
	pool := make([]Sensor, len(sensors))
	copy(pool, sensors)

	for _, ph := range phenomena {
	criteria:
		for _, c := range ph.Criteria {
			for i, s := range pool {
				prop := c.Property.value(s)
				if prop == "" {
					continue
				}

				if containsFold(c.Values, prop) {
					out[ph.Name] = s.ID
					pool = append(pool[:i:i], pool[i+1:]...)
					break criteria
				}
			}
		}
	}

	return out
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func titles(values ...string) []Criterion {
	return []Criterion{{Property: ByTitle, Values: values}}
}
