package decoding

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// cayenneMeasurements reads the values of the configured channels from the
// (pre-decoded) field map. Missing fields default to 0. GPS fields set the
// location of all measurements.
func cayenneMeasurements(dev Device, c CayenneLPPConfig, fields map[string]interface{}) ([]Measurement, error) {
	if len(c.Channels) == 0 {
		return nil, newError(ErrConfiguration, "profile '%s' requires valid decodeOptions", ProfileCayenneLPP)
	}

	phenomena := make([]Phenomenon, 0, len(c.Channels))
	for i, opt := range c.Channels {
		criteria := opt.criteria()
		if len(criteria) == 0 {
			return nil, newError(ErrConfiguration, "invalid decodeOptions. requires at least one of [sensor_id, sensor_title, sensor_type, sensor_unit]")
		}
		phenomena = append(phenomena, Phenomenon{
			Name:     strconv.Itoa(i),
			Criteria: criteria,
		})
	}

	ids := MatchSensors(dev.Sensors, phenomena)
	if len(ids) != len(phenomena) {
		return nil, newError(ErrSensorResolution, "box does not contain sensors mentioned in decodeOptions")
	}

	ms := make([]Measurement, 0, len(c.Channels))
	for i, opt := range c.Channels {
		v, _ := toFloat(fields[fmt.Sprintf("%s_%d", opt.Decoder, opt.Channel)])
		ms = append(ms, Measurement{
			SensorID: ids[strconv.Itoa(i)],
			Value:    v,
			position: i,
		})
	}

	for _, loc := range gpsLocations(fields) {
		ms = locationForAll(loc)(-1, ms)
	}

	return ms, nil
}

// gpsLocations returns the locations of all gps fields, ordered by key.
func gpsLocations(fields map[string]interface{}) []Location {
	var keys []string
	for k := range fields {
		if strings.Contains(strings.ToLower(k), "gps") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []Location
	for _, k := range keys {
		obj, ok := fields[k].(map[string]interface{})
		if !ok {
			continue
		}

		coords := make(map[string]float64, len(obj))
		for ck, cv := range obj {
			if f, ok := toFloat(cv); ok {
				coords[ck] = f
			}
		}

		if loc, ok := locationFromMap(coords); ok {
			out = append(out, loc)
		}
	}

	return out
}
