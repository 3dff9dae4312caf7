package decoding

import (
	"encoding/binary"
	"math"
	"strconv"
)

type serializationDecoder struct {
	bytes    int
	sentinel Sentinel
	value    ValueFunc
	hook     PostHook
}

// serializationDecoders are the supported decoders of the lora-serialization
// library. The generic decode function and bitmap are not supported.
var serializationDecoders = map[string]serializationDecoder{
	"unixtime": {4, SentinelTimestamp, func(b []byte) []float64 {
		return []float64{float64(binary.LittleEndian.Uint32(b))}
	}, timestampHook},
	"latLng": {8, SentinelLocation, func(b []byte) []float64 {
		return []float64{
			float64(int32(binary.LittleEndian.Uint32(b[0:4]))) / 1e6,
			float64(int32(binary.LittleEndian.Uint32(b[4:8]))) / 1e6,
		}
	}, locationHook},
	"uint8": {1, SentinelNone, func(b []byte) []float64 {
		return []float64{float64(b[0])}
	}, nil},
	"uint16": {2, SentinelNone, func(b []byte) []float64 {
		return []float64{float64(binary.LittleEndian.Uint16(b))}
	}, nil},
	"uint32": {4, SentinelNone, func(b []byte) []float64 {
		return []float64{float64(binary.LittleEndian.Uint32(b))}
	}, nil},
	"temperature": {2, SentinelNone, func(b []byte) []float64 {
		return []float64{float64(int16(binary.BigEndian.Uint16(b))) / 1e2}
	}, nil},
	"humidity": {2, SentinelNone, func(b []byte) []float64 {
		return []float64{float64(binary.LittleEndian.Uint16(b)) / 1e2}
	}, nil},
	"rawfloat": {4, SentinelNone, func(b []byte) []float64 {
		return []float64{float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))}
	}, nil},
}

func loraSerializationPlan(dev Device, c LoRaSerializationConfig) (Plan, error) {
	if len(c.Decoders) == 0 {
		return Plan{}, newError(ErrConfiguration, "profile '%s' requires a valid byteMask", ProfileLoRaSerialization)
	}

	var phenomena []Phenomenon
	for i, opt := range c.Decoders {
		dec, ok := serializationDecoders[opt.Decoder]
		if !ok {
			return Plan{}, newError(ErrUnsupportedDecoder, "'%s' is not a supported transformer", opt.Decoder)
		}
		if dec.sentinel != SentinelNone {
			continue
		}

		criteria := opt.criteria()
		if len(criteria) == 0 {
			return Plan{}, newError(ErrConfiguration, "invalid decodeOptions. requires at least one of [sensor_id, sensor_title, sensor_type, sensor_unit]")
		}
		phenomena = append(phenomena, Phenomenon{
			Name:     strconv.Itoa(i),
			Criteria: criteria,
		})
	}

	ids := MatchSensors(dev.Sensors, phenomena)
	if len(ids) != len(phenomena) {
		return Plan{}, newError(ErrSensorResolution, "box does not contain sensors mentioned in byteMask")
	}

	plan := Plan{
		Elements: make([]PlanElement, 0, len(c.Decoders)),
		Strict:   true,
	}
	for i, opt := range c.Decoders {
		dec := serializationDecoders[opt.Decoder]
		plan.Elements = append(plan.Elements, PlanElement{
			Bytes:    dec.bytes,
			SensorID: ids[strconv.Itoa(i)],
			Sentinel: dec.sentinel,
			Value:    dec.value,
			PostHook: dec.hook,
		})
	}

	return plan, nil
}
