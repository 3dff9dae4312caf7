package decoding

import (
	"encoding/binary"
	"fmt"
)

type lppType struct {
	name  string
	bytes int
	parse func(b []byte) interface{}
}

func lppScalar(signed bool, divisor float64) func(b []byte) interface{} {
	return func(b []byte) interface{} {
		return lppNumber(b, signed) / divisor
	}
}

func lppVector(divisor float64, keys ...string) func(b []byte) interface{} {
	return func(b []byte) interface{} {
		out := make(map[string]interface{}, len(keys))
		width := len(b) / len(keys)
		for i, k := range keys {
			out[k] = lppNumber(b[i*width:(i+1)*width], true) / divisor
		}
		return out
	}
}

// lppTypes maps the Cayenne LPP data types to the field names used by The
// Things Network.
var lppTypes = map[byte]lppType{
	0x00: {"digital_in", 1, lppScalar(false, 1)},
	0x01: {"digital_out", 1, lppScalar(false, 1)},
	0x02: {"analog_in", 2, lppScalar(true, 100)},
	0x03: {"analog_out", 2, lppScalar(true, 100)},
	0x65: {"luminosity", 2, lppScalar(false, 1)},
	0x66: {"presence", 1, lppScalar(false, 1)},
	0x67: {"temperature", 2, lppScalar(true, 10)},
	0x68: {"relative_humidity", 1, lppScalar(false, 2)},
	0x71: {"accelerometer", 6, lppVector(1000, "x", "y", "z")},
	0x73: {"barometric_pressure", 2, lppScalar(false, 10)},
	0x86: {"gyrometer", 6, lppVector(100, "x", "y", "z")},
	0x88: {"gps", 9, func(b []byte) interface{} {
		return map[string]interface{}{
			"latitude":  lppNumber(b[0:3], true) / 1e4,
			"longitude": lppNumber(b[3:6], true) / 1e4,
			"altitude":  lppNumber(b[6:9], true) / 1e2,
		}
	}},
}

// ParseLPP decodes a Cayenne LPP payload into a field map keyed by
// <type>_<channel>, e.g. temperature_1.
func ParseLPP(b []byte) (map[string]interface{}, error) {
	out := make(map[string]interface{})

	for len(b) > 0 {
		if len(b) < 2 {
			return nil, newError(ErrLengthMismatch, "cayenne lpp payload ends within a header")
		}

		channel, typ := b[0], b[1]
		t, ok := lppTypes[typ]
		if !ok {
			return nil, newError(ErrUnsupportedDecoder, "cayenne lpp type 0x%02x is not supported", typ)
		}

		b = b[2:]
		if len(b) < t.bytes {
			return nil, newError(ErrLengthMismatch, "incorrect amount of bytes, %s requires %d bytes", t.name, t.bytes)
		}

		out[fmt.Sprintf("%s_%d", t.name, channel)] = t.parse(b[:t.bytes])
		b = b[t.bytes:]
	}

	return out, nil
}

// lppNumber decodes a big-endian integer of 1 to 4 bytes.
func lppNumber(b []byte, signed bool) float64 {
	var buf [4]byte
	copy(buf[4-len(b):], b)
	v := binary.BigEndian.Uint32(buf[:])

	if signed {
		shift := uint(32 - 8*len(b))
		return float64(int32(v<<shift) >> shift)
	}
	return float64(v)
}
