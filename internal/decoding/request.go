package decoding

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// Request holds the payload of an uplink and the timestamps reported for it.
type Request struct {
	// PayloadRaw holds the payload bytes. When empty, PayloadBase64 is
	// decoded instead.
	PayloadRaw    []byte
	PayloadBase64 string

	// PayloadFields holds the payload as decoded by the network backend.
	PayloadFields map[string]interface{}

	GatewayTime *time.Time
	NetworkTime *time.Time
	ReceivedAt  time.Time
}

// Timestamp returns the time the uplink was received, preferring the gateway
// time over the network time over the local receipt time.
func (r Request) Timestamp() time.Time {
	switch {
	case r.GatewayTime != nil && !r.GatewayTime.IsZero():
		return r.GatewayTime.UTC()
	case r.NetworkTime != nil && !r.NetworkTime.IsZero():
		return r.NetworkTime.UTC()
	case !r.ReceivedAt.IsZero():
		return r.ReceivedAt.UTC()
	default:
		return time.Now().UTC()
	}
}

func (r Request) payload() ([]byte, error) {
	if len(r.PayloadRaw) != 0 {
		return r.PayloadRaw, nil
	}
	if r.PayloadBase64 == "" {
		return nil, nil
	}

	b, err := base64.StdEncoding.DecodeString(r.PayloadBase64)
	if err != nil {
		return nil, newError(ErrMalformedPayload, "payload is not valid base64: %s", err)
	}
	return b, nil
}

// DecodeRequest decodes the payload of the request with the decoding
// configuration of the device. Measurements without timestamp get the
// timestamp of the request.
func DecodeRequest(req Request, dev Device) (Result, error) {
	var res Result

	if dev.Config == nil {
		return res, newError(ErrMissingConfiguration, "box has no TTN configuration")
	}

	b, err := req.payload()
	if err != nil {
		return res, err
	}
	if len(b) == 0 && len(req.PayloadFields) == 0 {
		return res, newError(ErrEmptyPayload, "payload is empty")
	}

	var ms []Measurement

	switch c := dev.Config.(type) {
	case JSONConfig:
		if len(req.PayloadFields) != 0 {
			if b, err = json.Marshal(req.PayloadFields); err != nil {
				return res, newError(ErrMalformedPayload, "encode payload fields error: %s", err)
			}
		}
		ms, err = jsonMeasurements(b)
	case CayenneLPPConfig:
		fields := req.PayloadFields
		if len(fields) == 0 {
			if fields, err = ParseLPP(b); err != nil {
				return res, err
			}
		}
		ms, err = cayenneMeasurements(dev, c, fields)
	case ByteMaskConfig, SenseBoxHomeConfig, LoRaSerializationConfig:
		if len(b) == 0 {
			return res, newError(ErrEmptyPayload, "payload is empty")
		}
		var plan Plan
		if plan, err = BuildPlan(dev); err != nil {
			return res, err
		}
		ms, res.Warnings, err = DecodeBuffer(b, plan)
	default:
		return res, newError(ErrUnsupportedProfile, "profile '%s' is not supported", dev.Config.Profile())
	}
	if err != nil {
		return res, err
	}

	ts := req.Timestamp()
	res.Measurements = make([]Measurement, len(ms))
	for i := range ms {
		res.Measurements[i] = ms[i]
		if ms[i].CreatedAt == nil {
			t := ts
			res.Measurements[i].CreatedAt = &t
		}
	}

	return res, nil
}

// BuildPlan returns the plan for decoding a byte payload of the device.
func BuildPlan(dev Device) (Plan, error) {
	switch c := dev.Config.(type) {
	case nil:
		return Plan{}, newError(ErrMissingConfiguration, "box has no TTN configuration")
	case ByteMaskConfig:
		return byteMaskPlan(dev, c)
	case SenseBoxHomeConfig:
		return senseBoxHomePlan(dev)
	case LoRaSerializationConfig:
		return loraSerializationPlan(dev, c)
	case CayenneLPPConfig, JSONConfig:
		return Plan{}, newError(ErrConfiguration, "profile '%s' does not decode with a byte plan", c.Profile())
	default:
		return Plan{}, newError(ErrUnsupportedProfile, "profile '%s' is not supported", c.Profile())
	}
}

// DecodeBytes decodes b with the decoding configuration of the device.
func DecodeBytes(b []byte, dev Device, ts time.Time) (Result, error) {
	return DecodeRequest(Request{PayloadRaw: b, ReceivedAt: ts}, dev)
}

// DecodeBase64 decodes the base64 encoded payload s with the decoding
// configuration of the device.
func DecodeBase64(s string, dev Device, ts time.Time) (Result, error) {
	return DecodeRequest(Request{PayloadBase64: s, ReceivedAt: ts}, dev)
}
