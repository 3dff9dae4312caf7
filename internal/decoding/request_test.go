package decoding

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	gwTime := time.Date(2021, 1, 1, 10, 0, 0, 0, time.UTC)
	nsTime := time.Date(2021, 1, 1, 10, 0, 1, 0, time.UTC)
	rxTime := time.Date(2021, 1, 1, 10, 0, 2, 0, time.UTC)
	dev := Device{Sensors: homeSensors, Config: SenseBoxHomeConfig{}}
	payload := "kzIrIYzlOycAMgEA"

	t.Run("base64 and bytes give the same result", func(t *testing.T) {
		assert := require.New(t)
		b, err := base64.StdEncoding.DecodeString(payload)
		assert.NoError(err)

		fromBytes, err := DecodeBytes(b, dev, rxTime)
		assert.NoError(err)
		fromBase64, err := DecodeBase64(payload, dev, rxTime)
		assert.NoError(err)
		assert.Equal(fromBytes, fromBase64)
		assert.Len(fromBytes.Measurements, 5)
	})

	timestampTests := []struct {
		Name     string
		Request  Request
		Expected time.Time
	}{
		{"gateway time", Request{PayloadBase64: payload, GatewayTime: &gwTime, NetworkTime: &nsTime, ReceivedAt: rxTime}, gwTime},
		{"network time", Request{PayloadBase64: payload, NetworkTime: &nsTime, ReceivedAt: rxTime}, nsTime},
		{"receipt time", Request{PayloadBase64: payload, ReceivedAt: rxTime}, rxTime},
		{"zero gateway time", Request{PayloadBase64: payload, GatewayTime: &time.Time{}, ReceivedAt: rxTime}, rxTime},
	}

	for _, tst := range timestampTests {
		t.Run(tst.Name, func(t *testing.T) {
			assert := require.New(t)
			res, err := DecodeRequest(tst.Request, dev)
			assert.NoError(err)
			for _, m := range res.Measurements {
				assert.True(tst.Expected.Equal(*m.CreatedAt))
			}
		})
	}

	errorTests := []struct {
		Name     string
		Request  Request
		Device   Device
		Expected error
	}{
		{"missing configuration", Request{PayloadBase64: payload}, Device{Sensors: homeSensors}, ErrMissingConfiguration},
		{"empty payload", Request{}, dev, ErrEmptyPayload},
		{"invalid base64", Request{PayloadBase64: "!!"}, dev, ErrMalformedPayload},
		{"fields for a byte profile", Request{PayloadFields: map[string]interface{}{"a": 1.0}}, dev, ErrEmptyPayload},
	}

	for _, tst := range errorTests {
		t.Run(tst.Name, func(t *testing.T) {
			assert := require.New(t)
			_, err := DecodeRequest(tst.Request, tst.Device)
			assert.Equal(tst.Expected, errors.Cause(err))
		})
	}
}

func TestNewConfig(t *testing.T) {
	tests := []struct {
		Name          string
		Profile       string
		Options       string
		Expected      Config
		ExpectedError error
	}{
		{"debug", ProfileDebug, `{"byteMask": [1, 2]}`, ByteMaskConfig{Name: ProfileDebug, ByteMask: []int{1, 2}}, nil},
		{"custom", ProfileCustom, `{"byteMask": [2]}`, ByteMaskConfig{Name: ProfileCustom, ByteMask: []int{2}}, nil},
		{"custom invalid mask", ProfileCustom, `{"byteMask": "2"}`, nil, ErrConfiguration},
		{"sensebox/home", ProfileSenseBoxHome, ``, SenseBoxHomeConfig{}, nil},
		{"json", ProfileJSON, `null`, JSONConfig{}, nil},
		{"lora-serialization list", ProfileLoRaSerialization, `[{"decoder": "uint8", "sensor_id": "a"}]`,
			LoRaSerializationConfig{Decoders: []DecoderOption{{Decoder: "uint8", SensorID: "a"}}}, nil},
		{"lora-serialization byteMask", ProfileLoRaSerialization, `{"byteMask": [{"decoder": "unixtime"}]}`,
			LoRaSerializationConfig{Decoders: []DecoderOption{{Decoder: "unixtime"}}}, nil},
		{"cayenne-lpp", ProfileCayenneLPP, `[{"decoder": "temperature", "channel": 1, "sensor_title": "Temperatur"}]`,
			CayenneLPPConfig{Channels: []DecoderOption{{Decoder: "temperature", Channel: 1, SensorTitle: "Temperatur"}}}, nil},
		{"cayenne-lpp invalid", ProfileCayenneLPP, `"foo"`, nil, ErrConfiguration},
		{"unknown", ":^)", ``, nil, ErrUnsupportedProfile},
	}

	for _, tst := range tests {
		t.Run(tst.Name, func(t *testing.T) {
			assert := require.New(t)
			c, err := NewConfig(tst.Profile, json.RawMessage(tst.Options))
			assert.Equal(tst.ExpectedError, errors.Cause(err))
			assert.Equal(tst.Expected, c)
			if c != nil {
				assert.Equal(tst.Profile, c.Profile())
			}
		})
	}

	t.Run("unsupported profile message", func(t *testing.T) {
		assert := require.New(t)
		_, err := NewConfig(":^)", nil)
		assert.EqualError(err, "profile ':^)' is not supported")
	})
}

func TestCayenneLPPProfile(t *testing.T) {
	sensors := []Sensor{
		{ID: "t1", Title: "Temperatur"},
		{ID: "t2", Title: "Temperatur Boden"},
		{ID: "h", Title: "Luftfeuchte", Unit: "%"},
	}
	dev := Device{Sensors: sensors, Config: CayenneLPPConfig{Channels: []DecoderOption{
		{Decoder: "temperature", Channel: 3, SensorID: "t1"},
		{Decoder: "temperature", Channel: 5, SensorTitle: "temperatur boden"},
		{Decoder: "relative_humidity", Channel: 7, SensorUnit: "%"},
	}}}
	rxTime := time.Date(2021, 1, 1, 10, 0, 2, 0, time.UTC)

	t.Run("pre-decoded fields", func(t *testing.T) {
		assert := require.New(t)
		res, err := DecodeRequest(Request{
			PayloadFields: map[string]interface{}{
				"temperature_3": 27.2,
				"temperature_5": 25.5,
				"gps_1": map[string]interface{}{
					"latitude":  42.3519,
					"longitude": -87.9094,
					"altitude":  10.0,
				},
			},
			ReceivedAt: rxTime,
		}, dev)
		assert.NoError(err)
		assert.Len(res.Measurements, 3)

		height := 10.0
		loc := &Location{Lat: 42.3519, Lng: -87.9094, Height: &height}
		for i, expected := range []struct {
			ID    string
			Value float64
		}{{"t1", 27.2}, {"t2", 25.5}, {"h", 0}} {
			assert.Equal(expected.ID, res.Measurements[i].SensorID)
			assert.Equal(expected.Value, res.Measurements[i].Value)
			assert.Equal(loc, res.Measurements[i].Location)
			assert.True(rxTime.Equal(*res.Measurements[i].CreatedAt))
		}
	})

	t.Run("raw lpp payload", func(t *testing.T) {
		assert := require.New(t)
		res, err := DecodeBytes([]byte{0x03, 0x67, 0x01, 0x10, 0x05, 0x67, 0x00, 0xff, 0x07, 0x68, 0x61}, dev, rxTime)
		assert.NoError(err)
		assert.Equal(27.2, res.Measurements[0].Value)
		assert.Equal(25.5, res.Measurements[1].Value)
		assert.Equal(48.5, res.Measurements[2].Value)
		assert.Nil(res.Measurements[0].Location)
	})

	t.Run("unresolved sensor", func(t *testing.T) {
		assert := require.New(t)
		_, err := DecodeRequest(Request{PayloadFields: map[string]interface{}{"temperature_3": 1.0}}, Device{
			Sensors: sensors[:1],
			Config:  dev.Config,
		})
		assert.Equal(ErrSensorResolution, errors.Cause(err))
	})

	t.Run("missing selector", func(t *testing.T) {
		assert := require.New(t)
		_, err := DecodeRequest(Request{PayloadFields: map[string]interface{}{"temperature_3": 1.0}}, Device{
			Sensors: sensors,
			Config:  CayenneLPPConfig{Channels: []DecoderOption{{Decoder: "temperature", Channel: 3}}},
		})
		assert.Equal(ErrConfiguration, errors.Cause(err))
	})
}

func TestParseLPP(t *testing.T) {
	tests := []struct {
		Name          string
		Payload       []byte
		Expected      map[string]interface{}
		ExpectedError error
	}{
		{
			Name:    "temperatures",
			Payload: []byte{0x03, 0x67, 0x01, 0x10, 0x05, 0x67, 0x00, 0xff},
			Expected: map[string]interface{}{
				"temperature_3": 27.2,
				"temperature_5": 25.5,
			},
		},
		{
			Name:    "negative temperature",
			Payload: []byte{0x01, 0x67, 0xff, 0xd7},
			Expected: map[string]interface{}{
				"temperature_1": -4.1,
			},
		},
		{
			Name:    "accelerometer",
			Payload: []byte{0x06, 0x71, 0x04, 0xd2, 0xfb, 0x2e, 0x00, 0x00},
			Expected: map[string]interface{}{
				"accelerometer_6": map[string]interface{}{"x": 1.234, "y": -1.234, "z": 0.0},
			},
		},
		{
			Name:    "gps",
			Payload: []byte{0x01, 0x88, 0x06, 0x76, 0x5f, 0xf2, 0x96, 0x0a, 0x00, 0x03, 0xe8},
			Expected: map[string]interface{}{
				"gps_1": map[string]interface{}{"latitude": 42.3519, "longitude": -87.9094, "altitude": 10.0},
			},
		},
		{
			Name:          "unknown type",
			Payload:       []byte{0x01, 0xff, 0x00},
			ExpectedError: ErrUnsupportedDecoder,
		},
		{
			Name:          "truncated",
			Payload:       []byte{0x01, 0x67, 0x00},
			ExpectedError: ErrLengthMismatch,
		},
		{
			Name:          "truncated header",
			Payload:       []byte{0x01},
			ExpectedError: ErrLengthMismatch,
		},
	}

	for _, tst := range tests {
		t.Run(tst.Name, func(t *testing.T) {
			assert := require.New(t)
			out, err := ParseLPP(tst.Payload)
			assert.Equal(tst.ExpectedError, errors.Cause(err))
			if tst.ExpectedError == nil {
				assert.Equal(tst.Expected, out)
			}
		})
	}
}

func TestJSONProfile(t *testing.T) {
	dev := Device{Config: JSONConfig{}}
	rxTime := time.Date(2021, 1, 1, 10, 0, 2, 0, time.UTC)
	created := time.Date(2020, 5, 5, 5, 5, 5, 0, time.UTC)

	t.Run("field map", func(t *testing.T) {
		assert := require.New(t)
		res, err := DecodeRequest(Request{
			PayloadFields: map[string]interface{}{
				"b": 2.5,
				"a": "1",
				"c": []interface{}{3.0, "2020-05-05T05:05:05Z", []interface{}{7.5, 51.5}},
			},
			ReceivedAt: rxTime,
		}, dev)
		assert.NoError(err)
		assert.Len(res.Measurements, 3)

		assert.Equal("a", res.Measurements[0].SensorID)
		assert.Equal(1.0, res.Measurements[0].Value)
		assert.True(rxTime.Equal(*res.Measurements[0].CreatedAt))

		assert.Equal("b", res.Measurements[1].SensorID)
		assert.Equal(2.5, res.Measurements[1].Value)

		assert.Equal("c", res.Measurements[2].SensorID)
		assert.Equal(3.0, res.Measurements[2].Value)
		assert.True(created.Equal(*res.Measurements[2].CreatedAt))
		assert.Equal(&Location{Lat: 7.5, Lng: 51.5}, res.Measurements[2].Location)
	})

	t.Run("raw json array", func(t *testing.T) {
		assert := require.New(t)
		res, err := DecodeBytes([]byte(`[
			{"sensor_id": "a", "value": 1},
			{"sensor": "b", "value": "2.5", "createdAt": "2020-05-05T05:05:05Z", "location": {"lat": 1, "lng": 2}}
		]`), dev, rxTime)
		assert.NoError(err)
		assert.Len(res.Measurements, 2)
		assert.Equal("b", res.Measurements[1].SensorID)
		assert.Equal(2.5, res.Measurements[1].Value)
		assert.True(created.Equal(*res.Measurements[1].CreatedAt))
		assert.Equal(&Location{Lat: 1, Lng: 2}, res.Measurements[1].Location)
	})

	t.Run("malformed", func(t *testing.T) {
		assert := require.New(t)
		_, err := DecodeBytes([]byte(`"foo"`), dev, rxTime)
		assert.Equal(ErrMalformedPayload, errors.Cause(err))

		_, err = DecodeRequest(Request{PayloadFields: map[string]interface{}{"a": true, "b": map[string]interface{}{}}}, dev)
		assert.Equal(ErrMalformedPayload, errors.Cause(err))
	})
}
