package decoding

import (
	"bytes"
	"encoding/json"
)

// Profile names as stored in the device configuration.
const (
	ProfileDebug             = "debug"
	ProfileCustom            = "custom"
	ProfileSenseBoxHome      = "sensebox/home"
	ProfileLoRaSerialization = "lora-serialization"
	ProfileCayenneLPP        = "cayenne-lpp"
	ProfileJSON              = "json"
)

// Config is the decoding configuration of a device. The set of
// implementations is closed: ByteMaskConfig, SenseBoxHomeConfig,
// LoRaSerializationConfig, CayenneLPPConfig and JSONConfig.
type Config interface {
	// Profile returns the profile name.
	Profile() string

	isConfig()
}

// ByteMaskConfig configures the debug and custom profiles.
type ByteMaskConfig struct {
	Name     string
	ByteMask []int
}

// SenseBoxHomeConfig configures the sensebox/home profile.
type SenseBoxHomeConfig struct{}

// LoRaSerializationConfig configures the lora-serialization profile.
type LoRaSerializationConfig struct {
	Decoders []DecoderOption
}

// CayenneLPPConfig configures the cayenne-lpp profile.
type CayenneLPPConfig struct {
	Channels []DecoderOption
}

// JSONConfig configures the json profile.
type JSONConfig struct{}

// DecoderOption binds a decoder (and for cayenne-lpp a channel) to a sensor.
type DecoderOption struct {
	Decoder     string `json:"decoder"`
	Channel     int    `json:"channel,omitempty"`
	SensorID    string `json:"sensor_id,omitempty"`
	SensorTitle string `json:"sensor_title,omitempty"`
	SensorType  string `json:"sensor_type,omitempty"`
	SensorUnit  string `json:"sensor_unit,omitempty"`
}

// criteria returns the sensor criteria of the option in order of priority.
func (o DecoderOption) criteria() []Criterion {
	var out []Criterion
	if o.SensorID != "" {
		out = append(out, Criterion{Property: ByID, Values: []string{o.SensorID}})
	}
	if o.SensorTitle != "" {
		out = append(out, Criterion{Property: ByTitle, Values: []string{o.SensorTitle}})
	}
	if o.SensorType != "" {
		out = append(out, Criterion{Property: ByType, Values: []string{o.SensorType}})
	}
	if o.SensorUnit != "" {
		out = append(out, Criterion{Property: ByUnit, Values: []string{o.SensorUnit}})
	}
	return out
}

// Profile returns the profile name.
func (c ByteMaskConfig) Profile() string { return c.Name }

// Profile returns the profile name.
func (SenseBoxHomeConfig) Profile() string { return ProfileSenseBoxHome }

// Profile returns the profile name.
func (LoRaSerializationConfig) Profile() string { return ProfileLoRaSerialization }

// Profile returns the profile name.
func (CayenneLPPConfig) Profile() string { return ProfileCayenneLPP }

// Profile returns the profile name.
func (JSONConfig) Profile() string { return ProfileJSON }

func (ByteMaskConfig) isConfig()          {}
func (SenseBoxHomeConfig) isConfig()      {}
func (LoRaSerializationConfig) isConfig() {}
func (CayenneLPPConfig) isConfig()        {}
func (JSONConfig) isConfig()              {}

// NewConfig returns the Config for the given profile name and (JSON encoded)
// decode options.
func NewConfig(profile string, options json.RawMessage) (Config, error) {
	switch profile {
	case ProfileDebug, ProfileCustom:
		var opts struct {
			ByteMask []int `json:"byteMask"`
		}
		if err := unmarshalOptions(options, &opts); err != nil {
			return nil, newError(ErrConfiguration, "profile '%s' requires a valid byteMask", profile)
		}
		return ByteMaskConfig{Name: profile, ByteMask: opts.ByteMask}, nil
	case ProfileSenseBoxHome:
		return SenseBoxHomeConfig{}, nil
	case ProfileLoRaSerialization:
		opts, err := unmarshalDecoderOptions(options)
		if err != nil {
			return nil, newError(ErrConfiguration, "profile '%s' requires valid decodeOptions", profile)
		}
		return LoRaSerializationConfig{Decoders: opts}, nil
	case ProfileCayenneLPP:
		opts, err := unmarshalDecoderOptions(options)
		if err != nil {
			return nil, newError(ErrConfiguration, "profile '%s' requires valid decodeOptions", profile)
		}
		return CayenneLPPConfig{Channels: opts}, nil
	case ProfileJSON:
		return JSONConfig{}, nil
	default:
		return nil, newError(ErrUnsupportedProfile, "profile '%s' is not supported", profile)
	}
}

func unmarshalOptions(options json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(options)) == 0 {
		return nil
	}
	return json.Unmarshal(options, v)
}

// unmarshalDecoderOptions accepts a list of options or an object holding the
// list under the byteMask key (older configurations).
func unmarshalDecoderOptions(options json.RawMessage) ([]DecoderOption, error) {
	options = bytes.TrimSpace(options)
	if len(options) == 0 || bytes.Equal(options, []byte("null")) {
		return nil, nil
	}

	var out []DecoderOption
	if options[0] == '{' {
		var wrapped struct {
			ByteMask []DecoderOption `json:"byteMask"`
		}
		if err := json.Unmarshal(options, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.ByteMask, nil
	}

	if err := json.Unmarshal(options, &out); err != nil {
		return nil, err
	}
	return out, nil
}
