package models

import (
	"time"

	"github.com/brocaar/lorawan"

	"github.com/sensebox/ttn-osem-integration/internal/decoding"
)

// Source defines the network backend (and message format) an uplink was
// received from.
type Source string

// Uplink sources.
const (
	SourceTTNv2      Source = "ttn_v2"
	SourceTTNv3      Source = "ttn_v3"
	SourceChirpStack Source = "chirpstack"
)

// Uplink contains an uplink message of a device, independent of the network
// backend it was received from.
type Uplink struct {
	Source Source
	AppID  string
	DevID  string
	DevEUI lorawan.EUI64

	// FPort is nil when the uplink did not specify a port.
	FPort *int

	PayloadRaw    []byte
	PayloadFields map[string]interface{}

	// NetworkTime is the time the network backend reported for the uplink.
	NetworkTime *time.Time
	RXInfo      []RXInfo

	// ReceivedAt holds the time the uplink was received by this service.
	ReceivedAt time.Time
}

// RXInfo defines the RX related metadata (for each receiving gateway).
type RXInfo struct {
	GatewayID string
	Time      *time.Time
	RSSI      int
	LoRaSNR   float64
}

// GatewayTime returns the earliest time reported by the receiving gateways.
func (u Uplink) GatewayTime() *time.Time {
	var out *time.Time
	for i := range u.RXInfo {
		t := u.RXInfo[i].Time
		if t == nil || t.IsZero() {
			continue
		}
		if out == nil || t.Before(*out) {
			out = t
		}
	}
	return out
}

// Validate returns an error when the uplink can not be processed.
func (u Uplink) Validate() error {
	if u.AppID == "" || u.DevID == "" || (len(u.PayloadRaw) == 0 && len(u.PayloadFields) == 0) {
		return ErrMalformedUplink
	}
	return nil
}

// DecodingRequest returns the decoding request for the uplink.
func (u Uplink) DecodingRequest() decoding.Request {
	return decoding.Request{
		PayloadRaw:    u.PayloadRaw,
		PayloadFields: u.PayloadFields,
		GatewayTime:   u.GatewayTime(),
		NetworkTime:   u.NetworkTime,
		ReceivedAt:    u.ReceivedAt,
	}
}
