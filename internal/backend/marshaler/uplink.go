package marshaler

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/brocaar/chirpstack-api/go/v3/as/integration"
	"github.com/brocaar/lorawan"
	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sensebox/ttn-osem-integration/internal/gps"
	"github.com/sensebox/ttn-osem-integration/internal/models"
)

type ttnV2Uplink struct {
	AppID          string                 `json:"app_id"`
	DevID          string                 `json:"dev_id"`
	HardwareSerial string                 `json:"hardware_serial"`
	Port           *int                   `json:"port"`
	PayloadRaw     []byte                 `json:"payload_raw"`
	PayloadFields  map[string]interface{} `json:"payload_fields"`
	Metadata       struct {
		Time     jsonTime `json:"time"`
		Gateways []struct {
			GtwID string   `json:"gtw_id"`
			Time  jsonTime `json:"time"`
			RSSI  int      `json:"rssi"`
			SNR   float64  `json:"snr"`
		} `json:"gateways"`
	} `json:"metadata"`
}

type ttnV3Uplink struct {
	EndDeviceIDs struct {
		DeviceID       string `json:"device_id"`
		DevEUI         string `json:"dev_eui"`
		ApplicationIDs struct {
			ApplicationID string `json:"application_id"`
		} `json:"application_ids"`
	} `json:"end_device_ids"`
	ReceivedAt    jsonTime `json:"received_at"`
	UplinkMessage struct {
		FPort          *int                   `json:"f_port"`
		FRMPayload     []byte                 `json:"frm_payload"`
		DecodedPayload map[string]interface{} `json:"decoded_payload"`
		ReceivedAt     jsonTime               `json:"received_at"`
		RXMetadata     []struct {
			GatewayIDs struct {
				GatewayID string `json:"gateway_id"`
			} `json:"gateway_ids"`
			Time jsonTime `json:"time"`
			RSSI int      `json:"rssi"`
			SNR  float64  `json:"snr"`
		} `json:"rx_metadata"`
	} `json:"uplink_message"`
}

// UnmarshalUplink unmarshals an uplink message, detecting the TTN v2, TTN v3
// and ChirpStack (JSON or Protobuf) formats.
func UnmarshalUplink(b []byte) (models.Uplink, Type, error) {
	var t Type
	s := string(b)

	switch {
	case strings.Contains(s, `"end_device_ids"`):
		t = TTNv3JSON
	case strings.Contains(s, `"dev_id"`):
		t = TTNv2JSON
	case strings.Contains(s, `"devEUI"`) || strings.Contains(s, `"applicationID"`):
		t = JSON
	default:
		t = Protobuf
	}

	var u models.Uplink
	var err error

	switch t {
	case TTNv2JSON:
		u, err = UnmarshalTTNv2(b)
	case TTNv3JSON:
		u, err = UnmarshalTTNv3(b)
	case JSON:
		var pl integration.UplinkEvent
		m := jsonpb.Unmarshaler{
			AllowUnknownFields: true,
		}
		if err = m.Unmarshal(bytes.NewReader(b), &pl); err == nil {
			u, err = uplinkFromChirpStack(&pl)
		}
	case Protobuf:
		var pl integration.UplinkEvent
		if err = proto.Unmarshal(b, &pl); err == nil {
			u, err = uplinkFromChirpStack(&pl)
		}
	}

	return u, t, err
}

// UnmarshalTTNv2 unmarshals an uplink of the TTN v2 HTTP or MQTT integration.
func UnmarshalTTNv2(b []byte) (models.Uplink, error) {
	var pl ttnV2Uplink
	if err := json.Unmarshal(b, &pl); err != nil {
		return models.Uplink{}, errors.Wrap(err, "unmarshal ttn v2 uplink error")
	}

	u := models.Uplink{
		Source:        models.SourceTTNv2,
		AppID:         pl.AppID,
		DevID:         pl.DevID,
		FPort:         pl.Port,
		PayloadRaw:    pl.PayloadRaw,
		PayloadFields: pl.PayloadFields,
		NetworkTime:   pl.Metadata.Time.ptr(),
		ReceivedAt:    time.Now().UTC(),
	}
	u.DevEUI = parseDevEUI("hardware_serial", pl.HardwareSerial)

	for _, gw := range pl.Metadata.Gateways {
		u.RXInfo = append(u.RXInfo, models.RXInfo{
			GatewayID: gw.GtwID,
			Time:      gw.Time.ptr(),
			RSSI:      gw.RSSI,
			LoRaSNR:   gw.SNR,
		})
	}

	return u, nil
}

// UnmarshalTTNv3 unmarshals an uplink of the TTN v3 webhook or MQTT integration.
func UnmarshalTTNv3(b []byte) (models.Uplink, error) {
	var pl ttnV3Uplink
	if err := json.Unmarshal(b, &pl); err != nil {
		return models.Uplink{}, errors.Wrap(err, "unmarshal ttn v3 uplink error")
	}

	u := models.Uplink{
		Source:        models.SourceTTNv3,
		AppID:         pl.EndDeviceIDs.ApplicationIDs.ApplicationID,
		DevID:         pl.EndDeviceIDs.DeviceID,
		FPort:         pl.UplinkMessage.FPort,
		PayloadRaw:    pl.UplinkMessage.FRMPayload,
		PayloadFields: pl.UplinkMessage.DecodedPayload,
		NetworkTime:   pl.UplinkMessage.ReceivedAt.ptr(),
		ReceivedAt:    time.Now().UTC(),
	}
	if u.NetworkTime == nil {
		u.NetworkTime = pl.ReceivedAt.ptr()
	}
	u.DevEUI = parseDevEUI("dev_eui", pl.EndDeviceIDs.DevEUI)

	for _, md := range pl.UplinkMessage.RXMetadata {
		u.RXInfo = append(u.RXInfo, models.RXInfo{
			GatewayID: md.GatewayIDs.GatewayID,
			Time:      md.Time.ptr(),
			RSSI:      md.RSSI,
			LoRaSNR:   md.SNR,
		})
	}

	return u, nil
}

// parseDevEUI returns the DevEUI encoded in s. A missing or malformed value
// results in a zero DevEUI, the DevEUI is informational only.
func parseDevEUI(field, s string) lorawan.EUI64 {
	var eui lorawan.EUI64
	if s == "" {
		return eui
	}
	if err := eui.UnmarshalText([]byte(s)); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"field": field,
			"value": s,
		}).Debug("marshaler: ignoring malformed deveui")
		return lorawan.EUI64{}
	}
	return eui
}

func uplinkFromChirpStack(pl *integration.UplinkEvent) (models.Uplink, error) {
	u := models.Uplink{
		Source:     models.SourceChirpStack,
		AppID:      strconv.FormatUint(pl.ApplicationId, 10),
		DevID:      pl.DeviceName,
		PayloadRaw: pl.Data,
		ReceivedAt: time.Now().UTC(),
	}
	copy(u.DevEUI[:], pl.DevEui)

	if pl.FPort != 0 {
		port := int(pl.FPort)
		u.FPort = &port
	}

	if pl.ObjectJson != "" {
		if err := json.Unmarshal([]byte(pl.ObjectJson), &u.PayloadFields); err != nil {
			return u, errors.Wrap(err, "unmarshal object json error")
		}
	}

	for _, rx := range pl.RxInfo {
		if rx == nil {
			continue
		}

		info := models.RXInfo{
			GatewayID: lorawanEUI(rx.GatewayId),
			RSSI:      int(rx.Rssi),
			LoRaSNR:   rx.LoraSnr,
		}

		if rx.Time != nil {
			ts, err := ptypes.Timestamp(rx.Time)
			if err != nil {
				return u, errors.Wrap(err, "get timestamp error")
			}
			ts = ts.UTC()
			info.Time = &ts
		} else if rx.TimeSinceGpsEpoch != nil {
			d, err := ptypes.Duration(rx.TimeSinceGpsEpoch)
			if err != nil {
				return u, errors.Wrap(err, "get time since gps epoch error")
			}
			ts := gps.Time(d).UTC()
			info.Time = &ts
		}

		u.RXInfo = append(u.RXInfo, info)
	}

	return u, nil
}

func lorawanEUI(b []byte) string {
	var eui lorawan.EUI64
	copy(eui[:], b)
	return eui.String()
}
