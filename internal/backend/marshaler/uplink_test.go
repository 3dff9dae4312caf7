package marshaler

import (
	"testing"
	"time"

	"github.com/brocaar/chirpstack-api/go/v3/as/integration"
	"github.com/brocaar/chirpstack-api/go/v3/gw"
	"github.com/brocaar/lorawan"
	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/sensebox/ttn-osem-integration/internal/gps"
	"github.com/sensebox/ttn-osem-integration/internal/models"
)

func TestUnmarshalTTNv2(t *testing.T) {
	assert := require.New(t)

	b := []byte(`{
		"app_id": "my-app",
		"dev_id": "my-dev",
		"hardware_serial": "0102030405060708",
		"port": 1,
		"payload_raw": "kzIrIYzlOycAMgEA",
		"metadata": {
			"time": "2017-04-12T20:20:31.5Z",
			"gateways": [
				{"gtw_id": "eui-a", "time": "", "rssi": -80, "snr": 7.5},
				{"gtw_id": "eui-b", "time": "2017-04-12T20:20:31Z", "rssi": -90, "snr": 2}
			]
		}
	}`)

	u, typ, err := UnmarshalUplink(b)
	assert.NoError(err)
	assert.Equal(TTNv2JSON, typ)
	assert.Equal(models.SourceTTNv2, u.Source)
	assert.Equal("my-app", u.AppID)
	assert.Equal("my-dev", u.DevID)
	assert.Equal(lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8}, u.DevEUI)
	assert.Equal(1, *u.FPort)
	assert.Equal([]byte{0x93, 0x32, 0x2b, 0x21, 0x8c, 0xe5, 0x3b, 0x27, 0x00, 0x32, 0x01, 0x00}, u.PayloadRaw)
	assert.True(time.Date(2017, 4, 12, 20, 20, 31, 500000000, time.UTC).Equal(*u.NetworkTime))
	assert.Len(u.RXInfo, 2)
	assert.Nil(u.RXInfo[0].Time)
	assert.Equal(-90, u.RXInfo[1].RSSI)
	assert.True(time.Date(2017, 4, 12, 20, 20, 31, 0, time.UTC).Equal(*u.GatewayTime()))
}

func TestUnmarshalTTNv3(t *testing.T) {
	assert := require.New(t)

	b := []byte(`{
		"end_device_ids": {
			"device_id": "my-dev",
			"dev_eui": "0102030405060708",
			"application_ids": {"application_id": "my-app"}
		},
		"received_at": "2021-03-01T10:00:02Z",
		"uplink_message": {
			"f_port": 2,
			"frm_payload": "AQI=",
			"decoded_payload": {"temperature": 21.5},
			"received_at": "2021-03-01T10:00:01Z",
			"rx_metadata": [
				{"gateway_ids": {"gateway_id": "gw-1"}, "time": "2021-03-01T10:00:00Z", "rssi": -70, "snr": 9}
			]
		}
	}`)

	u, typ, err := UnmarshalUplink(b)
	assert.NoError(err)
	assert.Equal(TTNv3JSON, typ)
	assert.Equal(models.SourceTTNv3, u.Source)
	assert.Equal("my-app", u.AppID)
	assert.Equal("my-dev", u.DevID)
	assert.Equal(2, *u.FPort)
	assert.Equal([]byte{1, 2}, u.PayloadRaw)
	assert.Equal(21.5, u.PayloadFields["temperature"])
	assert.True(time.Date(2021, 3, 1, 10, 0, 1, 0, time.UTC).Equal(*u.NetworkTime))
	assert.Equal("gw-1", u.RXInfo[0].GatewayID)
	assert.True(time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC).Equal(*u.GatewayTime()))

	t.Run("invalid payload", func(t *testing.T) {
		assert := require.New(t)
		_, _, err := UnmarshalUplink([]byte(`{"end_device_ids": {}, "uplink_message": {"frm_payload": "%%%"}}`))
		assert.Error(err)
	})
}

func TestUnmarshalChirpStack(t *testing.T) {
	rxTime := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	rxTimeProto, err := ptypes.TimestampProto(rxTime)
	require.NoError(t, err)

	event := integration.UplinkEvent{
		ApplicationId: 12,
		DeviceName:    "my-dev",
		DevEui:        []byte{1, 2, 3, 4, 5, 6, 7, 8},
		FPort:         3,
		Data:          []byte{1, 2, 3},
		ObjectJson:    `{"temperature": 21.5}`,
		RxInfo: []*gw.UplinkRXInfo{
			{GatewayId: []byte{8, 7, 6, 5, 4, 3, 2, 1}, Time: rxTimeProto, Rssi: -60, LoraSnr: 5.5},
			{GatewayId: []byte{1, 1, 1, 1, 1, 1, 1, 1}, TimeSinceGpsEpoch: ptypes.DurationProto(gps.SinceEpoch(rxTime.Add(time.Second)))},
		},
	}

	assertUplink := func(assert *require.Assertions, u models.Uplink) {
		assert.Equal(models.SourceChirpStack, u.Source)
		assert.Equal("12", u.AppID)
		assert.Equal("my-dev", u.DevID)
		assert.Equal(lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8}, u.DevEUI)
		assert.Equal(3, *u.FPort)
		assert.Equal([]byte{1, 2, 3}, u.PayloadRaw)
		assert.Equal(21.5, u.PayloadFields["temperature"])
		assert.Len(u.RXInfo, 2)
		assert.Equal("0807060504030201", u.RXInfo[0].GatewayID)
		assert.Equal(-60, u.RXInfo[0].RSSI)
		assert.True(rxTime.Equal(*u.RXInfo[0].Time))
		assert.True(rxTime.Add(time.Second).Equal(*u.RXInfo[1].Time))
	}

	t.Run("JSON", func(t *testing.T) {
		assert := require.New(t)

		m := jsonpb.Marshaler{}
		str, err := m.MarshalToString(&event)
		assert.NoError(err)

		u, typ, err := UnmarshalUplink([]byte(str))
		assert.NoError(err)
		assert.Equal(JSON, typ)
		assertUplink(assert, u)
	})

	t.Run("Protobuf", func(t *testing.T) {
		assert := require.New(t)

		b, err := proto.Marshal(&event)
		assert.NoError(err)

		u, typ, err := UnmarshalUplink(b)
		assert.NoError(err)
		assert.Equal(Protobuf, typ)
		assertUplink(assert, u)
	})

	t.Run("no port", func(t *testing.T) {
		assert := require.New(t)

		b, err := proto.Marshal(&integration.UplinkEvent{ApplicationId: 1, DeviceName: "d"})
		assert.NoError(err)

		u, _, err := UnmarshalUplink(b)
		assert.NoError(err)
		assert.Nil(u.FPort)
		assert.Nil(u.PayloadFields)
	})
}

func TestMalformedDevEUI(t *testing.T) {
	assert := require.New(t)

	hook := test.NewGlobal()
	defer hook.Reset()
	level := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	defer log.SetLevel(level)

	u, err := UnmarshalTTNv2([]byte(`{"app_id": "my-app", "dev_id": "my-dev", "hardware_serial": "not-an-eui", "payload_raw": "AQI="}`))
	assert.NoError(err)
	assert.Equal(lorawan.EUI64{}, u.DevEUI)

	entry := hook.LastEntry()
	assert.NotNil(entry)
	assert.Equal(log.DebugLevel, entry.Level)
	assert.Equal("hardware_serial", entry.Data["field"])
	assert.Equal("not-an-eui", entry.Data["value"])

	hook.Reset()
	u, err = UnmarshalTTNv3([]byte(`{"end_device_ids": {"device_id": "my-dev", "application_ids": {"application_id": "my-app"}}, "uplink_message": {"frm_payload": "AQI="}}`))
	assert.NoError(err)
	assert.Equal(lorawan.EUI64{}, u.DevEUI)
	assert.Nil(hook.LastEntry())
}
