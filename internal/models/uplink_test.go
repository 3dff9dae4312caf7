package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUplink(t *testing.T) {
	t1 := time.Date(2021, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2021, 1, 1, 10, 0, 1, 0, time.UTC)

	t.Run("gateway time", func(t *testing.T) {
		assert := require.New(t)
		u := Uplink{RXInfo: []RXInfo{{GatewayID: "a"}, {GatewayID: "b", Time: &t2}, {GatewayID: "c", Time: &t1}}}
		assert.Equal(&t1, u.GatewayTime())
		assert.Nil(Uplink{}.GatewayTime())
	})

	t.Run("validate", func(t *testing.T) {
		assert := require.New(t)
		assert.NoError(Uplink{AppID: "a", DevID: "d", PayloadRaw: []byte{1}}.Validate())
		assert.NoError(Uplink{AppID: "a", DevID: "d", PayloadFields: map[string]interface{}{"a": 1}}.Validate())
		assert.Equal(ErrMalformedUplink, Uplink{AppID: "a", PayloadRaw: []byte{1}}.Validate())
		assert.Equal(ErrMalformedUplink, Uplink{AppID: "a", DevID: "d"}.Validate())
	})

	t.Run("decoding request", func(t *testing.T) {
		assert := require.New(t)
		u := Uplink{PayloadRaw: []byte{1}, NetworkTime: &t2, RXInfo: []RXInfo{{Time: &t1}}, ReceivedAt: t2}
		req := u.DecodingRequest()
		assert.Equal(&t1, req.GatewayTime)
		assert.Equal(&t2, req.NetworkTime)
		assert.Equal([]byte{1}, req.PayloadRaw)
	})
}
