package decoding

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDecodeBuffer(t *testing.T) {
	plan := func(strict bool) Plan {
		return Plan{
			Strict: strict,
			Elements: []PlanElement{
				{Bytes: 1, SensorID: "a", Value: uintValue},
				{Bytes: 2, SensorID: "b", Value: uintValue},
				{Bytes: 1, SensorID: "c", Value: uintValue},
			},
		}
	}

	tests := []struct {
		Name             string
		Plan             Plan
		Buffer           []byte
		Expected         []Measurement
		ExpectedWarnings []string
		ExpectedError    error
	}{
		{
			Name:   "exact length",
			Plan:   plan(true),
			Buffer: []byte{0x01, 0x02, 0x01, 0x03},
			Expected: []Measurement{
				{SensorID: "a", Value: 1, position: 0},
				{SensorID: "b", Value: 258, position: 1},
				{SensorID: "c", Value: 3, position: 2},
			},
		},
		{
			Name:          "strict too short",
			Plan:          plan(true),
			Buffer:        []byte{0x01, 0x02},
			ExpectedError: ErrLengthMismatch,
		},
		{
			Name:          "strict too long",
			Plan:          plan(true),
			Buffer:        []byte{0x01, 0x02, 0x03, 0x04, 0x05},
			ExpectedError: ErrLengthMismatch,
		},
		{
			Name:   "lenient too short",
			Plan:   plan(false),
			Buffer: []byte{0x01, 0x02},
			Expected: []Measurement{
				{SensorID: "a", Value: 1, position: 0},
			},
			ExpectedWarnings: []string{"incorrect amount of bytes, should be 4"},
		},
		{
			Name:   "lenient too long",
			Plan:   plan(false),
			Buffer: []byte{0x01, 0x02, 0x00, 0x03, 0x04},
			Expected: []Measurement{
				{SensorID: "a", Value: 1, position: 0},
				{SensorID: "b", Value: 2, position: 1},
				{SensorID: "c", Value: 3, position: 2},
			},
			ExpectedWarnings: []string{"incorrect amount of bytes, should be 4"},
		},
		{
			Name: "sentinel without hook",
			Plan: Plan{Strict: true, Elements: []PlanElement{
				{Bytes: 1, Sentinel: SentinelTimestamp, Value: uintValue},
				{Bytes: 1, SensorID: "a", Value: uintValue},
			}},
			Buffer: []byte{0x01, 0x02},
			Expected: []Measurement{
				{SensorID: "a", Value: 2, position: 1},
			},
		},
	}

	for _, tst := range tests {
		t.Run(tst.Name, func(t *testing.T) {
			assert := require.New(t)
			ms, warnings, err := DecodeBuffer(tst.Buffer, tst.Plan)
			if tst.ExpectedError != nil {
				assert.Equal(tst.ExpectedError, errors.Cause(err))
				return
			}
			assert.NoError(err)
			assert.Equal(tst.Expected, ms)
			assert.Equal(tst.ExpectedWarnings, warnings)
		})
	}

	t.Run("length mismatch names the expected length", func(t *testing.T) {
		assert := require.New(t)
		_, _, err := DecodeBuffer([]byte{0x01}, plan(true))
		assert.EqualError(err, "incorrect amount of bytes, should be 4")
	})
}

func TestPostHooks(t *testing.T) {
	ts := time.Date(2017, 4, 12, 20, 20, 31, 0, time.UTC)
	other := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	ms := []Measurement{
		{SensorID: "a", Value: 1, position: 0},
		{Value: float64(ts.Unix()), sentinel: SentinelTimestamp, position: 1},
		{SensorID: "b", Value: 2, position: 2},
		{Value: float64(other.Unix()), sentinel: SentinelTimestamp, position: 3},
		{SensorID: "c", Value: 3, position: 4},
	}

	t.Run("timestamp hook applies forward only", func(t *testing.T) {
		assert := require.New(t)
		out := timestampHook(3, timestampHook(1, ms))
		assert.Len(out, 3)
		assert.Nil(out[0].CreatedAt)
		assert.True(ts.Equal(*out[1].CreatedAt))
		assert.True(other.Equal(*out[2].CreatedAt))

		// input is untouched
		assert.Len(ms, 5)
		for _, m := range ms {
			assert.Nil(m.CreatedAt)
		}
	})

	t.Run("hook without its sentinel", func(t *testing.T) {
		assert := require.New(t)
		out := locationHook(1, ms)
		assert.Equal(ms, out)
	})

	t.Run("location hook swaps wire order", func(t *testing.T) {
		assert := require.New(t)
		in := []Measurement{
			{Value: 7.6214, Vector: []float64{7.6214, 51.9606}, sentinel: SentinelLocation, position: 0},
			{SensorID: "a", Value: 1, position: 1},
		}
		out := locationHook(0, in)
		assert.Equal([]Measurement{
			{SensorID: "a", Value: 1, position: 1, Location: &Location{Lat: 51.9606, Lng: 7.6214}},
		}, out)
	})
}
