package decoding

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBytesToInt(t *testing.T) {
	Convey("Given a set of tests", t, func() {
		tests := []struct {
			Bytes    []byte
			Expected uint32
		}{
			{Bytes: nil, Expected: 0},
			{Bytes: []byte{0x01}, Expected: 1},
			{Bytes: []byte{0x01, 0x02}, Expected: 0x0201},
			{Bytes: []byte{0x93, 0x32}, Expected: 12947},
			{Bytes: []byte{0x00, 0x00, 0x01}, Expected: 65536},
			{Bytes: []byte{0xff, 0xff, 0xff, 0xff}, Expected: 4294967295},
			{Bytes: []byte{0x0f, 0x8c, 0xee, 0x58}, Expected: 1492028431},
		}

		for i, test := range tests {
			Convey(fmt.Sprintf("Testing: %v == %d [%d]", test.Bytes, test.Expected, i), func() {
				So(BytesToInt(test.Bytes), ShouldEqual, test.Expected)
			})
		}
	})

	Convey("Given the 3 byte light encoding", t, func() {
		Convey("Then the first byte is the modulo and the others the multiplier", func() {
			So(modMultiplier([]byte{0x8c, 0xe5, 0x3b}), ShouldEqual, 15333*255+140)
			So(modMultiplier([]byte{0x27, 0x00, 0x32}), ShouldEqual, 12800*255+39)
			So(modMultiplier([]byte{0x05, 0x00, 0x00}), ShouldEqual, 5)
		})
	})
}
