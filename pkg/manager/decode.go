package manager

import (
	"encoding/binary"

	"github.com/LesCam/barstock-sub003/pkg/scale"
)

// decodeReading normalizes a raw weight notification payload according to
// the protocol variant. Payloads shorter than three bytes are ignored.
func decodeReading(typ scale.Type, data []byte) (grams float64, stable bool, ok bool) {
	switch typ {
	case scale.TypeSkale2:
		return decodeSkale2Weight(data)
	default:
		return decodeStandardWeight(data)
	}
}

// decodeStandardWeight parses a standard Weight Measurement payload: byte 0
// holds the flags (bit 0 set while the reading is still settling), bytes 1-2
// the weight as little-endian unsigned tenths of a gram
func decodeStandardWeight(data []byte) (grams float64, stable bool, ok bool) {
	if len(data) < 3 {
		return 0, false, false
	}

	raw := binary.LittleEndian.Uint16(data[1:3])
	return float64(raw) / 10., data[0]&0x01 == 0, true
}

// decodeSkale2Weight parses a Skale 2 weight payload: byte 0 is a status
// byte (zero means stable), bytes 1-2 the weight as little-endian unsigned
// tenths of a gram, floored at zero
func decodeSkale2Weight(data []byte) (grams float64, stable bool, ok bool) {
	if len(data) < 3 {
		return 0, false, false
	}

	raw := binary.LittleEndian.Uint16(data[1:3])
	grams = float64(raw) / 10.
	if grams < 0 {
		grams = 0
	}

	return grams, data[0] == 0x00, true
}
