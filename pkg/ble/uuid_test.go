package ble

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalUUID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"16-bit short form", "2a9d", "00002a9d-0000-1000-8000-00805f9b34fb"},
		{"16-bit short form uppercase", "181D", "0000181d-0000-1000-8000-00805f9b34fb"},
		{"32-bit form", "0000ef81", "0000ef81-0000-1000-8000-00805f9b34fb"},
		{"full dashed form is unchanged", "0000180f-0000-1000-8000-00805f9b34fb", "0000180f-0000-1000-8000-00805f9b34fb"},
		{"full dashed uppercase", "0000EF80-0000-1000-8000-00805F9B34FB", "0000ef80-0000-1000-8000-00805f9b34fb"},
		{"full dashless form", "a75cc7fcc956488fac2a2dbc08b63a04", "a75cc7fc-c956-488f-ac2a-2dbc08b63a04"},
		{"surrounding whitespace", " 2a19 ", "00002a19-0000-1000-8000-00805f9b34fb"},
		{"unknown shape passes through lowered", "not-a-uuid", "not-a-uuid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalUUID(tt.in))
		})
	}
}

func TestCanonicalUUIDIsIdempotent(t *testing.T) {
	for _, in := range []string{"2a9d", "0000ef81-0000-1000-8000-00805f9b34fb", "ffe0"} {
		once := CanonicalUUID(in)
		assert.Equal(t, once, CanonicalUUID(once))
	}
}
