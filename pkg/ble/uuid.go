package ble

import "strings"

// bluetoothBaseUUID is the suffix shared by all SIG-assigned short UUIDs
const bluetoothBaseUUID = "00001000800000805f9b34fb"

// CanonicalUUID normalizes a UUID of any common shape (16-bit short form,
// 32-bit form, dashed or dashless 128-bit form) to the full lowercase dashed
// representation, so that values reported by different BLE stacks compare
// equal to the protocol constants
func CanonicalUUID(u string) string {

	s := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(u), "-", ""))
	switch len(s) {
	case 4:
		s = "0000" + s + bluetoothBaseUUID
	case 8:
		s = s + bluetoothBaseUUID
	}
	if len(s) != 32 {
		return strings.ToLower(strings.TrimSpace(u))
	}

	return s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32]
}
