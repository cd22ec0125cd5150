package domain

import "strings"

// UnknownDevice is recorded when the client sends no device identifier.
const UnknownDevice DeviceFingerprint = "unknown"

// DeviceFingerprint identifies a client device, typically its User-Agent.
//
// Two fingerprints are equal only when their normalised forms are identical.
// The same rule applies to the trust check at login and to the append after
// a successful verification.
type DeviceFingerprint string

// NewDeviceFingerprint normalises a raw header value.
func NewDeviceFingerprint(raw string) DeviceFingerprint {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UnknownDevice
	}
	return DeviceFingerprint(trimmed)
}

// Matches compares the fingerprint against a stored entry.
func (d DeviceFingerprint) Matches(stored string) bool {
	return d == NewDeviceFingerprint(stored)
}

func (d DeviceFingerprint) String() string {
	return string(d)
}
