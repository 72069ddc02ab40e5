package adb

import (
	"net"
	"strconv"
	"strings"
)

// ConnectionType indicates how a device is connected.
type ConnectionType string

const (
	USB     ConnectionType = "usb"
	WiFi    ConnectionType = "wifi"
	Unknown ConnectionType = "unknown"
)

// Device represents a connected ADB device.
type Device struct {
	Serial      string
	State       string // "device", "offline", "unauthorized", etc.
	ConnType    ConnectionType
	Model       string
	Product     string
	TransportID string
}

// IsOnline returns true if the device is in "device" state (ready).
func (d Device) IsOnline() bool {
	return d.State == "device"
}

// IsUnauthorized returns true if the device has not accepted this host's key.
func (d Device) IsUnauthorized() bool {
	return d.State == "unauthorized"
}

// NetworkAddress returns the host and port of a device attached over WiFi.
func (d Device) NetworkAddress() (string, int, bool) {
	return splitSerialAddress(d.Serial)
}

// String is used by the interactive device picker.
func (d Device) String() string {
	model := d.Model
	if model == "" {
		model = "unknown model"
	}
	return d.Serial + " (" + strings.ReplaceAll(model, "_", " ") + ")"
}

func connTypeOf(serial string) ConnectionType {
	if _, _, ok := splitSerialAddress(serial); ok {
		return WiFi
	}
	if strings.Contains(serial, ":") {
		return Unknown
	}
	return USB
}

// splitSerialAddress parses serials of the form "host:port" that adb uses
// for devices attached over TCP. mDNS serials ("adb-XXXX._adb-tls-connect._tcp")
// are not addresses.
func splitSerialAddress(serial string) (string, int, bool) {
	host, p, err := net.SplitHostPort(serial)
	if err != nil || host == "" {
		return "", 0, false
	}
	port, err := strconv.Atoi(p)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, false
	}
	return host, port, true
}
