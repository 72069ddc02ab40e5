// Package bridge describes the minimal contract the switch core needs from
// a device attached through the debug bridge, and the error taxonomy shared
// by every layer above it.
package bridge

import "context"

// Transport is how the device's bridge daemon is currently reachable.
type Transport int

const (
	USB Transport = iota
	TCP
)

func (t Transport) String() string {
	switch t {
	case USB:
		return "usb"
	case TCP:
		return "tcp"
	default:
		return "unknown"
	}
}

// Handle identifies one attached device. Implementations block on the
// underlying bridge channel and are not required to be safe for concurrent
// calls; callers issue at most one call at a time. Handles never retry.
type Handle interface {
	// Serial returns the device serial number. It is stable for the
	// lifetime of the handle.
	Serial() string

	// SendCommand runs cmd against the device and returns its raw output.
	// It fails with DeviceUnavailable if the device goes away mid-call and
	// BridgeError for other transport failures.
	SendCommand(ctx context.Context, cmd string) (string, error)

	// TransportState reports whether the bridge daemon is on USB or TCP.
	TransportState(ctx context.Context) (Transport, error)
}

// AddressReporter is implemented by handles that can ask the device for its
// own network address while it is still attached over USB.
type AddressReporter interface {
	DeviceAddress(ctx context.Context) (string, error)
}

// PortReporter is implemented by handles that can tell which TCP port the
// bridge daemon listens on. Zero means it is not listening on TCP.
type PortReporter interface {
	TCPPort(ctx context.Context) (int, error)
}
