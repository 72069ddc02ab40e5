package adb

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.chromium.org/luci/common/logging"

	"github.com/FluidXR/untether/internal/bridge"
)

var wlanAddrRegex = regexp.MustCompile(`inet (\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})/`)

// Handle is a bridge.Handle backed by `adb -s <serial>` invocations.
type Handle struct {
	client *Client
	serial string
}

var (
	_ bridge.Handle          = (*Handle)(nil)
	_ bridge.AddressReporter = (*Handle)(nil)
	_ bridge.PortReporter    = (*Handle)(nil)
)

// Serial returns the device serial.
func (h *Handle) Serial() string {
	return h.serial
}

// SendCommand runs `adb -s <serial> <cmd>`. cmd is split on whitespace.
// The output is returned even when the command fails.
func (h *Handle) SendCommand(ctx context.Context, cmd string) (string, error) {
	args := append([]string{"-s", h.serial}, strings.Fields(cmd)...)
	out, err := h.client.exec(ctx, args...)
	if err != nil {
		return out, classify(ctx, cmd, out, err)
	}
	return out, nil
}

// TransportState reports TCP for devices already attached by address, and
// otherwise asks adbd whether it has been told to listen on a TCP port.
func (h *Handle) TransportState(ctx context.Context) (bridge.Transport, error) {
	port, err := h.TCPPort(ctx)
	if err != nil {
		return bridge.USB, err
	}
	if port > 0 {
		return bridge.TCP, nil
	}
	return bridge.USB, nil
}

// TCPPort returns the port adbd listens on, or 0 if it is USB only.
func (h *Handle) TCPPort(ctx context.Context) (int, error) {
	if _, port, ok := splitSerialAddress(h.serial); ok {
		return port, nil
	}
	out, err := h.SendCommand(ctx, "shell getprop service.adb.tcp.port")
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil || port <= 0 {
		return 0, nil
	}
	logging.Debugf(ctx, "%s: adbd already listening on tcp port %d", h.serial, port)
	return port, nil
}

// DeviceAddress returns the IPv4 address of the device's wlan0 interface.
func (h *Handle) DeviceAddress(ctx context.Context) (string, error) {
	if host, _, ok := splitSerialAddress(h.serial); ok {
		return host, nil
	}
	out, err := h.SendCommand(ctx, "shell ip -f inet addr show wlan0")
	if err != nil {
		return "", err
	}
	m := wlanAddrRegex.FindStringSubmatch(out)
	if m == nil {
		return "", bridge.Errorf(bridge.MalformedResponse, "wlan address", "no IPv4 address on wlan0")
	}
	return m[1], nil
}

// classify maps a failed adb invocation onto the bridge error taxonomy.
func classify(ctx context.Context, cmd, out string, err error) error {
	op := "adb"
	if f := strings.Fields(cmd); len(f) > 0 {
		op += " " + f[0]
	}
	if ctx.Err() != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return bridge.Wrap(ctx.Err(), bridge.Timeout, op)
		}
		return bridge.Wrap(ctx.Err(), bridge.Cancelled, op)
	}
	detail := strings.TrimSpace(out)
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "insufficient permissions"),
		strings.Contains(lower, "permission denied"):
		return &bridge.Error{Kind: bridge.PermissionDenied, Op: op, Detail: detail, Err: err}
	case strings.Contains(lower, "not found"),
		strings.Contains(lower, "offline"),
		strings.Contains(lower, "no devices"),
		strings.Contains(lower, "disconnected"),
		strings.Contains(lower, "protocol fault"),
		strings.Contains(lower, "closed"):
		return &bridge.Error{Kind: bridge.DeviceUnavailable, Op: op, Detail: detail, Err: err}
	}
	return &bridge.Error{Kind: bridge.BridgeError, Op: op, Detail: detail, Err: err}
}
