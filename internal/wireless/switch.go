package wireless

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"github.com/FluidXR/untether/internal/bridge"
)

// DefaultAckTimeout bounds each device call made while switching. It is
// much shorter than the reattachment budget.
const DefaultAckTimeout = 10 * time.Second

var (
	ackAddrRegex    = regexp.MustCompile(`^(\d{1,3}(?:\.\d{1,3}){3}):(\d{1,5})$`)
	ackRestartRegex = regexp.MustCompile(`(?i)restarting in tcp mode port:\s*(\d+)`)

	ackPermissionMarkers  = []string{"permission denied", "unauthorized", "insufficient permissions", "not permitted", "cannot run as root"}
	ackUnavailableMarkers = []string{"not found", "offline", "no devices", "disconnected", "closed"}
)

// SwitchOptions parameterize SwitchTransport.
type SwitchOptions struct {
	// Port adbd should listen on. Must be in 1-65535.
	Port int
	// Host is used when the device does not report an address in its
	// acknowledgement.
	Host string
	// AckTimeout bounds every device call. Zero means DefaultAckTimeout.
	AckTimeout time.Duration
	// Canceled, if set, is checked right before the switch command is sent.
	Canceled func() bool
}

// SwitchResult is the address the device is expected to listen on.
type SwitchResult struct {
	Address Address
	// AlreadySwitched is set when the device was found in TCP mode and no
	// switch command was sent.
	AlreadySwitched bool
}

// SwitchTransport tells the device's bridge daemon to restart in TCP mode.
//
// The current transport is queried first: a device that is already in TCP
// mode is not switched again. Sending the switch command changes the device
// state even if the caller never looks at the result, so callers must not
// retry this blindly.
//
// A device already listening on a different TCP port is switched again to
// the requested one.
//
// Device calls are never interrupted by cancellation of ctx; each one is
// only bounded by the ack timeout. Once the switch command has been sent the
// call runs to completion.
func SwitchTransport(ctx context.Context, h bridge.Handle, opts SwitchOptions) (SwitchResult, error) {
	if h == nil {
		return SwitchResult{}, bridge.Errorf(bridge.InvalidRequest, "switch transport", "no device")
	}
	if !ValidPort(opts.Port) {
		return SwitchResult{}, bridge.Errorf(bridge.InvalidRequest, "switch transport", "port %d out of range 1-65535", opts.Port)
	}
	ackTimeout := opts.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	callCtx := context.WithoutCancel(ctx)

	var state bridge.Transport
	err := deviceCall(callCtx, ackTimeout, func(ctx context.Context) (err error) {
		state, err = h.TransportState(ctx)
		return
	})
	if err != nil {
		return SwitchResult{}, errors.Annotate(err, "query transport of %s", h.Serial()).Err()
	}

	if state == bridge.TCP {
		res, switched, err := alreadySwitched(ctx, callCtx, ackTimeout, h, opts)
		if err != nil || switched {
			return res, err
		}
	}

	// The USB channel goes away once adbd restarts, so ask for the device's
	// own address first.
	fallback := opts.Host
	if fallback == "" {
		fallback = reportedHost(callCtx, ackTimeout, h)
	}

	if opts.Canceled != nil && opts.Canceled() {
		return SwitchResult{}, bridge.Errorf(bridge.Cancelled, "switch transport", "cancelled before the switch command was sent")
	}

	var ack string
	err = deviceCall(callCtx, ackTimeout, func(ctx context.Context) (err error) {
		ack, err = h.SendCommand(ctx, fmt.Sprintf("tcpip %d", opts.Port))
		return
	})
	if err != nil {
		return SwitchResult{}, errors.Annotate(err, "switch %s to tcp", h.Serial()).Err()
	}
	logging.Debugf(ctx, "%s acknowledged switch: %q", h.Serial(), strings.TrimSpace(ack))

	addr, err := parseAck(ack, opts.Port)
	if err != nil {
		return SwitchResult{}, err
	}
	if addr.Host == "" {
		addr.Host = fallback
	}
	if addr.Host == "" {
		return SwitchResult{}, bridge.Errorf(bridge.MalformedResponse, "switch transport",
			"device did not report a network address and no host was given; adbd may now be listening on port %d", addr.Port)
	}
	return SwitchResult{Address: addr}, nil
}

// alreadySwitched resolves the address of a device whose adbd is already on
// TCP. It reports false if the device listens on another port than the one
// requested and must be switched again.
func alreadySwitched(ctx, callCtx context.Context, ackTimeout time.Duration, h bridge.Handle, opts SwitchOptions) (SwitchResult, bool, error) {
	addr := Address{Host: opts.Host, Port: opts.Port}
	if host, port, ok := serialAddress(h.Serial()); ok {
		addr = Address{Host: host, Port: port}
	} else if r, ok := h.(bridge.PortReporter); ok {
		var port int
		err := deviceCall(callCtx, ackTimeout, func(ctx context.Context) (err error) {
			port, err = r.TCPPort(ctx)
			return
		})
		switch {
		case err != nil:
			logging.Warningf(ctx, "could not read tcp port of %s, switching again: %s", h.Serial(), err)
			return SwitchResult{}, false, nil
		case port != opts.Port:
			logging.Infof(ctx, "%s listens on tcp port %d, switching to %d", h.Serial(), port, opts.Port)
			return SwitchResult{}, false, nil
		}
	}
	if addr.Host == "" {
		addr.Host = reportedHost(callCtx, ackTimeout, h)
	}
	if addr.Host == "" {
		return SwitchResult{}, false, bridge.Errorf(bridge.MalformedResponse, "switch transport",
			"%s is already in TCP mode but its address is unknown", h.Serial())
	}
	logging.Infof(ctx, "%s is already in TCP mode, not switching again", h.Serial())
	return SwitchResult{Address: addr, AlreadySwitched: true}, true, nil
}

// deviceCall runs fn with its own deadline. A call that overruns the
// deadline is classified as Timeout whatever the handle returned.
func deviceCall(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := clock.WithTimeout(ctx, timeout)
	defer cancel()
	err := fn(ctx)
	if err != nil && ctx.Err() == context.DeadlineExceeded && !bridge.Is(err, bridge.Timeout) {
		return &bridge.Error{Kind: bridge.Timeout, Op: "device call", Detail: fmt.Sprintf("no answer within %s", timeout), Err: err}
	}
	return err
}

// reportedHost asks the device for its own address. Failures are logged and
// yield "".
func reportedHost(ctx context.Context, timeout time.Duration, h bridge.Handle) string {
	r, ok := h.(bridge.AddressReporter)
	if !ok {
		return ""
	}
	var host string
	err := deviceCall(ctx, timeout, func(ctx context.Context) (err error) {
		host, err = r.DeviceAddress(ctx)
		return
	})
	if err != nil {
		logging.Warningf(ctx, "could not read network address of %s: %s", h.Serial(), err)
		return ""
	}
	return host
}

// parseAck interprets the device's answer to the switch command. An empty
// answer means success with the requested port and no reported host.
func parseAck(ack string, port int) (Address, error) {
	text := strings.TrimSpace(ack)
	lower := strings.ToLower(text)
	for _, m := range ackPermissionMarkers {
		if strings.Contains(lower, m) {
			return Address{}, bridge.Errorf(bridge.PermissionDenied, "switch transport", "%s", text)
		}
	}
	for _, m := range ackUnavailableMarkers {
		if strings.Contains(lower, m) {
			return Address{}, bridge.Errorf(bridge.DeviceUnavailable, "switch transport", "%s", text)
		}
	}

	switch {
	case text == "":
		return Address{Port: port}, nil
	case ackAddrRegex.MatchString(text):
		m := ackAddrRegex.FindStringSubmatch(text)
		p, err := strconv.Atoi(m[2])
		if err != nil || !ValidPort(p) || net.ParseIP(m[1]) == nil {
			return Address{}, bridge.Errorf(bridge.MalformedResponse, "switch transport", "bad address in %q", text)
		}
		return Address{Host: m[1], Port: p}, nil
	case ackRestartRegex.MatchString(text):
		m := ackRestartRegex.FindStringSubmatch(text)
		p, err := strconv.Atoi(m[1])
		if err != nil || !ValidPort(p) {
			return Address{}, bridge.Errorf(bridge.MalformedResponse, "switch transport", "bad port in %q", text)
		}
		return Address{Port: p}, nil
	}
	return Address{}, bridge.Errorf(bridge.MalformedResponse, "switch transport", "unexpected acknowledgement %q", text)
}

func serialAddress(serial string) (string, int, bool) {
	host, p, err := net.SplitHostPort(serial)
	if err != nil || host == "" {
		return "", 0, false
	}
	port, err := strconv.Atoi(p)
	if err != nil || !ValidPort(port) {
		return "", 0, false
	}
	return host, port, true
}
