package adb

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"github.com/FluidXR/untether/internal/bridge"
)

// runFunc executes the adb binary and returns its combined output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client wraps ADB command-line calls.
type Client struct {
	// Path is the adb binary to run. Empty means "adb" from $PATH.
	Path string

	run runFunc
}

// NewClient creates a new ADB client.
func NewClient() *Client {
	return &Client{}
}

func (c *Client) binary() string {
	if c.Path != "" {
		return c.Path
	}
	return "adb"
}

func (c *Client) exec(ctx context.Context, args ...string) (string, error) {
	logging.Debugf(ctx, "running: %s %s", c.binary(), strings.Join(args, " "))
	run := c.run
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		}
	}
	out, err := run(ctx, c.binary(), args...)
	return string(out), err
}

// Devices returns all connected ADB devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	out, err := c.exec(ctx, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("adb devices: %w\n%s", err, out)
	}
	return parseDeviceList(out), nil
}

// USBDevices returns the online devices attached over USB.
func (c *Client) USBDevices(ctx context.Context) ([]Device, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return nil, err
	}
	var usb []Device
	for _, d := range devices {
		if d.IsOnline() && d.ConnType == USB {
			usb = append(usb, d)
		}
	}
	return usb, nil
}

// Handle returns a bridge handle for the device with the given serial.
func (c *Client) Handle(serial string) *Handle {
	return &Handle{client: c, serial: serial}
}

// Connect attaches the local adb server to a device listening on ip:port.
func (c *Client) Connect(ctx context.Context, ip string, port int) error {
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	out, err := c.exec(ctx, "connect", addr)
	if err != nil {
		if ctx.Err() != nil {
			return bridge.Wrap(ctx.Err(), bridge.Timeout, "adb connect "+addr)
		}
		return bridge.Wrap(errors.Annotate(err, "adb connect %s: %s", addr, strings.TrimSpace(out)).Err(),
			bridge.BridgeError, "adb connect")
	}
	output := strings.ToLower(out)
	switch {
	case strings.Contains(output, "failed to authenticate"):
		return bridge.Errorf(bridge.PermissionDenied, "adb connect", "%s", strings.TrimSpace(out))
	case strings.Contains(output, "failed"),
		strings.Contains(output, "cannot connect"),
		strings.Contains(output, "unable to connect"):
		return bridge.Errorf(bridge.DeviceUnavailable, "adb connect", "%s", strings.TrimSpace(out))
	case strings.Contains(output, "connected"):
		logging.Debugf(ctx, "adb attached to %s", addr)
		return nil
	}
	return bridge.Errorf(bridge.MalformedResponse, "adb connect", "%s", strings.TrimSpace(out))
}

// parseDeviceList parses `adb devices -l` output.
func parseDeviceList(output string) []Device {
	var devices []Device
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		d := Device{
			Serial:   fields[0],
			State:    fields[1],
			ConnType: connTypeOf(fields[0]),
		}
		// Parse key:value pairs
		for _, f := range fields[2:] {
			parts := strings.SplitN(f, ":", 2)
			if len(parts) != 2 {
				continue
			}
			switch parts[0] {
			case "model":
				d.Model = parts[1]
			case "product":
				d.Product = parts[1]
			case "transport_id":
				d.TransportID = parts[1]
			}
		}
		devices = append(devices, d)
	}
	return devices
}
