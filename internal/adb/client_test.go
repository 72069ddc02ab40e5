package adb

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FluidXR/untether/internal/bridge"
)

// fakeADB answers adb invocations from a table keyed by the joined args.
type fakeADB struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeADB) client() *Client {
	return &Client{run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
		key := strings.Join(args, " ")
		f.calls = append(f.calls, key)
		return []byte(f.outputs[key]), f.errs[key]
	}}
}

var errExit = errors.New("exit status 1")

const devicesOutput = `List of devices attached
* daemon started successfully
1WMHH815K21234         device usb:1-1 product:hollywood model:Quest_2 device:hollywood transport_id:3
192.168.1.50:5555      device product:eureka model:Quest_3 device:eureka transport_id:4
R58M12ABCDE            unauthorized usb:1-2 transport_id:5
emulator-5554          offline transport_id:6
`

func TestParseDeviceList(t *testing.T) {
	devices := parseDeviceList(devicesOutput)
	require.Len(t, devices, 4)

	require.Equal(t, "1WMHH815K21234", devices[0].Serial)
	require.Equal(t, USB, devices[0].ConnType)
	require.Equal(t, "Quest_2", devices[0].Model)
	require.Equal(t, "hollywood", devices[0].Product)
	require.Equal(t, "3", devices[0].TransportID)
	require.True(t, devices[0].IsOnline())

	require.Equal(t, WiFi, devices[1].ConnType)
	host, port, ok := devices[1].NetworkAddress()
	require.True(t, ok)
	require.Equal(t, "192.168.1.50", host)
	require.Equal(t, 5555, port)

	require.True(t, devices[2].IsUnauthorized())
	require.False(t, devices[3].IsOnline())
}

func TestUSBDevices(t *testing.T) {
	f := &fakeADB{outputs: map[string]string{"devices -l": devicesOutput}}
	devices, err := f.client().USBDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, "1WMHH815K21234", devices[0].Serial)
	require.Equal(t, "1WMHH815K21234 (Quest 2)", devices[0].String())
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		out  string
		kind bridge.Kind
	}{
		{"connected", "connected to 10.0.0.5:5555\n", bridge.KindNone},
		{"already", "already connected to 10.0.0.5:5555\n", bridge.KindNone},
		{"refused", "failed to connect to '10.0.0.5:5555': Connection refused\n", bridge.DeviceUnavailable},
		{"auth", "failed to authenticate to 10.0.0.5:5555\n", bridge.PermissionDenied},
		{"garbage", "huh?\n", bridge.MalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeADB{outputs: map[string]string{"connect 10.0.0.5:5555": tc.out}}
			err := f.client().Connect(ctx, "10.0.0.5", 5555)
			require.Equal(t, tc.kind, bridge.KindOf(err))
		})
	}
}

func TestHandleSendCommandClassifiesFailures(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		out  string
		kind bridge.Kind
	}{
		{"error: device unauthorized.\nThis adb server's $ADB_VENDOR_KEYS is not set", bridge.PermissionDenied},
		{"error: device 'ABC' not found", bridge.DeviceUnavailable},
		{"error: device offline", bridge.DeviceUnavailable},
		{"error: protocol fault (couldn't read status): Success", bridge.DeviceUnavailable},
		{"adb: usage: unknown command", bridge.BridgeError},
	}
	for _, tc := range cases {
		f := &fakeADB{
			outputs: map[string]string{"-s ABC tcpip 5555": tc.out},
			errs:    map[string]error{"-s ABC tcpip 5555": errExit},
		}
		out, err := f.client().Handle("ABC").SendCommand(ctx, "tcpip 5555")
		require.Equal(t, tc.kind, bridge.KindOf(err), tc.out)
		require.Equal(t, tc.out, out)
	}
}

func TestHandleSendCommandTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	f := &fakeADB{errs: map[string]error{"-s ABC tcpip 5555": errors.New("signal: killed")}}
	_, err := f.client().Handle("ABC").SendCommand(ctx, "tcpip 5555")
	require.Equal(t, bridge.Timeout, bridge.KindOf(err))
}

func TestHandleTransportState(t *testing.T) {
	ctx := context.Background()

	state, err := (&fakeADB{}).client().Handle("192.168.1.50:5555").TransportState(ctx)
	require.NoError(t, err)
	require.Equal(t, bridge.TCP, state)

	f := &fakeADB{outputs: map[string]string{"-s ABC shell getprop service.adb.tcp.port": "\n"}}
	state, err = f.client().Handle("ABC").TransportState(ctx)
	require.NoError(t, err)
	require.Equal(t, bridge.USB, state)

	f = &fakeADB{outputs: map[string]string{"-s ABC shell getprop service.adb.tcp.port": "5555\r\n"}}
	state, err = f.client().Handle("ABC").TransportState(ctx)
	require.NoError(t, err)
	require.Equal(t, bridge.TCP, state)

	f = &fakeADB{
		outputs: map[string]string{"-s ABC shell getprop service.adb.tcp.port": "error: no devices/emulators found"},
		errs:    map[string]error{"-s ABC shell getprop service.adb.tcp.port": errExit},
	}
	_, err = f.client().Handle("ABC").TransportState(ctx)
	require.Equal(t, bridge.DeviceUnavailable, bridge.KindOf(err))
}

func TestHandleTCPPort(t *testing.T) {
	ctx := context.Background()

	port, err := (&fakeADB{}).client().Handle("192.168.1.50:5558").TCPPort(ctx)
	require.NoError(t, err)
	require.Equal(t, 5558, port)

	f := &fakeADB{outputs: map[string]string{"-s ABC shell getprop service.adb.tcp.port": "5556\n"}}
	port, err = f.client().Handle("ABC").TCPPort(ctx)
	require.NoError(t, err)
	require.Equal(t, 5556, port)

	f = &fakeADB{outputs: map[string]string{"-s ABC shell getprop service.adb.tcp.port": "\n"}}
	port, err = f.client().Handle("ABC").TCPPort(ctx)
	require.NoError(t, err)
	require.Zero(t, port)
}

func TestHandleDeviceAddress(t *testing.T) {
	ctx := context.Background()
	const ipOutput = `30: wlan0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc mq state UP group default qlen 3000
    inet 192.168.1.50/24 brd 192.168.1.255 scope global wlan0
       valid_lft forever preferred_lft forever
`
	f := &fakeADB{outputs: map[string]string{"-s ABC shell ip -f inet addr show wlan0": ipOutput}}
	host, err := f.client().Handle("ABC").DeviceAddress(ctx)
	require.NoError(t, err)
	require.Equal(t, "192.168.1.50", host)

	f = &fakeADB{outputs: map[string]string{"-s ABC shell ip -f inet addr show wlan0": "Device \"wlan0\" does not exist.\n"}}
	_, err = f.client().Handle("ABC").DeviceAddress(ctx)
	require.Equal(t, bridge.MalformedResponse, bridge.KindOf(err))
}
