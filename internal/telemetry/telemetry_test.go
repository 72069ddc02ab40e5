package telemetry

import (
	"testing"
	"time"

	segment "github.com/segmentio/analytics-go/v3"
	"github.com/stretchr/testify/require"

	"github.com/FluidXR/untether/internal/bridge"
	"github.com/FluidXR/untether/internal/config"
	"github.com/FluidXR/untether/internal/wireless"
)

type recordingClient struct {
	msgs   []segment.Message
	closed bool
}

func (r *recordingClient) Enqueue(m segment.Message) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recordingClient) Close() error {
	r.closed = true
	return nil
}

func TestEnsureClientID(t *testing.T) {
	var a config.Analytics
	require.True(t, EnsureClientID(&a))
	require.NotEmpty(t, a.ClientID)
	id := a.ClientID
	require.False(t, EnsureClientID(&a))
	require.Equal(t, id, a.ClientID)
}

func TestTrackSwitchOnlyOnSuccess(t *testing.T) {
	rec := &recordingClient{}
	c := &proxyClient{Client: rec, identity: &Identity{AnonymousID: "anon-1"}}

	require.NoError(t, TrackSwitch(c, wireless.Failure(bridge.PermissionDenied, "unauthorized"), time.Second, "dev"))
	require.NoError(t, TrackSwitch(c, wireless.Cancel(), time.Second, "dev"))
	require.Empty(t, rec.msgs)

	out := wireless.Success(wireless.Address{Host: "10.0.0.5", Port: 5555})
	require.NoError(t, TrackSwitch(c, out, 1500*time.Millisecond, "dev"))
	require.Len(t, rec.msgs, 1)

	track, ok := rec.msgs[0].(segment.Track)
	require.True(t, ok)
	require.Equal(t, SwitchEvent, track.Event)
	require.Equal(t, "anon-1", track.AnonymousId)
	require.Equal(t, 5555, track.Properties["port"])
	require.Equal(t, int64(1500), track.Properties["duration_ms"])
	require.NotContains(t, track.Properties, "host")
}

func TestDisabledClientDropsMessages(t *testing.T) {
	rec := &recordingClient{}
	c := &proxyClient{disabled: true, Client: rec, identity: &Identity{}}
	require.NoError(t, TrackSwitch(c, wireless.Success(wireless.Address{Host: "10.0.0.5", Port: 5555}), 0, "dev"))
	require.Empty(t, rec.msgs)
}

func TestNewClientHonorsDisabled(t *testing.T) {
	c, err := NewClient(config.Analytics{WriteKey: "key", Disabled: true, Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)
	p, ok := c.(*proxyClient)
	require.True(t, ok)
	require.True(t, p.disabled)
	require.NoError(t, TrackSwitch(c, wireless.Success(wireless.Address{Host: "10.0.0.5", Port: 5555}), 0, "dev"))
	require.NoError(t, c.Close())
}

func TestNewClientWithoutWriteKeyIsInert(t *testing.T) {
	c, err := NewClient(config.Analytics{ClientID: "anon"})
	require.NoError(t, err)
	require.NoError(t, TrackSwitch(c, wireless.Success(wireless.Address{Host: "10.0.0.5", Port: 5555}), 0, "dev"))
	require.NoError(t, c.Close())
}
