// Package telemetry sends the anonymous usage event recorded after a
// successful switch.
package telemetry

import (
	"runtime"
	"time"

	"github.com/google/uuid"
	segment "github.com/segmentio/analytics-go/v3"

	"github.com/FluidXR/untether/internal/config"
	"github.com/FluidXR/untether/internal/wireless"
)

// SwitchEvent is the event name tracked after a successful switch.
const SwitchEvent = "Wireless Switch"

// Client sends analytics messages.
type Client = segment.Client

// EnsureClientID assigns an anonymous client ID if the config has none. It
// reports whether the config changed and must be saved.
func EnsureClientID(a *config.Analytics) bool {
	if a.ClientID != "" {
		return false
	}
	a.ClientID = uuid.New().String()
	return true
}

// NewClient returns a client for the analytics settings. Without a write key
// the returned client drops every message.
func NewClient(a config.Analytics) (Client, error) {
	if a.WriteKey == "" {
		return &proxyClient{disabled: true, Client: nopClient{}, identity: &Identity{AnonymousID: a.ClientID}}, nil
	}
	c, err := segment.NewWithConfig(a.WriteKey, segment.Config{
		Interval:  time.Millisecond,
		BatchSize: 1,
		Endpoint:  a.Endpoint,
		Logger:    noopLogger{},
	})
	if err != nil {
		return nil, err
	}
	return &proxyClient{
		disabled: a.Disabled,
		identity: &Identity{AnonymousID: a.ClientID},
		Client:   c,
	}, nil
}

// TrackSwitch enqueues the switch event. Only successful outcomes are
// tracked.
func TrackSwitch(c Client, out wireless.Outcome, took time.Duration, version string) error {
	if out.Status != wireless.StatusSucceeded {
		return nil
	}
	return c.Enqueue(segment.Track{
		Event: SwitchEvent,
		Properties: segment.NewProperties().
			Set("port", out.Address.Port).
			Set("already_switched", out.AlreadySwitched).
			Set("duration_ms", took.Milliseconds()).
			Set("platform", runtime.GOOS).
			Set("version", version),
	})
}

type noopLogger struct{}

func (noopLogger) Logf(format string, args ...interface{})   {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

type nopClient struct{}

func (nopClient) Enqueue(segment.Message) error { return nil }
func (nopClient) Close() error                  { return nil }

type proxyClient struct {
	disabled bool
	segment.Client
	identity *Identity
}

func (c *proxyClient) Enqueue(msg segment.Message) error {
	if c.disabled {
		return nil
	}
	return c.Client.Enqueue(c.identity.Populate(msg))
}

// Identity fills in the anonymous ID of outgoing messages.
type Identity struct {
	AnonymousID string
}

// Populate sets the anonymous ID on track events that have none.
func (i *Identity) Populate(msg segment.Message) segment.Message {
	if t, ok := msg.(segment.Track); ok && t.AnonymousId == "" {
		t.AnonymousId = i.AnonymousID
		return t
	}
	return msg
}
