package wireless

// helpers_test.go contains fakes for the device handle, the prober and the
// progress sink, and a test clock that advances itself whenever code under
// test sleeps.

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/clock/testclock"

	"github.com/FluidXR/untether/internal/bridge"
)

// autoClock returns a context whose clock jumps forward by the requested
// amount every time a sleep or timer is started. Context deadlines are left
// alone so they only fire when time is advanced by sleeps.
func autoClock() (context.Context, testclock.TestClock) {
	ctx, tc := testclock.UseTime(context.Background(), testclock.TestRecentTimeUTC)
	tc.SetTimerCallback(func(d time.Duration, t clock.Timer) {
		for _, tag := range testclock.GetTags(t) {
			if tag == clock.ContextDeadlineTag {
				return
			}
		}
		tc.Add(d)
	})
	return ctx, tc
}

type fakeHandle struct {
	serial   string
	state    bridge.Transport
	stateErr error
	ack      string
	ackErr   error
	// blockAck makes the switch command wait for its context to expire.
	blockAck bool
	addr     string

	mu       sync.Mutex
	calls    []string
	inflight int32
	maxCalls int32
}

func (h *fakeHandle) enter(call string) func() {
	h.mu.Lock()
	h.calls = append(h.calls, call)
	h.mu.Unlock()
	n := atomic.AddInt32(&h.inflight, 1)
	for {
		max := atomic.LoadInt32(&h.maxCalls)
		if n <= max || atomic.CompareAndSwapInt32(&h.maxCalls, max, n) {
			break
		}
	}
	return func() { atomic.AddInt32(&h.inflight, -1) }
}

func (h *fakeHandle) Serial() string { return h.serial }

func (h *fakeHandle) SendCommand(ctx context.Context, cmd string) (string, error) {
	defer h.enter(cmd)()
	if h.blockAck {
		<-ctx.Done()
		return "", bridge.Wrap(ctx.Err(), bridge.Timeout, cmd)
	}
	return h.ack, h.ackErr
}

func (h *fakeHandle) TransportState(ctx context.Context) (bridge.Transport, error) {
	defer h.enter("state")()
	return h.state, h.stateErr
}

func (h *fakeHandle) DeviceAddress(ctx context.Context) (string, error) {
	defer h.enter("address")()
	if h.addr == "" {
		return "", bridge.Errorf(bridge.MalformedResponse, "wlan address", "no wlan0")
	}
	return h.addr, nil
}

func (h *fakeHandle) commands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

// portHandle also reports the TCP port adbd listens on.
type portHandle struct {
	*fakeHandle
	port    int
	portErr error
}

func (h *portHandle) TCPPort(ctx context.Context) (int, error) {
	defer h.enter("port")()
	return h.port, h.portErr
}

// fakeProber fails until its succeedOn'th call. succeedOn 0 never succeeds.
type fakeProber struct {
	succeedOn int

	mu        sync.Mutex
	calls     int
	addrs     []Address
	deadlines []time.Time
}

func (p *fakeProber) Probe(ctx context.Context, addr Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.addrs = append(p.addrs, addr)
	if d, ok := ctx.Deadline(); ok {
		p.deadlines = append(p.deadlines, d)
	}
	if p.succeedOn > 0 && p.calls >= p.succeedOn {
		return nil
	}
	return bridge.Errorf(bridge.DeviceUnavailable, "probe", "connection refused")
}

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type recordingSink struct {
	cancel func() bool

	mu       sync.Mutex
	percents []int
	statuses []string
}

func (s *recordingSink) Progress(percent int, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.percents = append(s.percents, percent)
	s.statuses = append(s.statuses, status)
}

func (s *recordingSink) Canceled() bool {
	return s.cancel != nil && s.cancel()
}

func (s *recordingSink) progress() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.percents...)
}
