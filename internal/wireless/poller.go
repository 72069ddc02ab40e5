package wireless

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/logging"

	"github.com/FluidXR/untether/internal/bridge"
)

const (
	DefaultReattachTimeout = 20 * time.Second
	DefaultPollInterval    = time.Second
	DefaultAttemptTimeout  = 2 * time.Second

	// cancelCheckInterval is how often cancellation is re-checked while
	// waiting between attempts.
	cancelCheckInterval = 100 * time.Millisecond
)

// Prober performs one liveness check against addr. It must return once ctx
// is done.
type Prober interface {
	Probe(ctx context.Context, addr Address) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, addr Address) error

func (f ProberFunc) Probe(ctx context.Context, addr Address) error {
	return f(ctx, addr)
}

// Chain returns a Prober that runs probers in order and fails on the first
// failing stage.
func Chain(probers ...Prober) Prober {
	return ProberFunc(func(ctx context.Context, addr Address) error {
		for _, p := range probers {
			if err := p.Probe(ctx, addr); err != nil {
				return err
			}
		}
		return nil
	})
}

// DialProber checks that something accepts TCP connections on addr.
var DialProber Prober = ProberFunc(func(ctx context.Context, addr Address) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return bridge.Wrap(err, bridge.DeviceUnavailable, "dial "+addr.String())
	}
	return conn.Close()
})

// Poller waits for a switched device to become reachable.
type Poller struct {
	Prober Prober
	// Interval between attempts. Zero means DefaultPollInterval.
	Interval time.Duration
	// AttemptTimeout caps a single probe. Zero means DefaultAttemptTimeout.
	AttemptTimeout time.Duration
	// Canceled is checked before every attempt and while waiting.
	Canceled func() bool
	// OnAttempt, if set, is called after each failed attempt.
	OnAttempt func(attempt int, elapsed time.Duration, err error)
}

// Poll probes addr until a probe succeeds, cancellation is requested or
// budget elapses. It returns nil, a Cancelled error or a Timeout error.
// Each probe gets a deadline strictly inside the remaining budget, so Poll
// never runs past the budget even if the prober hangs until its deadline.
// In-flight probes are not interrupted by cancellation.
func (p *Poller) Poll(ctx context.Context, addr Address, budget time.Duration) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attemptTimeout := p.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	if budget <= 0 {
		budget = DefaultReattachTimeout
	}

	start := clock.Now(ctx)
	deadline := start.Add(budget)
	var lastErr error
	attempt := 0
	for {
		if p.canceled(ctx) {
			return bridge.Errorf(bridge.Cancelled, "reattach", "cancelled after %d attempts", attempt)
		}
		remaining := deadline.Sub(clock.Now(ctx))
		timeout := attemptTimeout
		if timeout >= remaining {
			timeout = remaining * 9 / 10
		}
		if timeout <= 0 {
			return &bridge.Error{
				Kind:   bridge.Timeout,
				Op:     "reattach",
				Detail: fmt.Sprintf("%s not reachable after %d attempts in %s", addr, attempt, budget),
				Err:    lastErr,
			}
		}

		attempt++
		actx, cancel := clock.WithTimeout(context.WithoutCancel(ctx), timeout)
		err := p.Prober.Probe(actx, addr)
		cancel()
		if err == nil {
			logging.Debugf(ctx, "%s reachable after %d attempts", addr, attempt)
			return nil
		}
		lastErr = err
		elapsed := clock.Now(ctx).Sub(start)
		logging.Debugf(ctx, "attempt %d on %s failed after %s: %s", attempt, addr, elapsed, err)
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, elapsed, err)
		}

		wait := interval
		if left := deadline.Sub(clock.Now(ctx)); wait > left {
			wait = left
		}
		if !p.wait(ctx, wait) {
			return bridge.Errorf(bridge.Cancelled, "reattach", "cancelled after %d attempts", attempt)
		}
	}
}

func (p *Poller) canceled(ctx context.Context) bool {
	return ctx.Err() != nil || (p.Canceled != nil && p.Canceled())
}

// wait sleeps for d in short slices so cancellation is noticed promptly.
// It returns false if cancellation was requested.
func (p *Poller) wait(ctx context.Context, d time.Duration) bool {
	for d > 0 {
		step := d
		if step > cancelCheckInterval {
			step = cancelCheckInterval
		}
		if tr := clock.Sleep(ctx, step); tr.Err != nil {
			return false
		}
		d -= step
		if p.canceled(ctx) {
			return false
		}
	}
	return true
}
