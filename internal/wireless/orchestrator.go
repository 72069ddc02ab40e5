// Package wireless switches a USB-attached Android device to TCP/IP
// debugging and confirms it comes back on the network.
package wireless

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.chromium.org/luci/common/logging"

	"github.com/FluidXR/untether/internal/bridge"
)

// State of an Orchestrator.
type State int

const (
	Idle State = iota
	SwitchingTransport
	AwaitingReattachment
	Succeeded
	Failed
	Cancelled
)

var stateNames = [...]string{"idle", "switching transport", "awaiting reattachment", "succeeded", "failed", "cancelled"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Cancelled
}

const (
	progressSwitched = 40
	progressDone     = 100
)

// Options tune an Orchestrator. Zero values use the package defaults.
type Options struct {
	AckTimeout     time.Duration
	PollInterval   time.Duration
	AttemptTimeout time.Duration
}

// Orchestrator runs one switch attempt: transport switch, then
// reattachment polling. An Orchestrator is single use.
type Orchestrator struct {
	prober Prober
	opts   Options

	mu      sync.Mutex
	state   State
	started bool
}

// NewOrchestrator returns an orchestrator that confirms reattachment with
// prober.
func NewOrchestrator(prober Prober, opts Options) *Orchestrator {
	if prober == nil {
		prober = DialProber
	}
	return &Orchestrator{prober: prober, opts: opts}
}

// State returns the current state. It is safe to call from any goroutine.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) transition(ctx context.Context, s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()
	logging.Debugf(ctx, "switch: %s -> %s", prev, s)
}

// Run performs req and returns its outcome. Cancellation, through ctx or
// sink, is only observed between steps: before the transport query, right
// before the switch command is sent and before and between reattachment
// attempts. A running device command is
// always allowed to finish.
//
// Run may be called once; further calls fail with InvalidRequest.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink ProgressSink) Outcome {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return Failure(bridge.InvalidRequest, "orchestrator already ran; use a new one for each attempt")
	}
	o.started = true
	o.mu.Unlock()

	if sink == nil {
		sink = nopSink{}
	}
	canceled := func() bool { return ctx.Err() != nil || sink.Canceled() }

	req = req.withDefaults()
	if err := req.validate(); err != nil {
		return o.finish(ctx, failureFrom(err))
	}

	o.transition(ctx, SwitchingTransport)
	sink.Progress(0, fmt.Sprintf("Switching %s to TCP/IP on port %d", req.Device.Serial(), req.Port))
	if canceled() {
		return o.finish(ctx, Cancel())
	}

	res, err := SwitchTransport(ctx, req.Device, SwitchOptions{
		Port:       req.Port,
		Host:       req.Host,
		AckTimeout: o.opts.AckTimeout,
		Canceled:   canceled,
	})
	switch {
	case bridge.Is(err, bridge.Cancelled):
		return o.finish(ctx, Cancel())
	case err != nil:
		return o.finish(ctx, failureFrom(err))
	}

	o.transition(ctx, AwaitingReattachment)
	sink.Progress(progressSwitched, fmt.Sprintf("Waiting for %s", res.Address))

	poller := &Poller{
		Prober:         o.prober,
		Interval:       o.opts.PollInterval,
		AttemptTimeout: o.opts.AttemptTimeout,
		Canceled:       sink.Canceled,
		OnAttempt: func(attempt int, elapsed time.Duration, _ error) {
			pct := progressSwitched + int(int64(progressDone-progressSwitched-1)*int64(elapsed)/int64(req.Timeout))
			if pct >= progressDone {
				pct = progressDone - 1
			}
			sink.Progress(pct, fmt.Sprintf("Waiting for %s (attempt %d)", res.Address, attempt))
		},
	}
	err = poller.Poll(ctx, res.Address, req.Timeout)
	switch bridge.KindOf(err) {
	case bridge.KindNone:
		sink.Progress(progressDone, fmt.Sprintf("Connected to %s", res.Address))
		out := Success(res.Address)
		out.AlreadySwitched = res.AlreadySwitched
		return o.finish(ctx, out)
	case bridge.Cancelled:
		return o.finish(ctx, Cancel())
	case bridge.Timeout:
		out := Failure(bridge.ReattachmentTimeout,
			fmt.Sprintf("device was switched to TCP/IP but did not become reachable at %s: %s", res.Address, err))
		out.Address = res.Address
		return o.finish(ctx, out)
	default:
		return o.finish(ctx, failureFrom(err))
	}
}

func (o *Orchestrator) finish(ctx context.Context, out Outcome) Outcome {
	switch out.Status {
	case StatusSucceeded:
		o.transition(ctx, Succeeded)
		logging.Infof(ctx, "switch succeeded: %s", out.Address)
	case StatusCancelled:
		o.transition(ctx, Cancelled)
		logging.Infof(ctx, "switch cancelled")
	default:
		o.transition(ctx, Failed)
		logging.Warningf(ctx, "switch failed (%s): %s", out.Reason, out.Detail)
	}
	return out
}
