package wireless

import (
	"fmt"
	"time"

	"github.com/FluidXR/untether/internal/bridge"
)

// Request describes one switch attempt. It is passed by value and not
// modified by the orchestrator.
type Request struct {
	Device bridge.Handle
	// Host overrides the address the device reports. Empty means use the
	// device-reported address.
	Host string
	// Port adbd should listen on. Zero means DefaultPort.
	Port int
	// Timeout is the reattachment budget. Zero means DefaultReattachTimeout.
	Timeout time.Duration
}

func (r Request) withDefaults() Request {
	if r.Port == 0 {
		r.Port = DefaultPort
	}
	if r.Timeout == 0 {
		r.Timeout = DefaultReattachTimeout
	}
	return r
}

func (r Request) validate() error {
	switch {
	case r.Device == nil:
		return bridge.Errorf(bridge.InvalidRequest, "request", "no device selected")
	case !ValidPort(r.Port):
		return bridge.Errorf(bridge.InvalidRequest, "request", "port %d out of range 1-65535", r.Port)
	case r.Timeout < 0:
		return bridge.Errorf(bridge.InvalidRequest, "request", "negative timeout %s", r.Timeout)
	}
	return nil
}

// Status is the terminal status of a switch attempt.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the single result of a Request.
type Outcome struct {
	Status Status
	// Address is set on success. A ReattachmentTimeout failure carries the
	// address that was polled.
	Address Address
	// AlreadySwitched is set on success when no switch command was needed.
	AlreadySwitched bool
	// Reason and Detail are set on failure.
	Reason bridge.Kind
	Detail string
}

// Success returns a Succeeded outcome.
func Success(addr Address) Outcome {
	return Outcome{Status: StatusSucceeded, Address: addr}
}

// Cancel returns a Cancelled outcome.
func Cancel() Outcome {
	return Outcome{Status: StatusCancelled}
}

// Failure returns a Failed outcome.
func Failure(reason bridge.Kind, detail string) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, Detail: detail}
}

func failureFrom(err error) Outcome {
	return Failure(bridge.KindOf(err), err.Error())
}

// Err returns nil unless the outcome is a failure.
func (o Outcome) Err() error {
	if o.Status != StatusFailed {
		return nil
	}
	return &bridge.Error{Kind: o.Reason, Detail: o.Detail}
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusSucceeded:
		return "succeeded: " + o.Address.String()
	case StatusFailed:
		return fmt.Sprintf("failed (%s): %s", o.Reason, o.Detail)
	default:
		return o.Status.String()
	}
}

// ProgressSink receives progress updates and is asked for cancellation at
// every checkpoint. Implementations must be safe to call from the worker
// goroutine running the orchestrator.
type ProgressSink interface {
	Progress(percent int, status string)
	Canceled() bool
}

type nopSink struct{}

func (nopSink) Progress(int, string) {}
func (nopSink) Canceled() bool       { return false }
