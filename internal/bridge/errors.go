package bridge

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of a device or network step.
type Kind int

const (
	// KindNone is the kind of a nil error.
	KindNone Kind = iota
	DeviceUnavailable
	PermissionDenied
	MalformedResponse
	// Timeout means the device did not acknowledge a command in time.
	Timeout
	// ReattachmentTimeout means the switch was sent but the device never
	// became reachable over the network.
	ReattachmentTimeout
	BridgeError
	Cancelled
	InvalidRequest
)

var kindNames = map[Kind]string{
	KindNone:            "none",
	DeviceUnavailable:   "device unavailable",
	PermissionDenied:    "permission denied",
	MalformedResponse:   "malformed response",
	Timeout:             "timeout",
	ReattachmentTimeout: "reattachment timeout",
	BridgeError:         "bridge error",
	Cancelled:           "cancelled",
	InvalidRequest:      "invalid request",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure. Op names the step that failed, Detail is a
// human readable explanation and Err is the underlying cause, if any.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf returns an *Error of the given kind with a formatted detail.
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. It returns nil if err is nil.
func Wrap(err error, kind Kind, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
// Unclassified errors are BridgeError.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return BridgeError
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
