// Package report turns a finished switch attempt into user output and
// records it.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"github.com/FluidXR/untether/internal/bridge"
	"github.com/FluidXR/untether/internal/history"
	"github.com/FluidXR/untether/internal/telemetry"
	"github.com/FluidXR/untether/internal/wireless"
)

// Recorder stores finished attempts.
type Recorder interface {
	Record(history.Attempt) (int64, error)
}

// Attempt is a finished run as seen by the caller.
type Attempt struct {
	Serial    string
	Requested wireless.Address
	Outcome   wireless.Outcome
	Started   time.Time
	Finished  time.Time
}

// Reporter prints outcomes. History and Telemetry are optional.
type Reporter struct {
	Out       io.Writer
	History   Recorder
	Telemetry telemetry.Client
	Version   string
}

// Report prints the outcome of a and records it. It returns a non-nil error
// only for failed attempts; a cancelled attempt prints nothing.
func (r *Reporter) Report(ctx context.Context, a Attempt) error {
	out := a.Outcome
	if r.History != nil {
		if _, err := r.History.Record(history.FromOutcome(a.Serial, a.Requested, out, a.Started, a.Finished)); err != nil {
			logging.Warningf(ctx, "Failed to record attempt: %s", err)
		}
	}

	switch out.Status {
	case wireless.StatusSucceeded:
		if out.AlreadySwitched {
			fmt.Fprintf(r.Out, "✓ %s is already in TCP/IP mode at %s\n", a.Serial, out.Address)
		} else {
			fmt.Fprintf(r.Out, "✓ %s is now reachable at %s\n", a.Serial, out.Address)
		}
		fmt.Fprintf(r.Out, "  You can unplug the USB cable and use: adb -s %s shell\n", out.Address)
		if r.Telemetry != nil {
			if err := telemetry.TrackSwitch(r.Telemetry, out, a.Finished.Sub(a.Started), r.Version); err != nil {
				logging.Debugf(ctx, "Failed to enqueue switch event: %s", err)
			}
		}
		return nil

	case wireless.StatusCancelled:
		return nil
	}

	switch out.Reason {
	case bridge.ReattachmentTimeout:
		fmt.Fprintf(r.Out, "✗ %s switched to TCP/IP but could not be reached", a.Serial)
		addr := out.Address
		if addr.Host == "" {
			addr = a.Requested
		}
		if addr.Host != "" {
			fmt.Fprintf(r.Out, " at %s", addr)
		}
		fmt.Fprintln(r.Out, ".")
		fmt.Fprintln(r.Out, "  Make sure the device and this computer are on the same Wi-Fi network.")
		fmt.Fprintln(r.Out, "  The device stays in TCP/IP mode until it reboots or you run: adb usb")
	case bridge.PermissionDenied:
		fmt.Fprintf(r.Out, "✗ %s refused the switch. Accept the USB debugging prompt on the device and retry.\n", a.Serial)
	case bridge.DeviceUnavailable:
		fmt.Fprintf(r.Out, "✗ %s is not available. Check the USB cable and run: untether devices\n", a.Serial)
	default:
		fmt.Fprintf(r.Out, "✗ Could not switch %s to TCP/IP.\n", a.Serial)
	}
	return errors.Annotate(out.Err(), "switch %s", a.Serial).Err()
}
