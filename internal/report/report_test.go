package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	segment "github.com/segmentio/analytics-go/v3"
	"github.com/stretchr/testify/require"

	"github.com/FluidXR/untether/internal/bridge"
	"github.com/FluidXR/untether/internal/history"
	"github.com/FluidXR/untether/internal/wireless"
)

type fakeRecorder struct {
	attempts []history.Attempt
	err      error
}

func (f *fakeRecorder) Record(a history.Attempt) (int64, error) {
	f.attempts = append(f.attempts, a)
	return int64(len(f.attempts)), f.err
}

type fakeTelemetry struct {
	msgs []segment.Message
}

func (f *fakeTelemetry) Enqueue(m segment.Message) error {
	f.msgs = append(f.msgs, m)
	return nil
}
func (f *fakeTelemetry) Close() error { return nil }

var start = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func newReporter() (*Reporter, *bytes.Buffer, *fakeRecorder, *fakeTelemetry) {
	var buf bytes.Buffer
	rec := &fakeRecorder{}
	tel := &fakeTelemetry{}
	return &Reporter{Out: &buf, History: rec, Telemetry: tel, Version: "test"}, &buf, rec, tel
}

func attempt(out wireless.Outcome) Attempt {
	return Attempt{
		Serial:    "ABC",
		Requested: wireless.Address{Host: "10.0.0.5", Port: 5555},
		Outcome:   out,
		Started:   start,
		Finished:  start.Add(4 * time.Second),
	}
}

func TestReportSuccess(t *testing.T) {
	r, buf, rec, tel := newReporter()
	err := r.Report(context.Background(), attempt(wireless.Success(wireless.Address{Host: "10.0.0.5", Port: 5555})))
	require.NoError(t, err)
	require.Contains(t, buf.String(), "ABC is now reachable at 10.0.0.5:5555")
	require.Len(t, rec.attempts, 1)
	require.Equal(t, "succeeded", rec.attempts[0].Status)
	require.Len(t, tel.msgs, 1)
}

func TestReportAlreadySwitched(t *testing.T) {
	r, buf, _, _ := newReporter()
	out := wireless.Success(wireless.Address{Host: "10.0.0.5", Port: 5555})
	out.AlreadySwitched = true
	require.NoError(t, r.Report(context.Background(), attempt(out)))
	require.Contains(t, buf.String(), "already in TCP/IP mode")
}

func TestReportReattachmentTimeoutIsDistinct(t *testing.T) {
	r, buf, rec, tel := newReporter()
	err := r.Report(context.Background(), attempt(wireless.Failure(bridge.ReattachmentTimeout, "not reachable")))
	require.Error(t, err)
	require.Equal(t, bridge.ReattachmentTimeout, bridge.KindOf(err))
	require.Contains(t, buf.String(), "switched to TCP/IP but could not be reached at 10.0.0.5:5555")
	require.Contains(t, buf.String(), "same Wi-Fi network")
	require.Len(t, rec.attempts, 1)
	require.Equal(t, "reattachment timeout", rec.attempts[0].Reason)
	require.Empty(t, tel.msgs)
}

func TestReportReattachmentTimeoutShowsPolledAddress(t *testing.T) {
	r, buf, rec, _ := newReporter()
	out := wireless.Failure(bridge.ReattachmentTimeout, "not reachable")
	out.Address = wireless.Address{Host: "192.168.1.77", Port: 5555}
	a := attempt(out)
	a.Requested = wireless.Address{Port: 5555}

	require.Error(t, r.Report(context.Background(), a))
	require.Contains(t, buf.String(), "could not be reached at 192.168.1.77:5555")
	require.Equal(t, "192.168.1.77", rec.attempts[0].Host)
}

func TestReportRejectedSwitch(t *testing.T) {
	r, buf, _, tel := newReporter()
	err := r.Report(context.Background(), attempt(wireless.Failure(bridge.PermissionDenied, "unauthorized")))
	require.Error(t, err)
	require.Equal(t, bridge.PermissionDenied, bridge.KindOf(err))
	require.Contains(t, err.Error(), "switch ABC")
	require.Contains(t, buf.String(), "refused the switch")
	require.NotContains(t, buf.String(), "could not be reached")
	require.Empty(t, tel.msgs)
}

func TestReportCancelledIsSilent(t *testing.T) {
	r, buf, rec, tel := newReporter()
	require.NoError(t, r.Report(context.Background(), attempt(wireless.Cancel())))
	require.Empty(t, buf.String())
	require.Len(t, rec.attempts, 1)
	require.Equal(t, "cancelled", rec.attempts[0].Status)
	require.Empty(t, tel.msgs)
}

func TestReportHistoryFailureIsNotFatal(t *testing.T) {
	r, _, rec, _ := newReporter()
	rec.err = errors.New("disk full")
	require.NoError(t, r.Report(context.Background(), attempt(wireless.Success(wireless.Address{Host: "10.0.0.5", Port: 5555}))))
}

func TestReportWithoutRecorders(t *testing.T) {
	var buf bytes.Buffer
	r := &Reporter{Out: &buf}
	require.NoError(t, r.Report(context.Background(), attempt(wireless.Success(wireless.Address{Host: "10.0.0.5", Port: 5555}))))
	require.Contains(t, buf.String(), "10.0.0.5:5555")
}
