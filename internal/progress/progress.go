// Package progress renders switch progress on a terminal and carries the
// user's cancellation request back to the orchestrator.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"

	"github.com/FluidXR/untether/internal/wireless"
)

// Sink is a wireless.ProgressSink that can be cancelled by the user and
// must be finished once the run is over.
type Sink interface {
	wireless.ProgressSink
	Cancel()
	Finish()
}

// Canceler records a cooperative cancellation request.
type Canceler struct {
	canceled atomic.Bool
}

// Cancel requests cancellation. It is safe to call more than once.
func (c *Canceler) Cancel() {
	c.canceled.Store(true)
}

// Canceled reports whether Cancel has been called.
func (c *Canceler) Canceled() bool {
	return c.canceled.Load()
}

// ForFile returns a bar sink when f is a terminal and plain is false, and a
// line sink otherwise.
func ForFile(f *os.File, plain bool) Sink {
	if !plain && term.IsTerminal(int(f.Fd())) {
		return NewBar(f)
	}
	return NewLines(f)
}

const barTemplate = `{{string . "status"}} {{bar . }} {{percent . }}`

// Bar draws a progress bar with the current status in front of it.
type Bar struct {
	Canceler
	bar *pb.ProgressBar
}

// NewBar starts a bar that writes to w.
func NewBar(w io.Writer) *Bar {
	bar := pb.ProgressBarTemplate(barTemplate).New(100)
	bar.SetWriter(w)
	bar.Set("status", "Starting")
	bar.Start()
	return &Bar{bar: bar}
}

func (b *Bar) Progress(percent int, status string) {
	b.bar.Set("status", status)
	b.bar.SetCurrent(int64(percent))
}

func (b *Bar) Finish() {
	b.bar.Finish()
}

// Lines prints one line per status change. It is used when output is not a
// terminal.
type Lines struct {
	Canceler

	mu   sync.Mutex
	w    io.Writer
	last string
}

// NewLines returns a line sink writing to w.
func NewLines(w io.Writer) *Lines {
	return &Lines{w: w}
}

func (l *Lines) Progress(percent int, status string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if status == l.last {
		return
	}
	l.last = status
	fmt.Fprintf(l.w, "[%3d%%] %s\n", percent, status)
}

func (l *Lines) Finish() {}
