package wireless

import "context"

// Job is an orchestrator run on its own goroutine.
type Job struct {
	done    chan struct{}
	outcome Outcome
}

// Start runs o on a new goroutine. If onDone is not nil it is called with
// the outcome from that goroutine before Done is closed.
func Start(ctx context.Context, o *Orchestrator, req Request, sink ProgressSink, onDone func(Outcome)) *Job {
	j := &Job{done: make(chan struct{})}
	go func() {
		defer close(j.done)
		j.outcome = o.Run(ctx, req, sink)
		if onDone != nil {
			onDone(j.outcome)
		}
	}()
	return j
}

// Done is closed once the outcome is available.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the run finishes and returns its outcome.
func (j *Job) Wait() Outcome {
	<-j.done
	return j.outcome
}
