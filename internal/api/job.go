package api

import (
	"context"

	"github.com/castlab/enginerelay/internal/engine"
)

// resultBuffer is how many result lines may be pending before a submitting
// provider blocks on a slow requester.
const resultBuffer = 4

// Job is the handle a sanitized work item travels in: deposited into the
// hub, handed to a provider, tracked in the ongoing registry, and finally
// drained by the requester's open connection.
type Job struct {
	work engine.Work
	eng  engine.Engine

	// ctx is the submitting request's context; its lifetime is the
	// requester's liveness signal observed by the sweeps.
	ctx   context.Context
	lines chan []byte
}

func newJob(ctx context.Context, work engine.Work, eng engine.Engine) *Job {
	return &Job{
		work:  work,
		eng:   eng,
		ctx:   ctx,
		lines: make(chan []byte, resultBuffer),
	}
}

// IsAlive reports whether the original requester is still connected.
func (j *Job) IsAlive() bool {
	return j.ctx.Err() == nil
}

// Work returns the canonical work payload.
func (j *Job) Work() engine.Work { return j.work }

// Engine returns the capability record of the engine the job is addressed to.
func (j *Job) Engine() engine.Engine { return j.eng }

// Lines is the requester-facing stream of result lines. It is closed when
// the provider finishes submitting.
func (j *Job) Lines() <-chan []byte { return j.lines }

// Send forwards one result line toward the requester, reporting false once
// the requester is gone.
func (j *Job) Send(line []byte) bool {
	select {
	case j.lines <- line:
		return true
	case <-j.ctx.Done():
		return false
	}
}

// Close ends the result stream. Only the result submitter calls this, and
// tracker removal guarantees there is exactly one.
func (j *Job) Close() {
	close(j.lines)
}
