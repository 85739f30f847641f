package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// errIdle is the cancellation cause when a stream stays silent too long.
var errIdle = fmt.Errorf("no data received within the stream timeout: %w", context.DeadlineExceeded)

// deadline cancels a call when its timer fires. Before the response headers
// arrive it bounds time to first byte; afterwards idleReader re-arms it around
// every body read, turning it into an inactivity timeout.
type deadline struct {
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelCauseFunc
}

func newDeadline(timeout time.Duration, cancel context.CancelCauseFunc) *deadline {
	d := &deadline{timeout: timeout, cancel: cancel}
	if timeout > 0 {
		d.timer = time.AfterFunc(timeout, func() { cancel(errIdle) })
	}
	return d
}

func (d *deadline) arm() {
	if d.timer != nil {
		d.timer.Reset(d.timeout)
	}
}

func (d *deadline) disarm() {
	if d.timer != nil {
		d.timer.Stop()
	}
}

// idleReader measures only the time spent waiting on the server, so a slow
// consumer does not trip the timeout.
type idleReader struct {
	r   io.ReadCloser
	ctx context.Context
	d   *deadline
}

func (r *idleReader) Read(p []byte) (int, error) {
	r.d.arm()
	n, err := r.r.Read(p)
	r.d.disarm()
	if err != nil && err != io.EOF && errors.Is(context.Cause(r.ctx), errIdle) {
		return n, errIdle
	}
	return n, err
}

func (r *idleReader) Close() error {
	r.d.disarm()
	return r.r.Close()
}
