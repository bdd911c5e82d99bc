// Package ratelimit provides sliding-window admission control for
// outbound API calls. One Window instance is shared by every caller
// that talks to the same upstream quota.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultMaxRequests is the default quota per window.
	DefaultMaxRequests = 15

	// DefaultWindow is the default sliding-window length.
	DefaultWindow = 10 * time.Second
)

// Status reports the current occupancy of a Window.
type Status struct {
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"` // when the oldest admission ages out; zero if idle
	Waiting   int       `json:"waiting"`
}

// Window admits at most max requests per sliding time span. Requests
// beyond the quota queue in FIFO order until an older admission ages
// out of the window. It does not retry or drop: every admitted caller
// proceeds exactly once.
type Window struct {
	max  int
	span time.Duration

	mu         sync.Mutex
	admissions []time.Time   // timestamps still inside the window, oldest first
	queue      []chan struct{}
	timer      *time.Timer
	now        func() time.Time
}

// New creates a Window admitting max requests per span. Non-positive
// arguments fall back to the defaults.
func New(max int, span time.Duration) *Window {
	if max <= 0 {
		max = DefaultMaxRequests
	}
	if span <= 0 {
		span = DefaultWindow
	}
	return &Window{
		max:  max,
		span: span,
		now:  time.Now,
	}
}

// Acquire blocks until the caller is admitted or ctx is done. Waiters
// are served in arrival order. Cancelling a still-queued waiter
// removes it without consuming a slot.
func (w *Window) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ticket := make(chan struct{})

	w.mu.Lock()
	w.queue = append(w.queue, ticket)
	w.pumpLocked()
	w.mu.Unlock()

	select {
	case <-ticket:
		return nil
	case <-ctx.Done():
		w.mu.Lock()
		if !w.removeLocked(ticket) {
			// Admitted between ctx firing and lock acquisition:
			// give the slot back so cancellation has no side effects.
			if n := len(w.admissions); n > 0 {
				w.admissions = w.admissions[:n-1]
			}
			w.pumpLocked()
		}
		w.mu.Unlock()
		return ctx.Err()
	}
}

// Do admits the request through the window and executes it with client.
func (w *Window) Do(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	if err := w.Acquire(ctx); err != nil {
		return nil, err
	}
	return client.Do(req.WithContext(ctx))
}

// Status reports window occupancy without blocking behind waiters.
func (w *Window) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked()

	s := Status{
		Used:      len(w.admissions),
		Remaining: w.max - len(w.admissions),
		Waiting:   len(w.queue),
	}
	if len(w.admissions) > 0 {
		s.ResetAt = w.admissions[0].Add(w.span)
	}
	return s
}

// Reset clears all recorded admissions and releases queued waiters as
// capacity allows. Intended for tests and administrative use.
func (w *Window) Reset() {
	w.mu.Lock()
	w.admissions = w.admissions[:0]
	w.pumpLocked()
	w.mu.Unlock()
}

// pruneLocked drops admissions that have aged out of the window.
func (w *Window) pruneLocked() {
	cutoff := w.now().Add(-w.span)
	i := 0
	for i < len(w.admissions) && !w.admissions[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.admissions = append(w.admissions[:0], w.admissions[i:]...)
	}
}

// pumpLocked admits queued waiters while capacity remains and arms a
// wakeup timer for the next age-out when the queue is still non-empty.
func (w *Window) pumpLocked() {
	w.pruneLocked()

	for len(w.queue) > 0 && len(w.admissions) < w.max {
		ticket := w.queue[0]
		w.queue = w.queue[1:]
		w.admissions = append(w.admissions, w.now())
		close(ticket)
	}

	if len(w.queue) == 0 || len(w.admissions) == 0 {
		return
	}

	wait := time.Until(w.admissions[0].Add(w.span))
	if wait < 0 {
		wait = 0
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(wait, func() {
		w.mu.Lock()
		w.pumpLocked()
		w.mu.Unlock()
	})
}

// removeLocked removes a still-queued ticket. Returns false if the
// ticket was already admitted.
func (w *Window) removeLocked(ticket chan struct{}) bool {
	for i, t := range w.queue {
		if t == ticket {
			w.queue = append(w.queue[:i], w.queue[i+1:]...)
			return true
		}
	}
	return false
}
