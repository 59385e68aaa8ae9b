// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/playforge/httpx/request"
	"github.com/playforge/httpx/timeout"
	"github.com/playforge/httpx/transient"
	"github.com/playforge/httpx/transport"
)

// Options configures a Worker.
type Options struct {
	// Transport sends each admitted request attempt. Required.
	Transport transport.Transport

	// TimeoutPolicy decides each request's total and inactivity
	// budgets. If nil, timeout.DefaultPolicy is used.
	TimeoutPolicy timeout.Policy

	// Concurrency bounds the number of attempts running at once. Zero
	// means 1.
	Concurrency int

	// RateLimit, if non-nil, is a token-bucket limiter applied to
	// admission in addition to Concurrency and Limits.
	RateLimit *rate.Limiter

	// Limits are sliding-window admission budgets, e.g. "at most 16
	// new connections per 100ms", checked in addition to Concurrency
	// and RateLimit.
	Limits []Limit

	// ActiveBudget is the target wall-clock time for one pass of the
	// tick loop while there is work in flight or ready.
	ActiveBudget time.Duration

	// IdleBudget is the target sleep between passes when there is no
	// work at all.
	IdleBudget time.Duration

	// MinSleep floors the sleep between passes regardless of budget,
	// so a threaded worker never busy-loops.
	MinSleep time.Duration

	// InactivityPollInterval controls how often a running attempt's
	// last-activity time is checked against its inactivity budget.
	// Zero selects a default of 50ms.
	InactivityPollInterval time.Duration

	// DelayTime is an extra minimum wall-clock time, measured from a
	// request's Started time, that must elapse before its completion
	// is published to the completed channel. Zero means no floor.
	// Intended for exercising pacing-sensitive callers in tests.
	DelayTime time.Duration
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.TimeoutPolicy == nil {
		opts.TimeoutPolicy = timeout.DefaultPolicy
	}
	if opts.ActiveBudget <= 0 {
		opts.ActiveBudget = 10 * time.Millisecond
	}
	if opts.IdleBudget <= 0 {
		opts.IdleBudget = 100 * time.Millisecond
	}
	if opts.MinSleep <= 0 {
		opts.MinSleep = time.Millisecond
	}
	if opts.InactivityPollInterval <= 0 {
		opts.InactivityPollInterval = 50 * time.Millisecond
	}
	return opts
}

// A Worker admits and drives in-flight request attempts. See the
// package doc for the admission and pacing model. A Worker is safe
// for concurrent use: Submit, Cancel, and Completed may be called
// from any goroutine, while Tick/Run must be called from a single
// goroutine at a time (the worker's own, in threaded mode, or the
// manager's, in cooperative mode).
type Worker struct {
	opts Options

	newCh       chan *request.Request
	cancelledCh chan *request.Request
	completedCh chan *request.Request

	// ready and ticket bookkeeping are touched only by the goroutine
	// calling Tick.
	ready  []*request.Request
	limits []limitQueue

	mu      sync.Mutex
	running map[*request.Request]context.CancelFunc
}

// New constructs a Worker. opts.Transport must not be nil.
func New(opts Options) *Worker {
	if opts.Transport == nil {
		panic("httpx/worker: nil Transport")
	}
	opts = opts.withDefaults()
	limits := make([]limitQueue, len(opts.Limits))
	for i, l := range opts.Limits {
		limits[i] = newLimitQueue(l.Period, l.MaxAdmissions)
	}
	return &Worker{
		opts:        opts,
		newCh:       make(chan *request.Request, 1024),
		cancelledCh: make(chan *request.Request, 1024),
		completedCh: make(chan *request.Request, 1024),
		limits:      limits,
		running:     make(map[*request.Request]context.CancelFunc),
	}
}

// Submit enqueues r for admission. It never blocks for long (the new
// queue is a large buffered channel) and is safe to call from any
// goroutine.
func (w *Worker) Submit(r *request.Request) {
	w.newCh <- r
}

// CancelRequest enqueues a cancellation for r. It is safe to call
// from any goroutine, and a no-op if r was never submitted to this
// Worker.
func (w *Worker) CancelRequest(r *request.Request) {
	w.cancelledCh <- r
}

// Completed returns the channel the manager drains to learn about
// terminated requests.
func (w *Worker) Completed() <-chan *request.Request {
	return w.completedCh
}

// Run drives the tick loop on the calling goroutine until ctx is
// done, pacing itself according to opts.ActiveBudget/IdleBudget. Run
// is the threaded-mode entry point; callers in cooperative mode
// should call Tick directly instead.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		start := time.Now()
		w.Tick()
		busy := len(w.ready) > 0 || w.runningCount() > 0
		budget := w.opts.IdleBudget
		if busy {
			budget = w.opts.ActiveBudget
		}
		sleep := budget - time.Since(start)
		if sleep < w.opts.MinSleep {
			sleep = w.opts.MinSleep
		}
		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// AttemptStatus classifies the outcome of one transport attempt into
// the request's terminal status. An attempt on a request whose
// Cancelled flag is set, or one whose error is categorized as a
// timeout, is Failed, whatever phase it died in; a context
// cancellation without that flag is classified like any other error.
// Otherwise an error before any response
// bytes arrived is FailedConnectionError; an error after that is
// Failed. A clean transport result is Succeeded, except that a
// response code <= 0 on an http(s) URL means the transport never
// actually delivered a valid response, which is also Failed.
func AttemptStatus(r *request.Request, err error) request.Status {
	if err == nil {
		resp := r.Response()
		if resp != nil && resp.Code() > 0 {
			return request.Succeeded
		}
		if u := r.URL(); u != nil && (u.Scheme == "http" || u.Scheme == "https") {
			return request.Failed
		}
		return request.Succeeded
	}
	if r.Cancelled() {
		return request.Failed
	}
	if transient.Categorize(err) == transient.Timeout {
		return request.Failed
	}
	if r.Response() == nil {
		return request.FailedConnectionError
	}
	return request.Failed
}

// Tick performs one pass: draining the new and cancelled queues, then
// admitting as many ready requests into the running set as the
// concurrency cap and rate limits allow.
func (w *Worker) Tick() {
	w.drainNew()
	w.drainCancelled()
	w.admit()
}

func (w *Worker) drainNew() {
	for {
		select {
		case r := <-w.newCh:
			w.ready = append(w.ready, r)
		default:
			return
		}
	}
}

func (w *Worker) drainCancelled() {
	for {
		select {
		case r := <-w.cancelledCh:
			w.handleCancel(r)
		default:
			return
		}
	}
}

func (w *Worker) handleCancel(r *request.Request) {
	w.mu.Lock()
	cancel, running := w.running[r]
	w.mu.Unlock()
	if running {
		cancel()
		return
	}
	for i, candidate := range w.ready {
		if candidate == r {
			w.ready = append(w.ready[:i], w.ready[i+1:]...)
			r.SetTerminal(request.Failed)
			w.completedCh <- r
			return
		}
	}
}

func (w *Worker) runningCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.running)
}

func (w *Worker) admit() {
	for len(w.ready) > 0 {
		if !w.allow() {
			return
		}
		r := w.ready[0]
		w.ready = w.ready[1:]
		w.start(r)
	}
}

func (w *Worker) allow() bool {
	if w.runningCount() >= w.opts.Concurrency {
		return false
	}
	if w.opts.RateLimit != nil && !w.opts.RateLimit.Allow() {
		return false
	}
	now := time.Now()
	for i := range w.limits {
		if !w.limits[i].accept(&now) {
			return false
		}
	}
	return true
}

func (w *Worker) start(r *request.Request) {
	total := w.opts.TimeoutPolicy.Total(r)
	deadline := time.Now().Add(total)
	if s := r.Started(); !s.IsZero() {
		deadline = s.Add(total)
	}
	ctx, cancel := context.WithDeadline(context.Background(), deadline)

	w.mu.Lock()
	w.running[r] = cancel
	w.mu.Unlock()

	go w.runAttempt(ctx, cancel, r)
}

// errInactivityTimeout is the cancellation cause recorded when a
// running attempt exceeds its inactivity budget. It reports
// Timeout() true so that AttemptStatus classifies it as Failed
// rather than FailedConnectionError.
var errInactivityTimeout error = inactivityError{}

type inactivityError struct{}

func (inactivityError) Error() string { return "httpx/worker: inactivity timeout exceeded" }

func (inactivityError) Timeout() bool { return true }

func (w *Worker) runAttempt(ctx context.Context, cancel context.CancelFunc, r *request.Request) {
	inactivity := w.opts.TimeoutPolicy.Inactivity(r)
	done := make(chan struct{})
	attemptCtx := ctx
	var inactivityCancel context.CancelCauseFunc
	if inactivity > 0 {
		attemptCtx, inactivityCancel = context.WithCancelCause(ctx)
		go w.watchInactivity(attemptCtx, r, inactivity, inactivityCancel, done)
	}

	err := w.opts.Transport.Do(attemptCtx, r)

	close(done)
	if inactivityCancel != nil {
		if err != nil && errors.Is(context.Cause(attemptCtx), errInactivityTimeout) {
			err = errInactivityTimeout
		}
		inactivityCancel(nil)
	}
	cancel()

	w.mu.Lock()
	delete(w.running, r)
	w.mu.Unlock()

	w.finish(r, err)
}

func (w *Worker) watchInactivity(ctx context.Context, r *request.Request, budget time.Duration, cancel context.CancelCauseFunc, done <-chan struct{}) {
	ticker := time.NewTicker(w.opts.InactivityPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(r.LastActivity()) >= budget {
				cancel(errInactivityTimeout)
				return
			}
		}
	}
}

func (w *Worker) finish(r *request.Request, err error) {
	r.SetLastError(err)
	r.SetTerminal(AttemptStatus(r, err))
	if w.opts.DelayTime > 0 {
		if remain := w.opts.DelayTime - time.Since(r.Started()); remain > 0 {
			time.Sleep(remain)
		}
	}
	w.completedCh <- r
}
