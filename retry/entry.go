// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playforge/httpx/request"
	"github.com/playforge/httpx/transient"
)

// EntryStatus is the state of a retry-wrapped request as tracked by a
// Manager, distinct from the underlying request.Status of whichever
// attempt is currently in flight or just finished.
type EntryStatus int

const (
	NotStarted EntryStatus = iota
	Processing
	ProcessingLockout
	Cancelled
	FailedRetry
	FailedTimeout
	Succeeded
)

var entryStatusNames = []string{
	"NotStarted",
	"Processing",
	"ProcessingLockout",
	"Cancelled",
	"FailedRetry",
	"FailedTimeout",
	"Succeeded",
}

func (s EntryStatus) String() string {
	if int(s) < 0 || int(s) >= len(entryStatusNames) {
		return "Unknown"
	}
	return entryStatusNames[s]
}

// Terminal reports whether s is one of the final outcomes a Manager
// stops tracking an entry at.
func (s EntryStatus) Terminal() bool {
	switch s {
	case Cancelled, FailedRetry, FailedTimeout, Succeeded:
		return true
	default:
		return false
	}
}

// Overrides configures how a Manager retries one particular request,
// falling back to the Manager's own defaults for any zero-valued
// field.
type Overrides struct {
	// Policy, if non-nil, entirely replaces the decider/waiter pair
	// the Manager would otherwise build from ResponseCodes, Verbs,
	// MaxRetries, and HasMaxRetries.
	Policy Policy

	// ResponseCodes are the status codes, beyond the usual connection
	// and mid-stream failures, that are worth retrying.
	ResponseCodes map[int]bool
	// Verbs restricts which HTTP verbs are retried after a mid-stream
	// failure. If empty, GET and HEAD are retried by default.
	Verbs map[string]bool

	// MaxRetries and HasMaxRetries bound the number of retries. If
	// HasMaxRetries is false, the Manager's own default is used, and
	// if the Manager has no default either, the entry is never
	// retried.
	MaxRetries    int
	HasMaxRetries bool

	// RetryTimeout and HasRetryTimeout bound the wall-clock time an
	// entry may spend retrying, measured from its first attempt. If
	// HasRetryTimeout is false, the Manager's own default is used.
	RetryTimeout    time.Duration
	HasRetryTimeout bool

	// Domains, if non-nil, fails connection errors over across a
	// shared set of equivalent hostnames.
	Domains *Domains
}

// Entry tracks one request through a Manager's retry loop. It is
// returned by Manager.CreateRequest and is safe for concurrent use:
// Cancel and the exported getters may be called from any goroutine,
// while the Manager's own Update calls are the only writer of the
// entry's retry state.
type Entry struct {
	request *request.Request

	policy          Policy
	hasRetryTimeout bool
	retryTimeout    time.Duration

	domains     *Domains
	domainIndex int32
	originalURL *url.URL

	mu         sync.Mutex
	status     EntryStatus
	count      int
	started    time.Time
	lockoutEnd time.Time

	cancelRequested atomic.Bool
}

// Request returns the underlying request being retried.
func (e *Entry) Request() *request.Request {
	return e.request
}

// Status returns the entry's current retry state.
func (e *Entry) Status() EntryStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Count returns the number of retries performed so far.
func (e *Entry) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// Cancel requests that the entry stop retrying and cancels whichever
// attempt is currently in flight.
func (e *Entry) Cancel() {
	e.cancelRequested.Store(true)
	e.request.Cancel()
}

// currentURL returns the request's original URL rewritten onto the
// domain at domainIndex, or the original URL unchanged if no Domains
// is configured.
func (e *Entry) currentURL() *url.URL {
	if e.domains == nil {
		return e.originalURL
	}
	return withHost(e.originalURL, e.domains.Host(e.domainIndex))
}

func withHost(u *url.URL, host string) *url.URL {
	cp := *u
	cp.Host = host
	return &cp
}

// shouldFailOver reports whether a connect-phase failure warrants
// advancing to the next failover domain. A refused or reset
// connection (transient.Category.ConnectPhase) indicates a dead or
// restarting host, so the next domain is tried, as does an error with
// no finer classification, since the request status already
// identifies a connect-phase failure. A client-side timeout says
// nothing about the host being gone, and an aborted connection died
// after connecting, so neither advances the domain.
func shouldFailOver(err error) bool {
	cat := transient.Categorize(err)
	return cat == transient.Not || cat.ConnectPhase()
}

// attempt snapshots the entry and its just-finished request status
// into an Attempt for consultation by the entry's Policy.
func (e *Entry) attempt(status request.Status) *Attempt {
	return &Attempt{
		Request:  e.request,
		Response: e.request.Response(),
		Status:   status,
		Err:      e.request.LastError(),
		Count:    e.count,
		Started:  e.started,
		Domains:  e.domains,
	}
}

// update advances the entry by one tick and reports whether it should
// count against the Manager's "all green" signal, and whether it has
// reached a terminal EntryStatus (in which case the Manager removes
// it after this call). forceRetry treats even a Succeeded attempt as
// retry-worthy, bypassing the retry budget; it backs the Manager's
// simulated failure rate.
func (e *Entry) update(now time.Time, forceRetry bool) (green, completed bool) {
	e.mu.Lock()

	green = true
	r := e.request
	reqStatus := r.Status()

	var willRetryWait time.Duration
	willRetry := false

	switch {
	case e.cancelRequested.Load():
		e.status = Cancelled
	case e.hasRetryTimeout && now.Sub(e.started) >= e.retryTimeout:
		green = false
		e.status = FailedTimeout
		r.Cancel()
		r.SetTerminal(request.Failed)
	default:
		if e.status == NotStarted && reqStatus != request.NotStarted {
			e.status = Processing
		}

		if e.status == Processing {
			if reqStatus == request.FailedConnectionError && e.domains != nil && shouldFailOver(r.LastError()) {
				e.domainIndex = e.domains.advance(e.domainIndex)
			}

			var retryWorthy bool
			if reqStatus == request.Failed || reqStatus == request.FailedConnectionError || reqStatus == request.Succeeded {
				retryWorthy = e.policy.Decide(e.attempt(reqStatus))
			}
			if forceRetry && reqStatus == request.Succeeded {
				retryWorthy = true
			}

			switch {
			case reqStatus == request.Failed || reqStatus == request.FailedConnectionError || retryWorthy:
				green = false
				if retryWorthy {
					wait := e.policy.Wait(e.attempt(reqStatus))
					e.lockoutEnd = now.Add(wait)
					e.status = ProcessingLockout
					willRetry, willRetryWait = true, wait
				} else {
					e.status = FailedRetry
				}
			case reqStatus == request.Succeeded:
				e.status = Succeeded
			}
		} else if e.status == ProcessingLockout {
			green = false
			if !now.Before(e.lockoutEnd) {
				r.ResetForRetry(e.currentURL())
				if r.Process() {
					e.count++
					e.status = Processing
				}
			}
		}
	}

	completed = e.status.Terminal()
	e.mu.Unlock()

	// Callbacks fire outside the entry lock, so that a callback which
	// reads back the entry (Status, Count) cannot deadlock. Queued
	// header/progress events are delivered before the completion, so
	// completion remains the last event the request fires.
	if willRetry {
		r.FireWillRetry(willRetryWait)
	}
	if completed {
		r.Tick(0)
		r.FireComplete()
	}
	return green, completed
}
