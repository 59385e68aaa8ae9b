// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/playforge/httpx/request"
)

// An Attempt is the snapshot of a retry-wrapped request passed to a
// Decider or Waiter after one of its attempts reaches a terminal
// status.
type Attempt struct {
	// Request is the underlying request that just finished an
	// attempt.
	Request *request.Request
	// Response is the response of the just-finished attempt, or nil
	// if it ended in a connection error.
	Response *request.Response
	// Status is the terminal status of the just-finished attempt.
	Status request.Status
	// Err is the error that caused the attempt to end in
	// FailedConnectionError or Failed, or nil for a successful
	// attempt.
	Err error
	// Count is the number of retries already performed for this
	// entry, before this attempt. The first attempt has Count 0.
	Count int
	// Started is when the retry-wrapped entry was first processed.
	Started time.Time
	// Domains is the failover domain set configured for this entry,
	// or nil if none was configured.
	Domains *Domains
}

// Duration returns the time elapsed since the entry's first attempt.
func (a *Attempt) Duration() time.Duration {
	if a.Started.IsZero() {
		return 0
	}
	return time.Since(a.Started)
}

// StatusCode returns the response status code of the just-finished
// attempt, or 0 if it ended in a connection error.
func (a *Attempt) StatusCode() int {
	if a.Response == nil {
		return 0
	}
	return a.Response.Code()
}
