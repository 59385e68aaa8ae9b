// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/playforge/httpx/request"
	"github.com/playforge/httpx/transient"
)

// A Decider decides if a retry should be done.
//
// Implementations of Decider must be safe for concurrent use by
// multiple goroutines.
//
// Use the built-in constructors Times, StatusCode, and Before, and the
// built-in decider TransientErr; or implement your own Decider. Use
// DeciderFunc to convert an ordinary function into a Decider, and to
// compose deciders logically using DeciderFunc.And and DeciderFunc.Or.
type Decider interface {
	Decide(a *Attempt) bool
}

// The DeciderFunc type is an adapter to allow the use of ordinary
// functions as retry deciders. It implements the Decider interface, and
// also provides the logical composition methods And and Or.
//
// Every DeciderFunc must be safe for concurrent use by multiple
// goroutines.
type DeciderFunc func(a *Attempt) bool

// DefaultTimes is the number of times DefaultPolicy will retry.
const DefaultTimes = 5

// DefaultDecider is a general-purpose retry decider suitable for
// common use cases. It will allow up to DefaultTimes retries, and will
// retry in the case of a transient error (TransientErr) or if a valid
// HTTP response is received but it contains one of the following
// status codes: 429 (Too Many Requests); 502 (Bad Gateway); 503
// (Service Unavailable); or 504 (Gateway Timeout).
var DefaultDecider = Times(DefaultTimes).And(StatusCode(429, 502, 503, 504).Or(TransientErr))

// TransientErr is a decider that indicates a retry if the attempt's
// error (Attempt.Err) is classified as transient by
// transient.Categorize, whatever the attempt's status.
//
// TransientErr only looks at the error, so it returns false for an
// attempt that produced a valid HTTP response and no error.
var TransientErr DeciderFunc = transientErr

// Decide returns true if a retry should be done, and false otherwise.
func (f DeciderFunc) Decide(a *Attempt) bool {
	return f(a)
}

// And composes two retry deciders into a new decider which returns true
// if both sub-deciders return true, and false otherwise.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(a *Attempt) bool {
		return f(a) && g(a)
	}
}

// Or composes two retry deciders into a new decider which returns
// true if either of the two sub-deciders returns true, but false if
// they both return false.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(a *Attempt) bool {
		return f(a) || g(a)
	}
}

// Times constructs a retry decider which allows up to n retries. The
// returned decider returns true while a.Count is less than n, and
// false otherwise.
func Times(n int) DeciderFunc {
	return func(a *Attempt) bool {
		return a.Count < n
	}
}

// Before constructs a retry decider allowing retries until a certain
// amount of time has elapsed since the entry's first attempt. The
// returned decider returns true while a.Duration() is less than d,
// and false afterward.
func Before(d time.Duration) DeciderFunc {
	return func(a *Attempt) bool {
		return a.Duration() < d
	}
}

// StatusCode constructs a retry decider allowing retries based on the
// HTTP response status code. If the just-finished attempt received a
// valid HTTP response with a status code in ss, the decider returns
// true. Otherwise, it returns false.
func StatusCode(ss ...int) DeciderFunc {
	ss2 := make([]int, len(ss))
	copy(ss2, ss)
	return func(a *Attempt) bool {
		for _, s := range ss2 {
			if a.StatusCode() == s {
				return true
			}
		}
		return false
	}
}

func transientErr(a *Attempt) bool {
	return transient.Categorize(a.Err) != transient.Not
}

// ShouldRetryDecider builds the default retry-worthiness check: a
// connection error is always retry-worthy; a mid-stream failure is
// retry-worthy only if its verb is GET or HEAD (when verbs is empty)
// or is contained in verbs; a successful attempt is retry-worthy only
// if its response code is contained in codes.
func ShouldRetryDecider(codes map[int]bool, verbs map[string]bool) DeciderFunc {
	return func(a *Attempt) bool {
		switch a.Status {
		case request.FailedConnectionError:
			return true
		case request.Failed:
			verb := a.Request.Verb()
			if len(verbs) == 0 {
				return verb == "GET" || verb == "HEAD"
			}
			return verbs[verb]
		case request.Succeeded:
			if a.Response == nil {
				return false
			}
			return codes[a.Response.Code()]
		default:
			return false
		}
	}
}

// CanRetryDecider builds the default retry-budget check: if no retry
// limit is configured at all (hasMax false), retries are never
// allowed; otherwise retries are allowed while fewer than max have
// already been made.
func CanRetryDecider(max int, hasMax bool) DeciderFunc {
	return func(a *Attempt) bool {
		if !hasMax {
			return false
		}
		return a.Count < max
	}
}
