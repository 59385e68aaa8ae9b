// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/playforge/httpx/request"
)

const (
	lockoutMinimumSeconds    = 5.0
	lockoutEscalationSeconds = 2.5
	lockoutMaxSeconds        = 30.0
)

// LockoutWaiter returns a Waiter computing the wait before a retry is
// resubmitted.
//
// If the just-finished attempt's response is a 429 or 503 carrying a
// Retry-After or X-Rate-Limit-Reset header, the wait it specifies is
// used; these headers are ignored on any other status. Otherwise,
// starting from the second retry, an escalating backoff of 5 seconds
// plus 2.5 seconds per additional retry (capped at 30 seconds) is
// used, unless the attempt was a connection error and a Domains
// failover set is configured, in which case no lockout is applied at
// all and the next domain is tried immediately.
func LockoutWaiter() Waiter {
	return lockoutWaiter{}
}

type lockoutWaiter struct{}

func (lockoutWaiter) Wait(a *Attempt) time.Duration {
	seconds := 0.0
	if v, ok := readThrottledSeconds(a.Response); ok {
		seconds = v
	}
	if a.Count >= 1 && seconds <= 0 {
		skip := a.Status == request.FailedConnectionError && a.Domains != nil
		if !skip {
			seconds = lockoutMinimumSeconds + lockoutEscalationSeconds*float64(a.Count-1)
			if seconds > lockoutMaxSeconds {
				seconds = lockoutMaxSeconds
			}
		}
	}
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// readThrottledSeconds reads the number of seconds a throttled
// response asks the caller to wait, from either the Retry-After or
// X-Rate-Limit-Reset header. It only consults these headers for 429
// (Too Many Requests) and 503 (Service Unavailable) responses.
func readThrottledSeconds(resp *request.Response) (float64, bool) {
	if resp == nil {
		return 0, false
	}
	code := resp.Code()
	if code != http.StatusTooManyRequests && code != http.StatusServiceUnavailable {
		return 0, false
	}

	if ra := resp.Header().Get("Retry-After"); ra != "" {
		if n, err := strconv.ParseFloat(ra, 64); err == nil {
			return n, true
		}
		if t, err := http.ParseTime(ra); err == nil {
			return time.Until(t).Seconds(), true
		}
		return 0, false
	}

	if rl := resp.Header().Get("X-Rate-Limit-Reset"); rl != "" {
		if unix, err := strconv.ParseInt(rl, 10, 64); err == nil {
			return time.Until(time.Unix(unix, 0)).Seconds(), true
		}
	}

	return 0, false
}
