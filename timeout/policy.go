// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"time"

	"github.com/playforge/httpx/request"
)

// A Policy defines the timeout behavior applied to requests driven by
// the manager and I/O worker.
//
// Implementations of Policy must be safe for concurrent use by
// multiple goroutines.
type Policy interface {
	// Total returns the total wall-clock budget for r, measured from
	// the moment Process transitions it to Processing. Exceeding this
	// budget fails the request with Failed.
	Total(r *request.Request) time.Duration

	// Inactivity returns the maximum time r may go without any
	// transport activity (response header, progress, or body event)
	// before it is failed with Failed. Zero means no inactivity
	// bound is enforced.
	Inactivity(r *request.Request) time.Duration
}

// DefaultPolicy is the default timeout policy: a 300 second total
// budget and no inactivity bound.
var DefaultPolicy Policy = Fixed(300*time.Second, 0)

// Infinite is a built-in timeout policy which never times out.
var Infinite Policy = Fixed(1<<63-1, 0)

// Fixed constructs a timeout policy that applies the same total and
// inactivity budget to every request.
func Fixed(total, inactivity time.Duration) Policy {
	return fixed{total: total, inactivity: inactivity}
}

type fixed struct {
	total      time.Duration
	inactivity time.Duration
}

func (f fixed) Total(_ *request.Request) time.Duration {
	return f.total
}

func (f fixed) Inactivity(_ *request.Request) time.Duration {
	return f.inactivity
}

// WithOverride wraps base so that a request's own SetTimeout override
// (request.Request.Timeout) takes precedence over base's Total for
// that request; Inactivity is always deferred to base.
func WithOverride(base Policy) Policy {
	return overridable{base: base}
}

type overridable struct {
	base Policy
}

func (o overridable) Total(r *request.Request) time.Duration {
	if d, ok := r.Timeout(); ok {
		return d
	}
	return o.base.Total(r)
}

func (o overridable) Inactivity(r *request.Request) time.Duration {
	return o.base.Inactivity(r)
}
