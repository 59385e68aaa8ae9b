// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry provides flexible policies for retrying failed request
// attempts, how long to wait before retrying, and a Manager that tracks
// a population of retry-wrapped requests through to a terminal outcome.
//
// The interface Policy defines a retry Policy. A Policy instance can be
// constructed using NewPolicy by providing a decision-maker, Decider,
// and a wait time calculator, Waiter, each of which is handed an
// Attempt describing the just-finished attempt of a request:
//
//	decider := retry.Times(3).
//	               And(retry.Before(5 * time.Second)).
//	               And(retry.StatusCode(500).Or(retry.TransientErr))
//	waiter := retry.NewExpWaiter(100*time.Millisecond, 2*time.Second, time.Now())
//	policy := retry.NewPolicy(decider, waiter)
//
// If the built-in functionality is insufficient, fully custom retry
// policies can be created via custom implementations of Decider,
// Waiter, or Policy.
//
// ShouldRetryDecider and CanRetryDecider build the retry-worthiness and
// retry-budget checks used by the engine's own default policy: a
// connection error is always worth retrying, a mid-stream failure is
// worth retrying only for idempotent verbs, and a successful response
// is worth retrying only if its status code is in a configured set.
//
// Manager tracks entries created by CreateRequest, advancing each one
// through its own Update call on every tick: running the request,
// reacting to a terminal status by consulting its Policy, applying a
// lockout period derived from Retry-After/X-Rate-Limit-Reset headers or
// escalating backoff, and failing over across a Domains set on
// connection errors.
package retry
