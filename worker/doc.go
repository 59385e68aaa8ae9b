// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package worker implements the dedicated I/O worker that drives
in-flight request attempts to completion.

The worker holds three queues: new requests awaiting admission,
cancellations awaiting action, and completed requests awaiting
finalization by the manager. Requests admitted from the ready set into
the running set each get their own goroutine, which blocks in a
transport.Transport.Do call until the attempt finishes or its timeout
context is cancelled.

Admission is throttled two ways: a concurrency cap (at most N attempts
running at once) and, optionally, one or more sliding-window rate
limits ("at most N per period" accounting) plus a token-bucket
limiter for smooth steady-state pacing.

In threaded mode, Run drives the tick loop on its own goroutine,
sleeping between passes according to an active/idle pacing budget. In
cooperative mode (no real background thread available), the owning
manager calls Tick directly from its own Tick.
*/
package worker
