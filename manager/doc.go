// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package manager implements the process-wide HTTP manager: a registry
of live requests, a main-thread tick that drains background events and
publishes completions, a bounded flush protocol for lifecycle
boundaries, a domain allow-list, and at most one I/O worker.

A Manager implements request.Handle, so any Request bound to it via
Manager.NewRequest routes its Process/Cancel calls back here. A
Request registered directly with AddRequest/AddThreadedRequest is not
bound by that call.
Everything the manager does to a Request, besides accepting Submit and
CancelRequest calls from any goroutine, happens on the single goroutine
that calls Tick - normally the application's main loop.

Retry-wrapped requests are created with CreateRetriedRequest, which
hands the request to a *retry.Manager the Manager owns internally and
drives from Tick. The manager's own registry still tracks the
underlying request (so Flush can cancel it), but defers firing its
completion callback and removing it from the registry to the retry
Entry, which only does so once the retry sequence reaches a terminal
EntryStatus.
*/
package manager
