// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package httpx provides the process-wide entry point into an
asynchronous, retry-capable HTTP core: a single Module owns a Config
and a manager.Manager, and every request flows through a
request.Request driven by callbacks rather than a blocking Do call.

Get the process-wide Module and create a request from it:

	mod := httpx.Get()
	r := mod.CreateRequest()
	r.SetVerb("GET")
	r.SetURL("https://www.example.com")
	r.OnComplete(func(r *request.Request, resp *request.Response, ok bool) {
		...
	})
	r.Process()

A Request never blocks the caller. Its callbacks fire from whichever
goroutine calls Module.Manager().Tick, normally the application's main
loop, once per frame:

	for {
		mod.Manager().Tick(dt)
		...
	}

For a request that should retry on transient failure, create it
through the manager's retry integration instead of CreateRequest:

	r, entry, err := mod.Manager().CreateRetriedRequest("GET", url, retry.Overrides{
		Policy: retry.DefaultPolicy,
	})

Package request defines the Request/Response/Status types. Package
manager implements the registry, main-thread tick, flush protocol, and
domain allow-list. Package worker implements the I/O admission and
pacing loop. Package retry implements the retry decision, wait, and
domain-failover state machine. Package transport implements the actual
HTTP attempt. Package timeout computes per-request timeout budgets.
*/
package httpx
