// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request contains the core types shared by every layer of the
engine HTTP core: Request (a single logical HTTP request, including
its configuration, state machine, and event callbacks), Response (an
immutable-once-ready snapshot of the HTTP response), and PayloadSource
(a lazy, possibly streaming source of request body bytes).

A Request is created with NewRequest, configured with its Set*
methods while it is NotStarted, and submitted with Process:

	r := request.NewRequest()
	r.SetVerb("POST")
	r.SetURL("https://example.com/upload")
	r.SetContentAsString("application/json", `{"hello":"world"}`)
	r.OnComplete(func(r *request.Request, resp *request.Response, ok bool) {
		...
	})

Process itself does not perform any I/O. It is the manager
(package manager) and the I/O worker (package worker) that drive a
Request through its transport and report results back via Tick.
*/
package request
