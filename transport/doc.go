// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package transport sends individual HTTP request attempts and streams
their results back onto a *request.Request.

A Transport performs exactly one attempt per call to Do, blocking the
calling goroutine until the attempt reaches a terminal outcome or ctx
is cancelled. It is the I/O worker (package worker) that supplies the
goroutine, the context deadline (from a timeout.Policy), and observes
cancellation; Transport itself holds no retry or scheduling logic.

HTTPTransport is the default, net/http-based implementation. A Mock
implementation is provided for tests that need to exercise the worker
and manager without making real network calls.
*/
package transport
