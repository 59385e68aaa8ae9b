// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"

	"github.com/playforge/httpx/request"
)

// A Transport performs one HTTP request attempt.
//
// Do blocks until the attempt finishes or ctx is done. As response
// headers and body bytes arrive, Do reports them to req via
// req.ReportHeader, req.ReportProgress, and req.ReportBody. Do does
// not itself set req's terminal status; the caller (the worker) does
// that based on Do's returned error (see worker.AttemptStatus): an
// error before any response was reported is a connection failure, one
// after it a mid-stream failure.
//
// Implementations must be safe for concurrent use by multiple
// goroutines, since the worker may run many attempts simultaneously
// against the same Transport.
type Transport interface {
	Do(ctx context.Context, req *request.Request) error
}
