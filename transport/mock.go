// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"

	"github.com/playforge/httpx/request"
)

// Mock is a Transport whose behavior is fully scripted, for use in
// tests of the worker and manager packages that should not depend on
// making real network calls.
type Mock struct {
	// DoFunc is invoked by Do. If nil, Do reports a 200 response with
	// an empty body and returns nil.
	DoFunc func(ctx context.Context, req *request.Request) error
}

func (m *Mock) Do(ctx context.Context, req *request.Request) error {
	if m.DoFunc != nil {
		return m.DoFunc(ctx, req)
	}
	req.ReportStatusCode(200)
	return nil
}
