// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"io"

	"github.com/playforge/httpx/request"
)

// payloadReader adapts a request.PayloadSource to io.Reader so it can
// be handed to net/http as an http.Request body.
type payloadReader struct {
	src  request.PayloadSource
	sent int64
}

func newPayloadReader(src request.PayloadSource) *payloadReader {
	return &payloadReader{src: src}
}

func (r *payloadReader) Read(p []byte) (int, error) {
	n, err := r.src.FillOutputBuffer(p, r.sent)
	r.sent += int64(n)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
