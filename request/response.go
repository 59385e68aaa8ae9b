// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"net/http"
	urlpkg "net/url"
	"sync"
)

// A Response is a snapshot of a Request's HTTP response. It is
// created as soon as the transport has delivered the response
// headers (or, for a connection error, never created at all) and
// grows as body bytes are received. Response is safe to read
// concurrently; writes are made only by the worker/transport layer
// via the unexported setters.
//
// A Response intentionally does not hold a reference back to its
// owning Request: it stores the fields it needs (URL, verb) as an
// immutable snapshot taken at construction time, to avoid the cyclic
// ownership that would result from Request -> Response -> Request.
type Response struct {
	mu sync.RWMutex

	// url is the URL the response was ultimately received from. It
	// may differ from the request's original URL after retry-domain
	// failover rewrote the host.
	url *urlpkg.URL

	// verb is the HTTP method of the request that produced this
	// response.
	verb string

	// code is the HTTP status code. Zero or negative means "no valid
	// response was received" and is only legal while the owning
	// Request is still Processing.
	code int

	header http.Header

	body []byte

	// contentLength is the last-known content length, and
	// contentLengthSrc the precedence rank of wherever it came from:
	// the Content-Length header value if present, else
	// transport-reported metadata, else the number of body bytes
	// actually received. A lower-ranked source never overwrites a
	// higher-ranked one.
	contentLength    int64
	contentLengthSrc contentLengthSource

	ready bool
}

type contentLengthSource int

const (
	clFromNothing contentLengthSource = iota
	clFromBytes
	clFromTransport
	clFromHeader
)

// newResponse creates a Response snapshotting the given URL and verb.
func newResponse(u *urlpkg.URL, verb string) *Response {
	u2 := *u
	return &Response{
		url:    &u2,
		verb:   verb,
		header: make(http.Header),
	}
}

// URL returns the URL the response was received from.
func (r *Response) URL() *urlpkg.URL {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u := *r.url
	return &u
}

// Verb returns the HTTP method of the originating request.
func (r *Response) Verb() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.verb
}

// Code returns the HTTP status code, or a value <= 0 if no valid
// response has been received yet.
func (r *Response) Code() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.code
}

// Header returns the response headers received so far. The returned
// header must be treated as read-only.
func (r *Response) Header() http.Header {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.header
}

// Body returns the response body bytes received so far. Once Ready
// returns true, the returned slice will not change further.
func (r *Response) Body() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.body
}

// ContentLength returns the last-seen content length.
func (r *Response) ContentLength() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.contentLength
}

// Ready reports whether the owning Request has reached a terminal
// status, meaning this Response will not change further.
func (r *Response) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

func (r *Response) setCode(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.code = code
}

func (r *Response) setHeader(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing := r.header.Get(name); existing != "" {
		r.header.Set(name, existing+", "+value)
	} else {
		r.header.Set(name, value)
	}
}

func (r *Response) appendBody(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.body = append(r.body, b...)
	if r.contentLengthSrc <= clFromBytes {
		r.contentLength = int64(len(r.body))
		r.contentLengthSrc = clFromBytes
	}
}

func (r *Response) setContentLengthFromTransport(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.contentLengthSrc < clFromTransport {
		r.contentLength = n
		r.contentLengthSrc = clFromTransport
	}
}

func (r *Response) setContentLengthFromHeader(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contentLength = n
	r.contentLengthSrc = clFromHeader
}

func (r *Response) markReady() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = true
}
