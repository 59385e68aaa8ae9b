// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	urlpkg "net/url"
	"strings"

	"github.com/playforge/httpx/request"
)

// HTTPTransport is the default Transport, built on net/http.
type HTTPTransport struct {
	opts   Options
	client *http.Client
}

// NewHTTPTransport builds an HTTPTransport from opts. The returned
// value owns a net/http.Transport with its own connection pool and
// should be reused across requests, not rebuilt per-request.
func NewHTTPTransport(opts Options) *HTTPTransport {
	dialer := &net.Dialer{
		Timeout: opts.ConnectTimeout,
	}
	if opts.BindAddress != "" {
		if addr, err := net.ResolveTCPAddr("tcp", opts.BindAddress+":0"); err == nil {
			dialer.LocalAddr = addr
		}
	}
	rt := &http.Transport{
		DialContext:           dialer.DialContext,
		DisableCompression:    !opts.AcceptCompressedContent,
		DisableKeepAlives:     opts.DisableKeepAlives,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: !opts.VerifyPeer},
	}
	if opts.MaxTotalConnections > 0 {
		rt.MaxConnsPerHost = opts.MaxTotalConnections
		rt.MaxIdleConns = opts.MaxTotalConnections
	}
	if opts.ProxyURL != "" {
		if u, err := urlpkg.Parse(opts.ProxyURL); err == nil {
			rt.Proxy = http.ProxyURL(u)
		}
	}
	return &HTTPTransport{
		opts:   opts,
		client: &http.Client{Transport: rt},
	}
}

// Do performs one HTTP request attempt for req, streaming the
// response back via req's Report* methods. See Transport for the
// contract.
func (t *HTTPTransport) Do(ctx context.Context, req *request.Request) error {
	httpReq, err := t.buildRequest(ctx, req)
	if err != nil {
		return urlErrorWrap(req, err)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return urlErrorWrap(req, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	req.ReportStatusCode(resp.StatusCode)
	if resp.ContentLength >= 0 {
		req.ReportContentLength(resp.ContentLength)
	}
	for name, values := range resp.Header {
		for _, v := range values {
			req.ReportHeader(name, v)
		}
	}

	bufSize := t.opts.BufferSize
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	buf := make([]byte, bufSize)
	var received int64
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			req.ReportBody(chunk)
			received += int64(n)
			req.ReportProgress(0, received)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return urlErrorWrap(req, rerr)
		}
	}
	return nil
}

func (t *HTTPTransport) buildRequest(ctx context.Context, req *request.Request) (*http.Request, error) {
	u := req.URL()
	var body io.Reader
	var contentLength int64 = -1
	payload := req.Payload()
	if payload != nil {
		body = newPayloadReader(payload)
		if n, ok := payload.Len(); ok {
			contentLength = n
		}
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Verb(), u.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = req.Header().Clone()
	if contentLength >= 0 {
		httpReq.ContentLength = contentLength
	}
	if t.opts.AllowSeekFunction && payload != nil && payload.Seekable() {
		httpReq.GetBody = func() (io.ReadCloser, error) {
			if err := payload.Seek(); err != nil {
				return nil, err
			}
			return io.NopCloser(newPayloadReader(payload)), nil
		}
	}
	return httpReq, nil
}

// urlErrorWrap wraps a non-*url.Error error in a *url.Error, matching
// the convention of the standard net/http client: callers can always
// type-assert the returned error to *url.Error to check Timeout().
func urlErrorWrap(req *request.Request, err error) error {
	if _, ok := err.(*urlpkg.Error); ok {
		return err
	}
	u := req.URL()
	urlStr := ""
	if u != nil {
		urlStr = u.String()
	}
	return &urlpkg.Error{
		Op:  urlErrorOp(req.Verb()),
		URL: urlStr,
		Err: err,
	}
}

func urlErrorOp(method string) string {
	if method == "" {
		return "Get"
	}
	return method[:1] + strings.ToLower(method[1:])
}
