// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/playforge/httpx/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(t *testing.T, rawurl, verb string) *request.Request {
	t.Helper()
	r := request.NewRequest()
	r.SetVerb(verb)
	require.NoError(t, r.SetURL(rawurl))
	return r
}

func TestHTTPTransport_Do_SuccessStreamsBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(Options{BufferSize: 4})
	req := newTestRequest(t, srv.URL, "GET")

	err := tr.Do(context.Background(), req)
	require.NoError(t, err)

	resp := req.Response()
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusCreated, resp.Code())
	assert.Equal(t, "yes", resp.Header().Get("X-Custom"))
	assert.Equal(t, "hello world", string(resp.Body()))
}

func TestHTTPTransport_Do_RequestBody(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		received = buf[:n]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(Options{})
	req := newTestRequest(t, srv.URL, "POST")
	req.SetContent("text/plain", []byte("payload-bytes"))

	err := tr.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "payload-bytes", string(received))
}

func TestHTTPTransport_Do_ConnectionRefusedReturnsError(t *testing.T) {
	tr := NewHTTPTransport(Options{ConnectTimeout: 200 * time.Millisecond})
	req := newTestRequest(t, "http://127.0.0.1:1", "GET")

	err := tr.Do(context.Background(), req)
	assert.Error(t, err)
}

func TestHTTPTransport_Do_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	tr := NewHTTPTransport(Options{})
	req := newTestRequest(t, srv.URL, "GET")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tr.Do(ctx, req)
	assert.Error(t, err)
}

func TestHTTPTransport_Do_ContentLengthFromHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "11")
		_, _ = w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(Options{})
	req := newTestRequest(t, srv.URL, "GET")

	require.NoError(t, tr.Do(context.Background(), req))

	resp := req.Response()
	require.NotNil(t, resp)
	assert.Equal(t, "11", resp.Header().Get("Content-Length"))
	assert.Equal(t, int64(11), resp.ContentLength())
	assert.Equal(t, "hello world", string(resp.Body()))
}
