// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	submitted []*Request
	submitOK  bool
	cancelled []*Request
}

func (h *fakeHandle) Submit(r *Request) bool {
	h.submitted = append(h.submitted, r)
	if h.submitOK {
		r.MarkProcessing()
	}
	return h.submitOK
}

func (h *fakeHandle) CancelRequest(r *Request) {
	h.cancelled = append(h.cancelled, r)
}

func newBoundRequest(t *testing.T, submitOK bool) (*Request, *fakeHandle) {
	t.Helper()
	r := NewRequest()
	require.NoError(t, r.SetURL("https://example.com/widgets"))
	h := &fakeHandle{submitOK: submitOK}
	r.Bind(h)
	return r, h
}

func TestRequest_DefaultVerbIsGET(t *testing.T) {
	r := NewRequest()
	assert.Equal(t, "GET", r.Verb())
}

func TestRequest_SetVerbEmptyDefaultsToGET(t *testing.T) {
	r := NewRequest()
	r.SetVerb("POST")
	r.SetVerb("")
	assert.Equal(t, "GET", r.Verb())
}

func TestRequest_AppendToHeaderFoldsValues(t *testing.T) {
	r := NewRequest()
	r.AppendToHeader("X-Tag", "a")
	r.AppendToHeader("X-Tag", "b")
	assert.Equal(t, "a, b", r.Header().Get("X-Tag"))
}

func TestRequest_SettersAreNoOpsAfterProcessing(t *testing.T) {
	r, _ := newBoundRequest(t, true)
	require.True(t, r.Process())
	require.Equal(t, Processing, r.Status())

	r.SetVerb("DELETE")
	assert.Equal(t, "GET", r.Verb(), "SetVerb must be ignored once Processing")

	err := r.SetURL("https://other.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "example.com", r.URL().Host, "SetURL must be ignored once Processing")

	r.SetHeader("X-Foo", "bar")
	assert.Equal(t, "", r.Header().Get("X-Foo"))
}

func TestRequest_ProcessFailsOnEmptyURL(t *testing.T) {
	r := NewRequest()
	h := &fakeHandle{submitOK: true}
	r.Bind(h)
	assert.False(t, r.Process())
	assert.Empty(t, h.submitted)
	assert.Equal(t, NotStarted, r.Status())
}

func TestRequest_ProcessFailsWhileAlreadyProcessing(t *testing.T) {
	r, h := newBoundRequest(t, true)
	require.True(t, r.Process())
	assert.False(t, r.Process())
	assert.Len(t, h.submitted, 1)
}

func TestRequest_ProcessDelegatesRejectionToHandle(t *testing.T) {
	r, h := newBoundRequest(t, false)
	assert.False(t, r.Process())
	assert.Len(t, h.submitted, 1)
	assert.Equal(t, NotStarted, r.Status())
}

func TestRequest_CancelBeforeProcessingIsNoOp(t *testing.T) {
	r, h := newBoundRequest(t, true)
	r.Cancel()
	assert.Empty(t, h.cancelled)
	assert.True(t, r.Cancelled())
}

func TestRequest_CancelWhileProcessingSignalsHandle(t *testing.T) {
	r, h := newBoundRequest(t, true)
	require.True(t, r.Process())
	r.Cancel()
	require.Len(t, h.cancelled, 1)
	assert.Same(t, r, h.cancelled[0])

	// Idempotent: a second Cancel does not signal again.
	r.Cancel()
	assert.Len(t, h.cancelled, 1)
}

func TestRequest_CancelAfterTerminalIsNoOp(t *testing.T) {
	r, h := newBoundRequest(t, true)
	require.True(t, r.Process())
	r.SetTerminal(Succeeded)
	r.Cancel()
	assert.Empty(t, h.cancelled)
}

func TestRequest_SetTerminalIsIdempotent(t *testing.T) {
	r, _ := newBoundRequest(t, true)
	require.True(t, r.Process())
	r.SetTerminal(Failed)
	r.SetTerminal(Succeeded)
	assert.Equal(t, Failed, r.Status(), "first terminal status wins")
}

func TestRequest_SetTerminalPanicsOnNonTerminalStatus(t *testing.T) {
	r, _ := newBoundRequest(t, true)
	assert.Panics(t, func() {
		r.SetTerminal(NotStarted)
	})
}

func TestRequest_FireCompleteOnlyOnce(t *testing.T) {
	r, _ := newBoundRequest(t, true)
	require.True(t, r.Process())
	r.SetTerminal(Succeeded)

	calls := 0
	r.OnComplete(func(rq *Request, resp *Response, ok bool) {
		calls++
		assert.True(t, ok)
	})
	r.FireComplete()
	r.FireComplete()
	assert.Equal(t, 1, calls)
}

func TestRequest_TickDrainsHeaderAndProgressEvents(t *testing.T) {
	r, _ := newBoundRequest(t, true)
	require.True(t, r.Process())

	var headers [][2]string
	var progress [][2]int64
	r.OnHeaderReceived(func(rq *Request, name, value string) {
		headers = append(headers, [2]string{name, value})
	})
	r.OnProgress(func(rq *Request, sent, recv int64) {
		progress = append(progress, [2]int64{sent, recv})
	})

	r.ReportHeader("Content-Type", "application/json")
	r.ReportProgress(10, 0)
	assert.Empty(t, headers, "callbacks must not fire before Tick")
	assert.Empty(t, progress)

	r.Tick(0)
	require.Len(t, headers, 1)
	assert.Equal(t, [2]string{"Content-Type", "application/json"}, headers[0])
	require.Len(t, progress, 1)
	assert.Equal(t, int64(10), progress[0][0])
}

func TestRequest_ReportHeaderUpdatesResponse(t *testing.T) {
	r, _ := newBoundRequest(t, true)
	require.True(t, r.Process())
	r.ReportHeader("X-Count", "1")
	r.ReportHeader("X-Count", "2")
	resp := r.Response()
	require.NotNil(t, resp)
	assert.Equal(t, "1, 2", resp.Header().Get("X-Count"))
}

func TestRequest_ApplyHeaderDefaults(t *testing.T) {
	r := NewRequest()
	r.SetContent("application/json", []byte(`{}`))
	r.ApplyHeaderDefaults("httpx-test/1.0")
	assert.Equal(t, "httpx-test/1.0", r.Header().Get("User-Agent"))
	assert.Equal(t, "2", r.Header().Get("Content-Length"))
	assert.Equal(t, "", r.Header().Get("Expect"))
}

func TestRequest_ApplyHeaderDefaultsRespectsExistingUserAgent(t *testing.T) {
	r := NewRequest()
	r.SetHeader("User-Agent", "custom/1.0")
	r.ApplyHeaderDefaults("httpx-test/1.0")
	assert.Equal(t, "custom/1.0", r.Header().Get("User-Agent"))
}

func TestRequest_RequiresContentType(t *testing.T) {
	r := NewRequest()
	r.SetVerb("POST")
	r.SetContent("", []byte("not url encoded!!"))
	assert.True(t, r.RequiresContentType())

	r2 := NewRequest()
	r2.SetVerb("POST")
	r2.SetContent("", []byte("url-encoded-ok"))
	assert.False(t, r2.RequiresContentType(), "url-encoded body does not require an explicit Content-Type")

	r3 := NewRequest()
	r3.SetVerb("GET")
	assert.False(t, r3.RequiresContentType())
}

func TestRequest_ElapsedFreezesAtTerminal(t *testing.T) {
	r, _ := newBoundRequest(t, true)
	require.True(t, r.Process())
	time.Sleep(2 * time.Millisecond)
	r.SetTerminal(Succeeded)
	frozen := r.Elapsed()
	time.Sleep(2 * time.Millisecond)
	assert.Equal(t, frozen, r.Elapsed())
}

func TestRequest_ResetForRetryRewritesURLAndReturnsToNotStarted(t *testing.T) {
	r, h := newBoundRequest(t, true)
	require.True(t, r.Process())
	r.SetTerminal(FailedConnectionError)

	next, err := url.Parse("https://failover.example.com/widgets")
	require.NoError(t, err)
	r.ResetForRetry(next)
	assert.Equal(t, NotStarted, r.Status())
	assert.Equal(t, "failover.example.com", r.URL().Host)
	assert.Nil(t, r.Response())

	require.True(t, r.Process())
	assert.Len(t, h.submitted, 2)
}

func TestRequest_ResetForRetryPanicsIfNotTerminal(t *testing.T) {
	r, _ := newBoundRequest(t, true)
	assert.Panics(t, func() {
		r.ResetForRetry(nil)
	})
}

func TestRequest_ClearDelegatesPreventsFurtherCallbacks(t *testing.T) {
	r, _ := newBoundRequest(t, true)
	require.True(t, r.Process())
	called := false
	r.OnComplete(func(*Request, *Response, bool) { called = true })
	r.ClearDelegates()
	r.SetTerminal(Succeeded)
	r.FireComplete()
	assert.False(t, called)
}

func TestRequest_BindTwicePanics(t *testing.T) {
	r := NewRequest()
	r.Bind(&fakeHandle{})
	assert.Panics(t, func() {
		r.Bind(&fakeHandle{})
	})
}

func TestRequest_ContentLengthFallbackOrder(t *testing.T) {
	t.Run("header wins over everything", func(t *testing.T) {
		r, _ := newBoundRequest(t, true)
		require.True(t, r.Process())
		r.ReportContentLength(99)
		r.ReportHeader("Content-Length", "11")
		r.ReportBody([]byte("hello"))
		assert.Equal(t, int64(11), r.Response().ContentLength())
	})
	t.Run("transport metadata wins over received bytes", func(t *testing.T) {
		r, _ := newBoundRequest(t, true)
		require.True(t, r.Process())
		r.ReportContentLength(42)
		r.ReportBody([]byte("hello"))
		assert.Equal(t, int64(42), r.Response().ContentLength())
	})
	t.Run("received bytes as last resort", func(t *testing.T) {
		r, _ := newBoundRequest(t, true)
		require.True(t, r.Process())
		r.ReportBody([]byte("hello"))
		r.ReportBody([]byte(" world"))
		assert.Equal(t, int64(11), r.Response().ContentLength())
	})
	t.Run("malformed header is ignored", func(t *testing.T) {
		r, _ := newBoundRequest(t, true)
		require.True(t, r.Process())
		r.ReportHeader("Content-Length", "not-a-number")
		r.ReportBody([]byte("hello"))
		assert.Equal(t, int64(5), r.Response().ContentLength())
	})
}
