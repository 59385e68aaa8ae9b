// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package manager

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playforge/httpx/request"
	"github.com/playforge/httpx/retry"
	"github.com/playforge/httpx/timeout"
	"github.com/playforge/httpx/transport"
)

func newCooperativeManager(t *testing.T, mock *transport.Mock) *Manager {
	t.Helper()
	return New(Options{
		Transport:     mock,
		TimeoutPolicy: timeout.Fixed(time.Second, 0),
		Concurrency:   4,
		EnableHTTP:    true,
		Cooperative:   true,
	})
}

func tickUntil(t *testing.T, m *Manager, deadline time.Duration, cond func() bool) {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		m.Tick(0)
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestManager_AddThreadedRequest_completes(t *testing.T) {
	mock := &transport.Mock{}
	m := newCooperativeManager(t, mock)

	r := m.NewRequest()
	require.NoError(t, r.SetURL("https://example.com/widgets"))

	var ok bool
	var calledOnce int
	r.OnComplete(func(_ *request.Request, _ *request.Response, success bool) {
		calledOnce++
		ok = success
	})
	require.True(t, r.Process())

	tickUntil(t, m, time.Second, func() bool { return r.Status().Terminal() })
	m.Tick(0) // deliver the finalize-queued OnComplete

	assert.True(t, ok)
	assert.Equal(t, 1, calledOnce)
	assert.Equal(t, 0, m.Len())
}

func TestManager_AddRequest_inline(t *testing.T) {
	mock := &transport.Mock{}
	m := newCooperativeManager(t, mock)

	r := request.NewRequest()
	require.NoError(t, r.SetURL("https://example.com/widgets"))

	var ok bool
	r.OnComplete(func(_ *request.Request, _ *request.Response, success bool) { ok = success })

	assert.True(t, m.AddRequest(r))
	assert.Equal(t, request.Succeeded, r.Status())
	assert.True(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestManager_domainRejection(t *testing.T) {
	mock := &transport.Mock{}
	m := New(Options{
		Transport:      mock,
		EnableHTTP:     true,
		Cooperative:    true,
		AllowedDomains: []string{"allowed.example.com"},
	})

	r := m.NewRequest()
	require.NoError(t, r.SetURL("https://blocked.example.com/widgets"))

	var completed bool
	var ok bool
	r.OnComplete(func(_ *request.Request, _ *request.Response, success bool) {
		completed = true
		ok = success
	})
	assert.False(t, r.Process())

	m.Tick(0)
	assert.True(t, completed)
	assert.False(t, ok)
	assert.Equal(t, request.Failed, r.Status())
}

func TestManager_domainOverrideInDevBuild(t *testing.T) {
	mock := &transport.Mock{}
	m := New(Options{
		Transport:      mock,
		EnableHTTP:     true,
		Cooperative:    true,
		AllowedDomains: []string{"allowed.example.com"},
	})

	u, _ := url.Parse("https://blocked.example.com/widgets")
	assert.False(t, m.IsDomainAllowed(u))
	assert.True(t, m.DisableDomainRestrictions())
	assert.True(t, m.IsDomainAllowed(u))
	m.EnableDomainRestrictions()
	assert.False(t, m.IsDomainAllowed(u))
}

func TestManager_domainOverrideRejectedInShipping(t *testing.T) {
	mock := &transport.Mock{}
	m := New(Options{Transport: mock, Shipping: true, AllowedDomains: []string{"allowed.example.com"}})
	assert.False(t, m.DisableDomainRestrictions())
}

func TestManager_retryWrappedRequestOnlyCompletesOnce(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	mock := &transport.Mock{
		DoFunc: func(_ context.Context, req *request.Request) error {
			mu.Lock()
			attempts++
			n := attempts
			mu.Unlock()
			if n < 3 {
				return context.DeadlineExceeded
			}
			req.ReportStatusCode(200)
			return nil
		},
	}
	m := newCooperativeManager(t, mock)

	var completions int
	r, _, err := m.CreateRetriedRequest("GET", "https://example.com/widgets", retry.Overrides{
		MaxRetries:    5,
		HasMaxRetries: true,
		Policy:        retry.NewPolicy(retry.Times(5).And(retry.TransientErr), retry.NewFixedWaiter(time.Millisecond)),
	})
	require.NoError(t, err)
	r.OnComplete(func(_ *request.Request, _ *request.Response, _ bool) {
		completions++
	})

	tickUntil(t, m, 2*time.Second, func() bool { return m.Len() == 0 })

	assert.Equal(t, 1, completions)
	mu.Lock()
	assert.GreaterOrEqual(t, attempts, 3)
	mu.Unlock()
}

func TestManager_flushDefaultDrainsNaturally(t *testing.T) {
	mock := &transport.Mock{}
	m := newCooperativeManager(t, mock)

	r := m.NewRequest()
	require.NoError(t, r.SetURL("https://example.com/widgets"))
	require.True(t, r.Process())

	require.NoError(t, m.Flush(Default))
	assert.Equal(t, 0, m.Len())
}

func TestManager_flushShutdownAbandonsAfterHardLimit(t *testing.T) {
	block := make(chan struct{})
	mock := &transport.Mock{
		// Ignores cancellation entirely: the attempt only ends once
		// the test closes block, well after the flush returns.
		DoFunc: func(ctx context.Context, req *request.Request) error {
			<-block
			return ctx.Err()
		},
	}
	m := New(Options{
		Transport:     mock,
		TimeoutPolicy: timeout.Infinite,
		Cooperative:   true,
		EnableHTTP:    true,
		FlushLimits: map[Reason]FlushLimit{
			Shutdown: {Soft: 5 * time.Millisecond, Hard: 20 * time.Millisecond},
		},
	})

	r := m.NewRequest()
	require.NoError(t, r.SetURL("https://example.com/widgets"))
	var completed bool
	r.OnComplete(func(*request.Request, *request.Response, bool) { completed = true })
	require.True(t, r.Process())

	err := m.Flush(Shutdown)
	assert.Error(t, err)
	assert.False(t, completed, "Shutdown clears delegates before waiting")
	close(block)
}

func TestManager_correlationID(t *testing.T) {
	mock := &transport.Mock{}
	m := newCooperativeManager(t, mock)

	id1 := m.CreateCorrelationId()
	id2 := m.CreateCorrelationId()
	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)

	m.SetCorrelationIDFunc(func() string { return "fixed" })
	assert.Equal(t, "fixed", m.CreateCorrelationId())
}

func TestManager_addGameThreadTask(t *testing.T) {
	mock := &transport.Mock{}
	m := newCooperativeManager(t, mock)

	done := make(chan struct{})
	m.AddGameThreadTask(func() { close(done) })
	m.Tick(0)

	select {
	case <-done:
	default:
		t.Fatal("task was not run by Tick")
	}
}

func TestManager_IsValidRequest(t *testing.T) {
	mock := &transport.Mock{}
	m := newCooperativeManager(t, mock)

	assert.False(t, m.IsValidRequest(nil))

	noURL := m.NewRequest()
	assert.False(t, m.IsValidRequest(noURL), "no URL set yet")

	r := m.NewRequest()
	require.NoError(t, r.SetURL("https://example.com/widgets"))
	assert.True(t, m.IsValidRequest(r))

	disabled := New(Options{Transport: mock, TimeoutPolicy: timeout.Fixed(time.Second, 0), Cooperative: true})
	r2 := disabled.NewRequest()
	require.NoError(t, r2.SetURL("https://example.com/widgets"))
	assert.False(t, disabled.IsValidRequest(r2), "EnableHTTP defaults to false")
}

func TestManager_IsValidRequest_domainRestricted(t *testing.T) {
	mock := &transport.Mock{}
	m := New(Options{
		Transport:      mock,
		TimeoutPolicy:  timeout.Fixed(time.Second, 0),
		Cooperative:    true,
		EnableHTTP:     true,
		AllowedDomains: []string{"example.com"},
	})

	allowed := m.NewRequest()
	require.NoError(t, allowed.SetURL("https://api.example.com/widgets"))
	assert.True(t, m.IsValidRequest(allowed))

	blocked := m.NewRequest()
	require.NoError(t, blocked.SetURL("https://evil.test/widgets"))
	assert.False(t, m.IsValidRequest(blocked))
}

func TestManager_flushFullFlushWaitsUnconditionally(t *testing.T) {
	mock := &transport.Mock{}
	m := newCooperativeManager(t, mock)

	r := m.NewRequest()
	require.NoError(t, r.SetURL("https://example.com/widgets"))
	require.True(t, r.Process())

	require.NoError(t, m.Flush(FullFlush))
	assert.Equal(t, 0, m.Len())
}

func TestManager_cancelRequest_beforeCompletion(t *testing.T) {
	block := make(chan struct{})
	mock := &transport.Mock{
		DoFunc: func(ctx context.Context, req *request.Request) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-block:
				return nil
			}
		},
	}
	m := newCooperativeManager(t, mock)

	r := m.NewRequest()
	require.NoError(t, r.SetURL("https://example.com/widgets"))
	var status request.Status
	r.OnComplete(func(req *request.Request, _ *request.Response, _ bool) { status = req.Status() })
	require.True(t, r.Process())

	m.CancelRequest(r)
	r.Cancel()

	tickUntil(t, m, 2*time.Second, func() bool { return status.Terminal() })
	assert.True(t, r.Cancelled())
	close(block)
}

func TestManager_forkBeforeAfterEndFrame(t *testing.T) {
	mock := &transport.Mock{}
	m := New(Options{
		Transport:     mock,
		TimeoutPolicy: timeout.Fixed(time.Second, 0),
		EnableHTTP:    true,
	})

	r := m.NewRequest()
	require.NoError(t, r.SetURL("https://example.com/widgets"))
	require.True(t, r.Process())
	tickUntil(t, m, 2*time.Second, func() bool { return m.Len() == 0 })

	require.NoError(t, m.OnForkBefore())
	assert.Nil(t, m.workerCancel)

	m.OnForkAfter()
	assert.True(t, m.opts.Cooperative, "post-fork worker restarts cooperatively")
	assert.Nil(t, m.workerCancel)

	m.OnForkEndFrame(true)
	assert.False(t, m.opts.Cooperative, "promoted once the platform reports thread support")
	assert.NotNil(t, m.workerCancel)
}

func TestManager_forkEndFrame_noThreadsLeavesCooperative(t *testing.T) {
	mock := &transport.Mock{}
	m := newCooperativeManager(t, mock)

	m.OnForkEndFrame(false)
	assert.True(t, m.opts.Cooperative)
	assert.Nil(t, m.workerCancel)
}

func TestManager_appliesHeaderDefaultsAtSubmit(t *testing.T) {
	var seenUA, seenExpect string
	mock := &transport.Mock{
		DoFunc: func(_ context.Context, req *request.Request) error {
			seenUA = req.Header().Get("User-Agent")
			seenExpect = req.Header().Get("Expect")
			req.ReportStatusCode(200)
			return nil
		},
	}
	m := newCooperativeManager(t, mock)

	r := m.NewRequest()
	require.NoError(t, r.SetURL("https://example.com/widgets"))
	require.True(t, r.Process())
	tickUntil(t, m, time.Second, func() bool { return r.Status().Terminal() })

	assert.Equal(t, defaultUserAgent, seenUA)
	assert.Equal(t, "", seenExpect)
}

func TestManager_rejectsBodyWithoutContentType(t *testing.T) {
	mock := &transport.Mock{}
	m := newCooperativeManager(t, mock)

	r := m.NewRequest()
	r.SetVerb("POST")
	require.NoError(t, r.SetURL("https://example.com/widgets"))
	r.SetContent("", []byte("not url encoded!!"))

	var ok bool
	var completed bool
	r.OnComplete(func(_ *request.Request, _ *request.Response, success bool) {
		completed = true
		ok = success
	})
	assert.False(t, r.Process())

	m.Tick(0)
	assert.True(t, completed)
	assert.False(t, ok)
	assert.Equal(t, request.Failed, r.Status())
}

func TestManager_cancelledRequestFails(t *testing.T) {
	started := make(chan struct{})
	mock := &transport.Mock{
		DoFunc: func(ctx context.Context, req *request.Request) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	m := newCooperativeManager(t, mock)

	r := m.NewRequest()
	require.NoError(t, r.SetURL("https://example.com/widgets"))
	require.True(t, r.Process())
	m.Tick(0)
	<-started
	r.Cancel()

	tickUntil(t, m, 2*time.Second, func() bool { return r.Status().Terminal() })
	assert.Equal(t, request.Failed, r.Status(), "a cancelled attempt is Failed, not FailedConnectionError")
}

func TestRepairLimits(t *testing.T) {
	tests := []struct {
		name               string
		soft, hard         time.Duration
		wantSoft, wantHard time.Duration
	}{
		{"well-formed", 2 * time.Second, 4 * time.Second, 2 * time.Second, 4 * time.Second},
		{"unbounded both", -1, -1, -1, -1},
		{"unbounded soft keeps its meaning", -1, 30 * time.Second, -1, 30 * time.Second},
		{"unbounded hard", 2 * time.Second, -1, 2 * time.Second, -1},
		{"inverted", 4 * time.Second, 4 * time.Second, 2 * time.Second, 4 * time.Second},
		{"soft past hard", 10 * time.Second, 4 * time.Second, 2 * time.Second, 4 * time.Second},
		{"both zero", 0, 0, 0, smallHardFloor},
		{"positive soft, zero hard", 5 * time.Second, 0, 0, smallHardFloor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			soft, hard := repairLimits(tt.soft, tt.hard)
			assert.Equal(t, tt.wantSoft, soft)
			assert.Equal(t, tt.wantHard, hard)
		})
	}
}
