// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package manager

import (
	"fmt"
	"time"

	"github.com/playforge/httpx/request"
	"github.com/playforge/httpx/retry"
)

// A Reason identifies why Flush was called, selecting its (soft,
// hard) time budget.
type Reason int

const (
	// Default is a periodic or manually-triggered flush.
	Default Reason = iota
	// Background is used when the process is entering the background.
	Background
	// Shutdown is used when the process is exiting. It additionally
	// clears every registered request's completion delegates before
	// waiting, so callbacks never fire into torn-down state.
	Shutdown
	// FullFlush waits unconditionally until the registry drains.
	FullFlush
)

// A FlushLimit is the (soft, hard) time budget for one flush Reason.
// A negative value means unbounded.
type FlushLimit struct {
	Soft time.Duration
	Hard time.Duration
}

// smallHardFloor is the repaired hard limit used when a configured
// hard limit is exactly zero.
const smallHardFloor = 100 * time.Millisecond

func repairLimits(soft, hard time.Duration) (time.Duration, time.Duration) {
	// A negative limit is the documented "no bound on that phase"
	// sentinel, not an inverted configuration; it passes through
	// untouched.
	if soft < 0 || hard < 0 {
		return soft, hard
	}
	if soft >= hard {
		if hard == 0 {
			return 0, smallHardFloor
		}
		return hard / 2, hard
	}
	return soft, hard
}

// Flush blocks the caller until every registered request (including
// retry-tracked ones) is removed from the registry, or reason's time
// budget elapses.
//
// Semantics: while elapsed < soft, Flush ticks normally, waiting for
// natural completion. After soft passes, every still-registered
// request is cancelled (but still ticked until it finalizes). After
// hard passes, any requests still registered are abandoned - logged
// and forgotten, leaking from the Manager's view - and Flush returns
// an error.
func (m *Manager) Flush(reason Reason) error {
	limit := m.opts.FlushLimits[reason]
	soft, hard := repairLimits(limit.Soft, limit.Hard)

	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	if reason == Shutdown {
		m.clearAllDelegates()
	}

	start := time.Now()
	cancelled := false
	for {
		m.Tick(0)
		if m.Len() == 0 {
			return nil
		}

		elapsed := time.Since(start)
		if hard >= 0 && elapsed >= hard {
			n := m.abandon()
			m.log.Warn("httpx: flush abandoned requests", "reason", reason, "count", n)
			return fmt.Errorf("httpx/manager: flush timed out with %d request(s) abandoned", n)
		}
		if !cancelled && soft >= 0 && elapsed >= soft {
			m.cancelAll()
			cancelled = true
		}

		if !m.opts.Cooperative {
			time.Sleep(m.opts.CleanupInterval)
		}
	}
}

func (m *Manager) clearAllDelegates() {
	for _, r := range m.snapshotRequests() {
		r.ClearDelegates()
	}
}

func (m *Manager) cancelAll() {
	m.mu.Lock()
	entries := make([]*retry.Entry, 0, len(m.retryTracked))
	for r := range m.retryTracked {
		entries = append(entries, m.retryTracked[r])
	}
	plain := make([]*request.Request, 0, len(m.requests))
	for r := range m.requests {
		if _, tracked := m.retryTracked[r]; !tracked {
			plain = append(plain, r)
		}
	}
	m.mu.Unlock()

	for _, e := range entries {
		e.Cancel()
	}
	for _, r := range plain {
		r.Cancel()
	}
}

// abandon forgets every still-registered request without waiting for
// it to finalize, and returns how many were abandoned.
func (m *Manager) abandon() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.requests)
	m.requests = make(map[*request.Request]struct{})
	m.retryTracked = make(map[*request.Request]*retry.Entry)
	return n
}
