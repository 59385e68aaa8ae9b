// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/playforge/httpx/request"
)

// Manager tracks a population of retry-wrapped requests and drives
// each one through its own Entry.update on every call to Update.
//
// A Manager is safe for concurrent use: CreateRequest and Update may
// be called from different goroutines, though in the ordinary case
// Update is called repeatedly from one main-loop goroutine.
type Manager struct {
	mu      sync.Mutex
	entries []*Entry
	rand    *rand.Rand

	defaultMaxRetries      int
	hasDefaultMaxRetries   bool
	defaultRetryTimeout    time.Duration
	hasDefaultRetryTimeout bool
	simulatedFailureRate   float64
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// SetSimulatedFailureRate makes Update treat the given fraction of
// successful attempts as retry-worthy anyway, for exercising retry
// paths against endpoints that refuse to fail on demand. A rate of 0
// (the default) disables the simulation; 1 forces a retry of every
// successful attempt. A forced retry does not consult the retry
// budget, so at rate 1 the entry never reaches Succeeded.
func (m *Manager) SetSimulatedFailureRate(rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.simulatedFailureRate = rate
	if rate > 0 && m.rand == nil {
		m.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

// SetDefaultRetryLimit sets the maximum number of retries used for
// any entry whose Overrides did not specify one.
func (m *Manager) SetDefaultRetryLimit(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultMaxRetries = n
	m.hasDefaultMaxRetries = true
}

// SetDefaultRetryTimeout sets the wall-clock retry budget used for
// any entry whose Overrides did not specify one.
func (m *Manager) SetDefaultRetryTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultRetryTimeout = d
	m.hasDefaultRetryTimeout = true
}

// Len returns the number of entries still being tracked.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// CreateRequest registers r for retry tracking and submits its first
// attempt.
func (m *Manager) CreateRequest(r *request.Request, o Overrides) *Entry {
	policy := o.Policy
	if policy == nil {
		max, hasMax := o.MaxRetries, o.HasMaxRetries
		if !hasMax {
			m.mu.Lock()
			max, hasMax = m.defaultMaxRetries, m.hasDefaultMaxRetries
			m.mu.Unlock()
		}
		policy = NewPolicy(
			ShouldRetryDecider(o.ResponseCodes, o.Verbs).And(CanRetryDecider(max, hasMax)),
			LockoutWaiter(),
		)
	}

	hasTimeout, timeout := o.HasRetryTimeout, o.RetryTimeout
	if !hasTimeout {
		m.mu.Lock()
		timeout, hasTimeout = m.defaultRetryTimeout, m.hasDefaultRetryTimeout
		m.mu.Unlock()
	}

	e := &Entry{
		request:         r,
		policy:          policy,
		hasRetryTimeout: hasTimeout,
		retryTimeout:    timeout,
		domains:         o.Domains,
		originalURL:     r.URL(),
		started:         time.Now(),
	}
	if o.Domains != nil {
		e.domainIndex = o.Domains.ActiveIndex()
		_ = r.SetURL(e.currentURL().String())
	}

	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()

	r.Process()

	return e
}

// Update advances every tracked entry by one tick and reports whether
// all of them are currently free of failures and pending retries.
// Entries that reach a terminal EntryStatus are removed.
func (m *Manager) Update(now time.Time) bool {
	m.mu.Lock()
	entries := make([]*Entry, len(m.entries))
	copy(entries, m.entries)
	rate := m.simulatedFailureRate
	rng := m.rand
	m.mu.Unlock()

	// Entries update (and fire their callbacks) outside the manager
	// lock, so a callback may call back into the Manager.
	allGreen := true
	for _, e := range entries {
		forceRetry := rate > 0 && rng.Float64() < rate
		green, completed := e.update(now, forceRetry)
		if !green {
			allGreen = false
		}
		if completed {
			m.remove(e)
		}
	}
	return allGreen
}

// remove swap-removes e from the tracked set; entry order is not
// observable.
func (m *Manager) remove(e *Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, candidate := range m.entries {
		if candidate == e {
			last := len(m.entries) - 1
			m.entries[i] = m.entries[last]
			m.entries = m.entries[:last]
			return
		}
	}
}

// BlockUntilFlushed polls Update until every tracked entry reaches a
// terminal status or timeout elapses. It is intended only for use
// while shutting down or suspending, to make sure pending requests
// are not simply abandoned.
func (m *Manager) BlockUntilFlushed(timeout time.Duration) error {
	const pollInterval = 16 * time.Millisecond
	deadline := time.Now().Add(timeout)
	for {
		m.Update(time.Now())
		if m.Len() == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("httpx/retry: flush timed out with %d request(s) still pending", m.Len())
		}
		time.Sleep(pollInterval)
	}
}
