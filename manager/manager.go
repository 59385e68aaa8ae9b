// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package manager

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/playforge/httpx/request"
	"github.com/playforge/httpx/retry"
	"github.com/playforge/httpx/timeout"
	"github.com/playforge/httpx/transport"
	"github.com/playforge/httpx/worker"
)

// Options configures a Manager. Follows the same withDefaults shape
// as worker.Options.
type Options struct {
	// Transport and TimeoutPolicy are forwarded to the owned
	// *worker.Worker.
	Transport     transport.Transport
	TimeoutPolicy timeout.Policy

	// Concurrency, RateLimit, and Limits bound I/O worker admission.
	Concurrency int
	RateLimit   *rate.Limiter
	Limits      []worker.Limit

	// ActiveBudget, IdleBudget, MinSleep, and DelayTime are forwarded
	// to the owned *worker.Worker.
	ActiveBudget time.Duration
	IdleBudget   time.Duration
	MinSleep     time.Duration
	DelayTime    time.Duration

	// Cooperative selects a worker with no goroutine of its own,
	// ticked inline from Manager.Tick. Used on platforms without real
	// threads.
	Cooperative bool

	// EnableHTTP is the master HTTP switch (bEnableHttp). If false,
	// every Submit is rejected.
	EnableHTTP bool

	// AllowedDomains is the domain allow-list of suffixes. Empty
	// means unrestricted.
	AllowedDomains []string

	// Shipping disables the CLI/dev override that can bypass
	// AllowedDomains. In a shipping build the allow-list, if
	// non-empty, is always enforced.
	Shipping bool

	// UserAgent is the platform-default User-Agent header applied to
	// any request whose caller did not set one.
	UserAgent string

	// FlushLimits supplies the (soft, hard) time budget for each
	// Reason. Any Reason missing from the map gets DefaultFlushLimits'
	// entry.
	FlushLimits map[Reason]FlushLimit

	// CleanupInterval is the main-thread sleep between ticks while
	// Flush is polling a non-cooperative worker (RequestCleanupDelaySec).
	CleanupInterval time.Duration

	// Logger receives warnings about rejected submissions and
	// abandoned flush entries. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultFlushLimits are the (soft, hard) budgets used for any Reason
// not present in Options.FlushLimits.
func DefaultFlushLimits() map[Reason]FlushLimit {
	return map[Reason]FlushLimit{
		Default:    {Soft: 2 * time.Second, Hard: 4 * time.Second},
		Background: {Soft: 5 * time.Second, Hard: 10 * time.Second},
		Shutdown:   {Soft: 5 * time.Second, Hard: 10 * time.Second},
		FullFlush:  {Soft: -1, Hard: -1},
	}
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.TimeoutPolicy == nil {
		opts.TimeoutPolicy = timeout.DefaultPolicy
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	limits := DefaultFlushLimits()
	for k, v := range opts.FlushLimits {
		limits[k] = v
	}
	opts.FlushLimits = limits
	return opts
}

// A Manager owns the registry of live requests, ticks them on the
// calling goroutine, and drives at most one I/O worker and one retry
// manager.
type Manager struct {
	opts Options
	log  *slog.Logger

	worker       *worker.Worker
	workerCancel context.CancelFunc
	retryMgr     *retry.Manager

	// flushMu is held for the duration of a Flush call, so that
	// AddRequest/AddThreadedRequest - which briefly acquire it too -
	// block for as long as a flush is in progress.
	flushMu sync.Mutex

	mu           sync.Mutex
	requests     map[*request.Request]struct{}
	retryTracked map[*request.Request]*retry.Entry
	pendingRetry map[*request.Request]struct{}

	tasksMu sync.Mutex
	tasks   []func()

	correlationFunc atomic.Value // func() string

	domainOverride atomic.Bool
}

// New constructs a Manager. opts.Transport must not be nil.
func New(opts Options) *Manager {
	if opts.Transport == nil {
		panic("httpx/manager: nil Transport")
	}
	opts = opts.withDefaults()

	m := &Manager{
		opts:         opts,
		log:          opts.Logger,
		retryMgr:     retry.NewManager(),
		requests:     make(map[*request.Request]struct{}),
		retryTracked: make(map[*request.Request]*retry.Entry),
		pendingRetry: make(map[*request.Request]struct{}),
	}
	m.correlationFunc.Store(defaultCorrelationFunc)
	m.startWorker()
	return m
}

func defaultCorrelationFunc() string {
	return uuid.NewString()
}

func (m *Manager) startWorker() {
	m.worker = worker.New(worker.Options{
		Transport:     m.opts.Transport,
		TimeoutPolicy: m.opts.TimeoutPolicy,
		Concurrency:   m.opts.Concurrency,
		RateLimit:     m.opts.RateLimit,
		Limits:        m.opts.Limits,
		ActiveBudget:  m.opts.ActiveBudget,
		IdleBudget:    m.opts.IdleBudget,
		MinSleep:      m.opts.MinSleep,
		DelayTime:     m.opts.DelayTime,
	})
	if !m.opts.Cooperative {
		ctx, cancel := context.WithCancel(context.Background())
		m.workerCancel = cancel
		go m.worker.Run(ctx)
	}
}

// NewRequest creates a Request already bound to this Manager.
func (m *Manager) NewRequest() *request.Request {
	r := request.NewRequest()
	r.Bind(m)
	return r
}

// CreateRetriedRequest creates a Request bound to this Manager, wraps
// it in a retry.Entry via the Manager's internal *retry.Manager, and
// calls Process on its first attempt.
func (m *Manager) CreateRetriedRequest(verb, rawURL string, o retry.Overrides) (*request.Request, *retry.Entry, error) {
	r := m.NewRequest()
	r.SetVerb(verb)
	if err := r.SetURL(rawURL); err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	m.pendingRetry[r] = struct{}{}
	m.mu.Unlock()

	// CreateRequest calls r.Process() internally, which re-enters
	// Submit/register on this same goroutine; pendingRetry stands in
	// for retryTracked until e exists, so a concurrent Tick's drain of
	// the worker's completed channel does not finalize r early.
	e := m.retryMgr.CreateRequest(r, o)

	m.mu.Lock()
	delete(m.pendingRetry, r)
	m.retryTracked[r] = e
	m.mu.Unlock()

	return r, e, nil
}

// Submit implements request.Handle. It is called by Request.Process
// and always routes through the I/O worker (AddThreadedRequest's
// behavior): the request hands itself to the manager, which passes
// its transport handle to the I/O worker.
func (m *Manager) Submit(r *request.Request) bool {
	return m.AddThreadedRequest(r)
}

// CancelRequest implements request.Handle.
func (m *Manager) CancelRequest(r *request.Request) {
	m.worker.CancelRequest(r)
}

// AddRequest registers r and drives its single attempt synchronously
// on the calling goroutine, without involving the I/O worker.
func (m *Manager) AddRequest(r *request.Request) bool {
	if !m.admit(r) {
		return false
	}

	r.MarkProcessing()
	m.register(r)

	total := m.opts.TimeoutPolicy.Total(r)
	ctx, cancel := context.WithTimeout(context.Background(), total)
	defer cancel()

	err := m.opts.Transport.Do(ctx, r)
	r.SetLastError(err)
	r.SetTerminal(worker.AttemptStatus(r, err))
	m.finalize(r)
	return true
}

// AddThreadedRequest registers r and hands it to the I/O worker.
func (m *Manager) AddThreadedRequest(r *request.Request) bool {
	if !m.admit(r) {
		return false
	}
	r.MarkProcessing()
	m.register(r)
	m.worker.Submit(r)
	return true
}

// defaultUserAgent is used when Options.UserAgent is empty and the
// caller did not set a User-Agent header of their own.
const defaultUserAgent = "playforge-httpx/1.0"

// admit runs the rejected-at-submit checks and, on rejection,
// schedules the terminal transition and completion callback on the
// main-thread task queue per request.Handle's documented contract.
// An admitted request also has its header defaults (User-Agent,
// Content-Length, blanked Expect) applied here, before the transport
// can see it.
func (m *Manager) admit(r *request.Request) bool {
	var why string
	switch {
	case !m.opts.EnableHTTP:
		why = "HTTP is disabled"
	case !m.IsDomainAllowed(r.URL()):
		why = "domain is not in the allow-list"
	case r.RequiresContentType():
		why = "body requires an explicit Content-Type"
	default:
		r.ApplyHeaderDefaults(m.opts.UserAgent)
		return true
	}
	m.log.Warn("httpx: request rejected at submit", "url", safeURL(r.URL()), "reason", why)
	m.AddGameThreadTask(func() {
		r.SetTerminal(request.Failed)
		r.FireComplete()
	})
	return false
}

func safeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

func (m *Manager) register(r *request.Request) {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r] = struct{}{}
}

// finalize fires r's completion callback and removes it from the
// registry. It is a no-op for retry-tracked requests, whose completion
// is instead fired by the owning retry.Entry once the retry sequence
// reaches a terminal status.
func (m *Manager) finalize(r *request.Request) {
	m.mu.Lock()
	_, tracked := m.retryTracked[r]
	_, pending := m.pendingRetry[r]
	skip := tracked || pending
	if !skip {
		delete(m.requests, r)
	}
	m.mu.Unlock()
	if skip {
		return
	}
	// Deliver any still-queued header/progress events first, so the
	// completion callback is always the last event a request fires.
	r.Tick(0)
	r.FireComplete()
}

// Len returns the number of requests currently registered, including
// retry-tracked ones.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a snapshot of every currently registered request,
// including retry-tracked ones. Backs the HTTP DUMPREQ console
// command's "list outstanding requests" behavior.
func (m *Manager) Requests() []*request.Request {
	return m.snapshotRequests()
}

// AddGameThreadTask enqueues fn for execution on the next Tick. Safe
// to call from any goroutine. Rendered the same way request.Request
// renders its own pending-callback queue (a mutex-guarded slice
// drained and swapped to nil on each Tick).
func (m *Manager) AddGameThreadTask(fn func()) {
	m.tasksMu.Lock()
	m.tasks = append(m.tasks, fn)
	m.tasksMu.Unlock()
}

// Tick performs one main-thread pass: drains the task queue, ticks
// every registered request, drains the I/O worker's completions, and
// advances the retry manager.
func (m *Manager) Tick(dt time.Duration) {
	m.drainTasks()

	for _, r := range m.snapshotRequests() {
		r.Tick(dt)
	}

	if m.opts.Cooperative {
		m.worker.Tick()
	}
	m.drainCompleted()

	m.retryMgr.Update(time.Now())
	m.reapRetryTracked()
}

func (m *Manager) drainTasks() {
	m.tasksMu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.tasksMu.Unlock()
	for _, fn := range tasks {
		fn()
	}
}

func (m *Manager) snapshotRequests() []*request.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*request.Request, 0, len(m.requests))
	for r := range m.requests {
		out = append(out, r)
	}
	return out
}

func (m *Manager) drainCompleted() {
	for {
		select {
		case r := <-m.worker.Completed():
			m.finalize(r)
		default:
			return
		}
	}
}

func (m *Manager) reapRetryTracked() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for r, e := range m.retryTracked {
		if e.Status().Terminal() {
			delete(m.retryTracked, r)
			delete(m.requests, r)
		}
	}
}

// IsValidRequest reports whether r would currently be accepted by
// Submit: non-nil, with a non-empty, allowed URL, and HTTP enabled.
// Whether r is bound to a Handle is not checked.
func (m *Manager) IsValidRequest(r *request.Request) bool {
	if r == nil {
		return false
	}
	u := r.URL()
	if u == nil || u.String() == "" {
		return false
	}
	return m.opts.EnableHTTP && m.IsDomainAllowed(u)
}

// CreateCorrelationId returns a fresh opaque identifier, by default a
// UUID, for telemetry correlation.
func (m *Manager) CreateCorrelationId() string {
	fn := m.correlationFunc.Load().(func() string)
	return fn()
}

// SetCorrelationIDFunc overrides the function CreateCorrelationId
// calls, e.g. so tests can substitute deterministic IDs.
func (m *Manager) SetCorrelationIDFunc(fn func() string) {
	if fn == nil {
		fn = defaultCorrelationFunc
	}
	m.correlationFunc.Store(fn)
}

// IsDomainAllowed reports whether u's host is permitted by the
// Manager's AllowedDomains suffix list. An empty list permits
// everything.
func (m *Manager) IsDomainAllowed(u *url.URL) bool {
	if len(m.opts.AllowedDomains) == 0 {
		return true
	}
	if !m.opts.Shipping && m.domainOverride.Load() {
		return true
	}
	if u == nil {
		return false
	}
	host := u.Hostname()
	for _, suffix := range m.opts.AllowedDomains {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// DisableDomainRestrictions lifts the AllowedDomains check. It is a
// no-op, returning false, in a Shipping build. Backs the
// -DisableHttpDomainRestrictions CLI flag.
func (m *Manager) DisableDomainRestrictions() bool {
	if m.opts.Shipping {
		return false
	}
	m.domainOverride.Store(true)
	return true
}

// EnableDomainRestrictions restores enforcement of AllowedDomains
// after a prior DisableDomainRestrictions call.
func (m *Manager) EnableDomainRestrictions() {
	m.domainOverride.Store(false)
}
