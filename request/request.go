// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"fmt"
	"log/slog"
	"net/http"
	urlpkg "net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// A Handle is how a Request reaches the component that owns its
// lifecycle once Process is called: normally a *manager.Manager, but
// any type satisfying Handle may be substituted, which is how tests
// exercise Request without a real manager.
//
// Handle exists so that package request, which is imported by
// package manager, does not need to import manager back.
type Handle interface {
	// Submit validates and registers r for execution. It returns
	// false if r was rejected at submission time (in which case the
	// rejection has already been arranged to drive r to a terminal
	// Failed status and fire its completion callback exactly once,
	// on the owner's main-thread task queue).
	Submit(r *Request) bool

	// CancelRequest signals that r should be aborted. It is called at
	// most once per call to Request.Cancel, and only if r was
	// previously submitted.
	CancelRequest(r *Request)
}

// A Request holds the configuration, state machine, and event
// callbacks for a single logical HTTP request.
//
// A Request's configuration (verb, URL, headers, payload, timeouts) is
// mutable only while its Status is NotStarted; all Set* methods are
// no-ops (logged as a warning) once Process has been called, to avoid
// racing with a transport that may already be reading those fields.
// A retry manager that needs to rewrite the URL between attempts uses
// ResetForRetry, which explicitly returns the Request to NotStarted
// first.
//
// A Request is safe for concurrent use by multiple goroutines: the
// I/O worker reports header/progress/completion events from its own
// goroutine, while the owning manager drains and dispatches them from
// the main thread via Tick.
type Request struct {
	mu sync.Mutex

	method  string
	url     *urlpkg.URL
	header  http.Header
	payload PayloadSource

	totalTimeout    time.Duration
	hasTotalTimeout bool

	status       Status
	start        time.Time
	end          time.Time
	lastActivity time.Time

	response *Response
	lastErr  error

	cancelled bool
	completed bool
	pending   []func()
	handle    Handle

	onComplete       func(*Request, *Response, bool)
	onProgress       func(*Request, int64, int64)
	onHeaderReceived func(*Request, string, string)
	onWillRetry      func(*Request, *Response, float64)

	log *slog.Logger
}

// NewRequest creates a new Request with verb GET and no URL. It is
// not usable until bound to a Handle (normally via Manager.NewRequest)
// and given a URL.
func NewRequest() *Request {
	return &Request{
		method: "GET",
		header: make(http.Header),
		log:    slog.Default(),
	}
}

// Bind attaches the Handle that Process will submit to. It is called
// once by the component that creates the Request (typically
// Manager.NewRequest); calling it again panics.
func (r *Request) Bind(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle != nil {
		panic("httpx/request: request already bound to a handle")
	}
	r.handle = h
}

// SetLogger overrides the logger used for warnings about misuse
// (setter calls while Processing, etc). The default is
// slog.Default().
func (r *Request) SetLogger(l *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l == nil {
		l = slog.Default()
	}
	r.log = l
}

func (r *Request) mutable() bool {
	return r.status == NotStarted
}

// SetVerb sets the HTTP method. An empty verb means GET. Effective
// only while NotStarted.
func (r *Request) SetVerb(verb string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.mutable() {
		r.log.Warn("httpx: SetVerb ignored, request is not NotStarted", "status", r.status)
		return
	}
	if verb == "" {
		verb = "GET"
	}
	r.method = verb
}

// Verb returns the current HTTP method.
func (r *Request) Verb() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.method
}

// SetURL parses and sets the request URL. Effective only while
// NotStarted.
func (r *Request) SetURL(rawurl string) error {
	u, err := urlpkg.Parse(rawurl)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.mutable() {
		r.log.Warn("httpx: SetURL ignored, request is not NotStarted", "status", r.status)
		return nil
	}
	r.url = u
	return nil
}

// URL returns the current request URL, or nil if none was set.
func (r *Request) URL() *urlpkg.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.url == nil {
		return nil
	}
	u := *r.url
	return &u
}

// SetHeader sets header name to value, replacing any existing value.
// Effective only while NotStarted.
func (r *Request) SetHeader(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.mutable() {
		r.log.Warn("httpx: SetHeader ignored, request is not NotStarted", "status", r.status)
		return
	}
	r.header.Set(name, value)
}

// AppendToHeader folds value into any existing value for header name,
// joined with ", ", or sets it if name is absent. Effective only
// while NotStarted.
func (r *Request) AppendToHeader(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.mutable() {
		r.log.Warn("httpx: AppendToHeader ignored, request is not NotStarted", "status", r.status)
		return
	}
	if existing := r.header.Get(name); existing != "" {
		r.header.Set(name, existing+", "+value)
	} else {
		r.header.Set(name, value)
	}
}

// Header returns the current request headers. The returned value
// must be treated as read-only.
func (r *Request) Header() http.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.header
}

// SetContent sets an in-memory, seekable request body. Effective
// only while NotStarted.
func (r *Request) SetContent(contentType string, body []byte) {
	r.setPayload(contentType, NewBytesPayload(body))
}

// SetContentAsString is a convenience wrapper around SetContent.
func (r *Request) SetContentAsString(contentType, body string) {
	r.SetContent(contentType, []byte(body))
}

// SetContentFromStream sets a non-seekable, possibly-streaming
// request body, e.g. an archive stream whose length may be unknown.
// Effective only while NotStarted.
func (r *Request) SetContentFromStream(contentType string, p PayloadSource) {
	r.setPayload(contentType, p)
}

// SetContentAsStreamedFile streams the file at path as the request
// body, without loading it into memory. The file is opened
// immediately (so a missing file fails here, not mid-transfer) and
// closed once the payload has been fully read. Effective only while
// NotStarted.
func (r *Request) SetContentAsStreamedFile(contentType, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	r.setPayload(contentType, NewFilePayload(f, info.Size()))
	return nil
}

func (r *Request) setPayload(contentType string, p PayloadSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.mutable() {
		r.log.Warn("httpx: SetContent ignored, request is not NotStarted", "status", r.status)
		return
	}
	r.payload = p
	if contentType != "" {
		r.header.Set("Content-Type", contentType)
	}
}

// Payload returns the current request payload, or nil if none was
// set.
func (r *Request) Payload() PayloadSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payload
}

// SetTimeout overrides the total request timeout, in seconds,
// measured from Process. Effective only while NotStarted.
func (r *Request) SetTimeout(seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.mutable() {
		r.log.Warn("httpx: SetTimeout ignored, request is not NotStarted", "status", r.status)
		return
	}
	r.totalTimeout = time.Duration(seconds * float64(time.Second))
	r.hasTotalTimeout = true
}

// ClearTimeout removes any per-request timeout override, reverting
// to the manager's configured default. Effective only while
// NotStarted.
func (r *Request) ClearTimeout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.mutable() {
		r.log.Warn("httpx: ClearTimeout ignored, request is not NotStarted", "status", r.status)
		return
	}
	r.totalTimeout = 0
	r.hasTotalTimeout = false
}

// Timeout returns the per-request timeout override and whether one
// is set.
func (r *Request) Timeout() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalTimeout, r.hasTotalTimeout
}

// Status returns the request's current status.
func (r *Request) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Process submits one attempt of the request. It returns false
// without blocking if the request could not be submitted. An empty
// URL, an attempt already Processing, or an unbound request is
// rejected here, without consulting the Handle and without changing
// the status. A request rejected by the bound Handle's own policy
// (e.g. HTTP disabled or a disallowed domain) is left to the Handle,
// which drives it to a terminal Failed status and fires its
// completion callback exactly once. Process
// returns true once the request has transitioned to Processing and
// been handed to the Handle.
func (r *Request) Process() bool {
	r.mu.Lock()
	if r.status == Processing {
		r.mu.Unlock()
		r.log.Warn("httpx: Process called while already Processing", "url", r.safeURLString())
		return false
	}
	if r.url == nil || r.url.String() == "" {
		r.mu.Unlock()
		r.log.Warn("httpx: Process called with empty URL")
		return false
	}
	h := r.handle
	r.mu.Unlock()
	if h == nil {
		r.log.Warn("httpx: Process called on an unbound request")
		return false
	}
	return h.Submit(r)
}

func (r *Request) safeURLString() string {
	if r.url == nil {
		return ""
	}
	return r.url.String()
}

// Cancel requests that the request be aborted. It is idempotent and
// safe to call from any goroutine. The request's final status will
// be Failed, but if the request has already reached a terminal
// status by the time the cancellation is observed, Cancel is a no-op
// (the existing terminal status is preserved). On a request that is
// still NotStarted, Cancel only records the flag that Cancelled
// reports: the status stays NotStarted, no completion fires, and a
// later Process clears the flag and starts normally.
func (r *Request) Cancel() {
	r.mu.Lock()
	if r.cancelled {
		r.mu.Unlock()
		return
	}
	r.cancelled = true
	status := r.status
	h := r.handle
	r.mu.Unlock()
	if status.Terminal() || status == NotStarted {
		return
	}
	if h != nil {
		h.CancelRequest(r)
	}
}

// Cancelled reports whether Cancel has been called on this request.
func (r *Request) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// MarkProcessing transitions the request from NotStarted to
// Processing and records the start time. It is called by the Handle
// after accepting a Process call. It returns false if the request was
// not NotStarted.
func (r *Request) MarkProcessing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != NotStarted {
		return false
	}
	r.status = Processing
	r.start = time.Now()
	r.lastActivity = r.start
	r.cancelled = false
	r.completed = false
	return true
}

// ApplyHeaderDefaults fills in the header defaults every outgoing
// request needs: a default User-Agent if unset, Content-Length
// derived from the payload if unset and the payload's length is
// known, and Expect explicitly blanked. userAgent is the
// platform-default string to use when the caller did not set one.
func (r *Request) ApplyHeaderDefaults(userAgent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.header.Get("User-Agent") == "" && userAgent != "" {
		r.header.Set("User-Agent", userAgent)
	}
	if r.header.Get("Content-Length") == "" && r.payload != nil {
		if n, ok := r.payload.Len(); ok {
			r.header.Set("Content-Length", fmt.Sprintf("%d", n))
		}
	}
	r.header.Set("Expect", "")
}

// RequiresContentType reports whether the request needs an explicit
// Content-Type: a POST/PUT/PATCH/DELETE with a non-nil body that is
// not URL-encoded and has no Content-Type set.
func (r *Request) RequiresContentType() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.method {
	case "POST", "PUT", "PATCH", "DELETE":
	default:
		return false
	}
	if r.payload == nil {
		return false
	}
	if r.header.Get("Content-Type") != "" {
		return false
	}
	return !r.payload.IsURLEncoded()
}

// LastActivity returns the time of the last reported transport
// activity (header received, progress, or Process itself).
func (r *Request) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// Started returns the time Process transitioned this request to
// Processing. It is the zero time if Process has not yet succeeded.
func (r *Request) Started() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.start
}

// Elapsed returns the time since Process was called, frozen once the
// request reaches a terminal status.
func (r *Request) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.start.IsZero() {
		return 0
	}
	if !r.end.IsZero() {
		return r.end.Sub(r.start)
	}
	return time.Since(r.start)
}

// Response returns the response snapshot, which may be non-nil but
// not yet Ready if the request is still Processing, or nil if no
// response has been received.
func (r *Request) Response() *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response
}

// EnsureResponse returns the request's response, creating an empty
// one snapshotting the current URL/verb if none exists yet. It is
// called by the transport layer as soon as response headers start
// arriving.
func (r *Request) EnsureResponse() *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.response == nil {
		r.response = newResponse(r.url, r.method)
	}
	return r.response
}

// ReportHeader records a received response header and queues the
// OnHeaderReceived event for delivery on the next Tick. A
// Content-Length header additionally sets the response's content
// length, taking precedence over transport metadata and the count of
// bytes actually received.
func (r *Request) ReportHeader(name, value string) {
	resp := r.EnsureResponse()
	resp.setHeader(name, value)
	if strings.EqualFold(name, "Content-Length") {
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil && n >= 0 {
			resp.setContentLengthFromHeader(n)
		}
	}
	r.mu.Lock()
	r.lastActivity = time.Now()
	cb := r.onHeaderReceived
	r.pending = append(r.pending, func() {
		if cb != nil {
			cb(r, name, value)
		}
	})
	r.mu.Unlock()
}

// ReportProgress records transfer progress and queues the OnProgress
// event for delivery on the next Tick.
func (r *Request) ReportProgress(bytesSent, bytesReceived int64) {
	r.mu.Lock()
	r.lastActivity = time.Now()
	cb := r.onProgress
	r.pending = append(r.pending, func() {
		if cb != nil {
			cb(r, bytesSent, bytesReceived)
		}
	})
	r.mu.Unlock()
}

// ReportStatusCode records the HTTP status code on the response.
func (r *Request) ReportStatusCode(code int) {
	resp := r.EnsureResponse()
	resp.setCode(code)
}

// ReportContentLength records transport-reported content length
// metadata on the response. It is ignored once a Content-Length
// header has been received, which always takes precedence.
func (r *Request) ReportContentLength(n int64) {
	resp := r.EnsureResponse()
	resp.setContentLengthFromTransport(n)
}

// ReportBody appends received body bytes to the response.
func (r *Request) ReportBody(b []byte) {
	resp := r.EnsureResponse()
	resp.appendBody(b)
	r.mu.Lock()
	r.lastActivity = time.Now()
	r.mu.Unlock()
}

// SetLastError records the error that caused (or will cause) this
// attempt to fail, for inspection by a retry manager's transience
// classification. It has no effect on Status.
func (r *Request) SetLastError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = err
}

// LastError returns the error most recently recorded by SetLastError,
// or nil if none was recorded (including after ResetForRetry).
func (r *Request) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// SetTerminal transitions the request to a terminal status, freezing
// its end time and response. It is idempotent: if the request is
// already terminal, it has no effect, so a cancel racing a completion
// never overwrites the status the completion already set. It may be
// called from any goroutine.
func (r *Request) SetTerminal(status Status) {
	if !status.Terminal() {
		panic("httpx/request: SetTerminal requires a terminal status")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return
	}
	r.status = status
	if r.end.IsZero() {
		r.end = time.Now()
	}
	if r.response != nil {
		r.response.markReady()
	}
}

// Tick drains queued header and progress events and dispatches them
// to their callbacks. It must be called only from the main thread
// (the goroutine that owns the registering Manager).
func (r *Request) Tick(_ time.Duration) {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// FireComplete invokes the completion callback exactly once, with ok
// set according to whether the current status is Succeeded. It must
// be called only from the main thread, after the request has reached
// a terminal status.
func (r *Request) FireComplete() {
	r.mu.Lock()
	if r.completed {
		r.mu.Unlock()
		return
	}
	r.completed = true
	status := r.status
	resp := r.response
	cb := r.onComplete
	r.mu.Unlock()
	if cb != nil {
		cb(r, resp, status == Succeeded)
	}
}

// FireWillRetry invokes the will-retry callback. It must be called
// only from the main thread, normally by a retry manager.
func (r *Request) FireWillRetry(lockout time.Duration) {
	r.mu.Lock()
	cb := r.onWillRetry
	resp := r.response
	r.mu.Unlock()
	if cb != nil {
		cb(r, resp, lockout.Seconds())
	}
}

// OnComplete installs the completion callback, replacing any
// previously installed one.
func (r *Request) OnComplete(fn func(*Request, *Response, bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onComplete = fn
}

// OnProgress installs the progress callback, replacing any previously
// installed one.
func (r *Request) OnProgress(fn func(*Request, int64, int64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onProgress = fn
}

// OnHeaderReceived installs the per-header callback, replacing any
// previously installed one.
func (r *Request) OnHeaderReceived(fn func(*Request, string, string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onHeaderReceived = fn
}

// OnWillRetry installs the will-retry callback, replacing any
// previously installed one. It is only ever invoked for
// retry-wrapped requests.
func (r *Request) OnWillRetry(fn func(*Request, *Response, float64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onWillRetry = fn
}

// ClearDelegates removes every installed callback. It is used by
// Manager.Flush(Shutdown) to prevent callbacks from firing into
// torn-down application state.
func (r *Request) ClearDelegates() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onComplete = nil
	r.onProgress = nil
	r.onHeaderReceived = nil
	r.onWillRetry = nil
}

// ResetForRetry returns a terminal request to NotStarted so that it
// may be Processed again, optionally rewriting its URL (for
// retry-domain failover). It is intended for use only by a retry
// manager between attempts of the same logical request, and panics if
// the request is not currently in a terminal status.
func (r *Request) ResetForRetry(newURL *urlpkg.URL) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.Terminal() {
		panic("httpx/request: ResetForRetry called on a non-terminal request")
	}
	if newURL != nil {
		u := *newURL
		r.url = &u
	}
	r.status = NotStarted
	r.start = time.Time{}
	r.end = time.Time{}
	r.response = nil
	r.lastErr = nil
	r.cancelled = false
	r.completed = false
}
