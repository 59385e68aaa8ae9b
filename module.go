// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpx

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/playforge/httpx/manager"
	"github.com/playforge/httpx/request"
	"github.com/playforge/httpx/timeout"
	"github.com/playforge/httpx/transport"
)

// nullTransport backs Config.UseNullHTTP (bUseNullHttp): every
// attempt fails immediately with a connection error, without
// touching the network.
type nullTransport struct{}

var errNullHTTP = errors.New("httpx: null HTTP backend, no request sent")

func (nullTransport) Do(_ context.Context, _ *request.Request) error {
	return errNullHTTP
}

// A Module is the process-wide HTTP core: one Config and one
// manager.Manager, constructed lazily on first use.
type Module struct {
	mu  sync.Mutex
	cfg Config
	mgr *manager.Manager
}

var (
	singleton     *Module
	singletonOnce sync.Once
)

// Get returns the process-wide Module, constructing it with
// DefaultConfig on first call.
func Get() *Module {
	singletonOnce.Do(func() {
		singleton = newModule(DefaultConfig())
	})
	return singleton
}

func newModule(cfg Config) *Module {
	m := &Module{cfg: cfg}
	m.mgr = buildManager(cfg)
	return m
}

func buildManager(cfg Config) *manager.Manager {
	var tr transport.Transport
	if cfg.UseNullHTTP {
		tr = nullTransport{}
	} else {
		tr = transport.NewHTTPTransport(transport.Options{
			AcceptCompressedContent: cfg.AcceptCompressedContent,
			VerifyPeer:              cfg.VerifyPeer,
			BufferSize:              cfg.BufferSize,
			AllowSeekFunction:       cfg.AllowSeekFunction,
			MaxTotalConnections:     cfg.MaxTotalConnections,
			BindAddress:             cfg.BindAddress,
			ProxyURL:                cfg.ProxyAddress,
			ConnectTimeout:          cfg.ConnectionTimeout,
			DisableKeepAlives:       cfg.NoReuseConnections,
		})
	}

	total := cfg.HTTPTimeout
	if total <= 0 {
		total = timeout.DefaultPolicy.Total(nil)
	}
	inactivity := cfg.ReceiveTimeout
	if cfg.NoTimeouts {
		inactivity = 0
	}
	policy := timeout.WithOverride(timeout.Fixed(total, inactivity))

	return manager.New(manager.Options{
		Transport:       tr,
		TimeoutPolicy:   policy,
		Concurrency:     cfg.MaxConnectionsPerServer,
		ActiveBudget:    cfg.ThreadActiveFrameTime,
		IdleBudget:      cfg.ThreadIdleFrameTime,
		MinSleep:        cfg.ThreadActiveMinimumSleepTime,
		DelayTime:       cfg.DelayTime,
		Cooperative:     cfg.Cooperative,
		EnableHTTP:      cfg.EnableHTTP,
		AllowedDomains:  cfg.AllowedDomains,
		Shipping:        cfg.Shipping,
		FlushLimits:     cfg.flushLimits(),
		CleanupInterval: cfg.RequestCleanupDelay,
		Logger:          cfg.Logger,
	})
}

// Manager returns the Module's manager.Manager.
func (m *Module) Manager() *manager.Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mgr
}

// Config returns a copy of the Module's current configuration.
func (m *Module) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// CreateRequest creates a Request bound to the Module's manager, with
// Config.DefaultHeaders and Config.Logger already applied.
func (m *Module) CreateRequest() *request.Request {
	mgr := m.Manager()
	cfg := m.Config()
	r := mgr.NewRequest()
	r.SetLogger(cfg.Logger)
	for name, value := range cfg.DefaultHeaders {
		r.SetHeader(name, value)
	}
	return r
}

// SetConfig replaces the Module's Config wholesale and rebuilds the
// owned manager (and its worker and transport) to apply it. Every
// other Set* method except SetDefaultHeaders is a thin wrapper around
// this one; SetDefaultHeaders updates the Config in place without
// rebuilding the manager.
func (m *Module) SetConfig(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.mgr = buildManager(cfg)
	m.mu.Unlock()
}

// SetHTTPTimeout overrides Config.HTTPTimeout.
func (m *Module) SetHTTPTimeout(d time.Duration) {
	cfg := m.Config()
	cfg.HTTPTimeout = d
	m.SetConfig(cfg)
}

// SetMaxConnectionsPerServer overrides Config.MaxConnectionsPerServer.
func (m *Module) SetMaxConnectionsPerServer(n int) {
	cfg := m.Config()
	cfg.MaxConnectionsPerServer = n
	m.SetConfig(cfg)
}

// SetThreadPacing overrides the I/O worker's active and idle frame
// budgets together.
func (m *Module) SetThreadPacing(activeFrame, idleFrame time.Duration) {
	cfg := m.Config()
	cfg.ThreadActiveFrameTime = activeFrame
	cfg.ThreadIdleFrameTime = idleFrame
	m.SetConfig(cfg)
}

// SetProxyAddress overrides Config.ProxyAddress. Backs -httpproxy.
func (m *Module) SetProxyAddress(addr string) {
	cfg := m.Config()
	cfg.ProxyAddress = addr
	m.SetConfig(cfg)
}

// SetAllowedDomains overrides Config.AllowedDomains.
func (m *Module) SetAllowedDomains(domains []string) {
	cfg := m.Config()
	cfg.AllowedDomains = domains
	m.SetConfig(cfg)
}

// SetDefaultHeaders overrides Config.DefaultHeaders, applied to
// requests created by CreateRequest from this point on.
func (m *Module) SetDefaultHeaders(headers map[string]string) {
	m.mu.Lock()
	m.cfg.DefaultHeaders = headers
	m.mu.Unlock()
}

// ParseURL is a small convenience wrapper, since Request.SetURL wants
// a raw string but callers building a Request from CLI/config input
// usually have a url.URL. It exists to avoid importing net/url at
// every call site.
func ParseURL(rawURL string) (*url.URL, error) {
	return url.Parse(rawURL)
}
