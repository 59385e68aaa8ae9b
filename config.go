// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpx

import (
	"log/slog"
	"time"

	"github.com/playforge/httpx/manager"
)

// Config holds every tunable of the HTTP core. Config's zero value is
// not valid; use DefaultConfig to obtain a populated one.
type Config struct {
	// HTTPTimeout is the total per-request wall-clock budget. Zero
	// means "use the backend default" (the underlying -1-means-unset
	// convention is represented here as zero, since Go has no natural
	// negative duration for "unset").
	HTTPTimeout time.Duration
	// ConnectionTimeout bounds TCP connection establishment; the TLS
	// handshake is not covered by it.
	ConnectionTimeout time.Duration
	// ReceiveTimeout bounds inactivity on the response side.
	ReceiveTimeout time.Duration
	// SendTimeout bounds inactivity on the request side. Carried for
	// parity with the send-side timeout knob; the bundled
	// HTTPTransport does not distinguish send from receive inactivity.
	SendTimeout time.Duration

	// MaxConnectionsPerServer is HttpMaxConnectionsPerServer. Default 16.
	MaxConnectionsPerServer int

	// EnableHTTP is the master switch (bEnableHttp).
	EnableHTTP bool
	// UseNullHTTP substitutes a no-op transport that fails every
	// request immediately, for running without real network access.
	UseNullHTTP bool

	// Cooperative selects an I/O worker with no goroutine of its own,
	// ticked inline from Manager.Tick instead of running on a
	// background thread. For platforms where spawning a real
	// background thread is unavailable or undesirable.
	Cooperative bool

	// ThreadActiveFrameTime and ThreadActiveMinimumSleepTime pace the
	// I/O worker while it has work in flight or ready.
	ThreadActiveFrameTime        time.Duration
	ThreadActiveMinimumSleepTime time.Duration
	// ThreadIdleFrameTime paces the I/O worker while it is idle.
	// ThreadIdleMinimumSleepTime is not forwarded to the worker: the
	// worker applies ThreadActiveMinimumSleepTime as its one minimum
	// sleep, whether the pass was active or idle.
	ThreadIdleFrameTime        time.Duration
	ThreadIdleMinimumSleepTime time.Duration

	// AllowedDomains is the domain allow-list of suffixes. Empty means
	// unrestricted.
	AllowedDomains []string

	// FlushSoftTimeLimit and FlushHardTimeLimit supply the (soft, hard)
	// budget for each manager.Reason.
	FlushSoftTimeLimit map[manager.Reason]time.Duration
	FlushHardTimeLimit map[manager.Reason]time.Duration

	// RequestCleanupDelay is the main-thread sleep during flush
	// polling of a non-cooperative worker.
	RequestCleanupDelay time.Duration

	// AcceptCompressedContent, VerifyPeer, BufferSize,
	// AllowSeekFunction, and MaxTotalConnections are transport-layer
	// knobs, forwarded to transport.Options.
	AcceptCompressedContent bool
	VerifyPeer              bool
	BufferSize              int
	AllowSeekFunction       bool
	MaxTotalConnections     int

	// ProxyAddress, if non-empty, overrides the environment-derived
	// proxy for every request. Backs -httpproxy.
	ProxyAddress string

	// NoReuseConnections disables connection pooling, forcing a fresh
	// connection per attempt. Backs -noreuseconn.
	NoReuseConnections bool

	// NoTimeouts disables inactivity timeouts in dev builds. Backs
	// -NoTimeouts.
	NoTimeouts bool

	// BindAddress is the local interface address outgoing connections
	// are bound to, for multi-homed hosts. Backs -multihome-http.
	BindAddress string

	// DelayTime is an extra minimum time, measured from a request's
	// Started time, that must elapse before its completion is
	// published. Zero means no floor.
	DelayTime time.Duration

	// Shipping disables the CLI/dev domain-restriction override.
	Shipping bool

	// DefaultHeaders are applied to every request created through
	// Module.CreateRequest, before any caller-set header.
	DefaultHeaders map[string]string

	// Logger receives the warnings the core emits (setter calls on an
	// in-flight request, rejected submissions, abandoned flush
	// entries). Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config populated with every documented
// default.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:                  300 * time.Second,
		MaxConnectionsPerServer:      16,
		EnableHTTP:                   true,
		ThreadActiveFrameTime:        20 * time.Millisecond,
		ThreadActiveMinimumSleepTime: time.Millisecond,
		ThreadIdleFrameTime:          100 * time.Millisecond,
		ThreadIdleMinimumSleepTime:   10 * time.Millisecond,
		FlushSoftTimeLimit: map[manager.Reason]time.Duration{
			manager.Default:    2 * time.Second,
			manager.Background: 5 * time.Second,
			manager.Shutdown:   5 * time.Second,
			manager.FullFlush:  -1,
		},
		FlushHardTimeLimit: map[manager.Reason]time.Duration{
			manager.Default:    4 * time.Second,
			manager.Background: 10 * time.Second,
			manager.Shutdown:   10 * time.Second,
			manager.FullFlush:  -1,
		},
		RequestCleanupDelay:     500 * time.Millisecond,
		AcceptCompressedContent: true,
		VerifyPeer:              true,
		MaxTotalConnections:     16,
		Logger:                  slog.Default(),
	}
}

func (c Config) flushLimits() map[manager.Reason]manager.FlushLimit {
	out := make(map[manager.Reason]manager.FlushLimit, len(c.FlushHardTimeLimit))
	for reason, hard := range c.FlushHardTimeLimit {
		out[reason] = manager.FlushLimit{Soft: c.FlushSoftTimeLimit[reason], Hard: hard}
	}
	return out
}
