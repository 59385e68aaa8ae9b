// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import "time"

// Options configures an HTTPTransport's underlying net/http.Transport.
// Most fields map directly onto an equivalent net/http.Transport (or
// net.Dialer) field; a few correspond to knobs the original game-engine
// HTTP backend exposed that do not exist in net/http's default
// behavior and are implemented directly by HTTPTransport.
type Options struct {
	// AcceptCompressedContent enables transparent gzip negotiation and
	// decompression. If false, compression is disabled entirely
	// (net/http.Transport.DisableCompression is set).
	AcceptCompressedContent bool

	// VerifyPeer enables TLS certificate verification. Disabling it is
	// only ever appropriate against known-trusted endpoints in a
	// non-shipping build; HTTPTransport does not enforce that policy
	// itself, callers (typically the Config layer) must.
	VerifyPeer bool

	// BufferSize is the chunk size, in bytes, used to read the
	// response body and relay it to ReportBody/ReportProgress. Zero
	// selects a sensible default.
	BufferSize int

	// AllowSeekFunction enables GetBody-based body replay when the
	// payload is Seekable, allowing net/http to resend the body after
	// a redirect. If false, net/http does not follow a 307 or 308
	// redirect of a request with a body: the redirect response itself
	// becomes the attempt's result.
	AllowSeekFunction bool

	// MaxTotalConnections, if positive, sets both the per-host bound
	// on open connections (net/http.Transport.MaxConnsPerHost) and the
	// bound on idle connections across all hosts (MaxIdleConns). Open
	// connections are not capped cumulatively across hosts. Zero
	// leaves net/http's defaults in place.
	MaxTotalConnections int

	// BindAddress, if non-empty, is the local address the transport's
	// dialer binds outgoing connections to, enabling the multi-homed
	// client behavior where requests are made to originate from a
	// specific network interface.
	BindAddress string

	// ConnectTimeout bounds establishing the TCP connection (it is the
	// dialer's timeout); the TLS handshake is not covered by it. Zero
	// means no specific limit beyond the context deadline supplied to
	// Do.
	ConnectTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for response headers after
	// the request has been fully sent. Zero means no specific limit.
	ResponseHeaderTimeout time.Duration

	// ProxyURL, if non-empty, is used as a fixed HTTP/HTTPS proxy for
	// every request, overriding the environment-derived proxy that
	// net/http would otherwise select.
	ProxyURL string

	// DisableKeepAlives forces a fresh connection for every attempt
	// instead of reusing pooled ones. Backs -noreuseconn.
	DisableKeepAlives bool
}

// DefaultBufferSize is used when Options.BufferSize is zero.
const DefaultBufferSize = 32 * 1024
