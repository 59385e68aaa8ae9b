// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"errors"
	"io"
	"os"
	"sync"
)

// A PayloadSource is a lazy, possibly streaming source of request
// body bytes.
//
// FillOutputBuffer may be called repeatedly by the transport as it
// sends the request body; alreadySent is the number of bytes the
// transport has already consumed from this source on this attempt.
// Implementations that do not need it (because they track their own
// read position) may ignore it.
//
// Seek rewinds the source to the beginning, for use when a transport
// needs to restart an upload after a redirect or an early-closed
// connection. A seekable source must support exactly one Seek call;
// a second call returns an error. A non-seekable source always
// returns an error from Seek, and the caller (the transport, via the
// request state machine) must fail the request rather than retry the
// body from the start.
type PayloadSource interface {
	// FillOutputBuffer reads up to len(dst) bytes into dst and
	// returns the number of bytes written, and an error if the
	// underlying source failed. io.EOF is not an error; it is
	// signalled by returning n == 0 with a nil error. A short read
	// (0 < n < len(dst)) does not mean the source is exhausted.
	FillOutputBuffer(dst []byte, alreadySent int64) (n int, err error)

	// Len returns the total length of the payload in bytes, and
	// whether the length is known. An archive-style streaming source
	// may not know its length up front.
	Len() (size int64, ok bool)

	// Seekable reports whether Seek can be called on this source.
	Seekable() bool

	// Seek rewinds the source to its beginning. It may be called at
	// most once over the lifetime of the source; subsequent calls
	// return an error. Calling Seek on a non-seekable source always
	// returns an error.
	Seek() error

	// IsURLEncoded reports whether the payload, considered as a
	// byte string, consists entirely of characters from the
	// URL-encoded alphabet ([A-Za-z0-9\-_.~]). Streaming sources
	// that cannot inspect their content up front report false.
	IsURLEncoded() bool
}

var errNotSeekable = errors.New("httpx/request: payload source is not seekable")
var errAlreadySought = errors.New("httpx/request: payload source already sought once")

// bytesPayload is an in-memory, seekable PayloadSource.
type bytesPayload struct {
	b      []byte
	pos    int64
	sought bool
	mu     sync.Mutex
}

// NewBytesPayload wraps b as an in-memory, seekable PayloadSource.
// The returned source does not copy b; the caller must not mutate b
// after passing it in.
func NewBytesPayload(b []byte) PayloadSource {
	return &bytesPayload{b: b}
}

func (p *bytesPayload) FillOutputBuffer(dst []byte, _ int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(dst, p.b[p.pos:])
	p.pos += int64(n)
	return n, nil
}

func (p *bytesPayload) Len() (int64, bool) {
	return int64(len(p.b)), true
}

func (p *bytesPayload) Seekable() bool {
	return true
}

func (p *bytesPayload) Seek() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sought {
		return errAlreadySought
	}
	p.sought = true
	p.pos = 0
	return nil
}

func (p *bytesPayload) IsURLEncoded() bool {
	return IsURLEncoded(p.b)
}

// streamPayload is a non-seekable PayloadSource backed by an
// io.Reader, e.g. a file or archive stream whose total length may or
// may not be known ahead of time.
type streamPayload struct {
	r      io.Reader
	size   int64
	sizeOK bool
	mu     sync.Mutex
}

// NewStreamPayload wraps r as a non-seekable PayloadSource. size and
// sizeOK describe the total payload length if known; pass sizeOK
// false if the length cannot be determined in advance, e.g. for a
// length-unknown archive stream.
func NewStreamPayload(r io.Reader, size int64, sizeOK bool) PayloadSource {
	return &streamPayload{r: r, size: size, sizeOK: sizeOK}
}

func (p *streamPayload) FillOutputBuffer(dst []byte, _ int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.r.Read(dst)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (p *streamPayload) Len() (int64, bool) {
	return p.size, p.sizeOK
}

func (p *streamPayload) Seekable() bool {
	return false
}

func (p *streamPayload) Seek() error {
	return errNotSeekable
}

func (p *streamPayload) IsURLEncoded() bool {
	return false
}

// filePayload streams a file as a request body, closing the file once
// it has been read through to the end.
type filePayload struct {
	f      *os.File
	size   int64
	closed bool
	mu     sync.Mutex
}

// NewFilePayload wraps an open file of the given size as a
// non-seekable PayloadSource. The payload takes ownership of f and
// closes it on the first FillOutputBuffer call that finds no more
// bytes to read.
func NewFilePayload(f *os.File, size int64) PayloadSource {
	return &filePayload{f: f, size: size}
}

func (p *filePayload) FillOutputBuffer(dst []byte, _ int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, nil
	}
	n, err := p.f.Read(dst)
	if err == io.EOF {
		err = nil
	}
	if n == 0 && err == nil {
		p.closed = true
		_ = p.f.Close()
	}
	return n, err
}

func (p *filePayload) Len() (int64, bool) {
	return p.size, true
}

func (p *filePayload) Seekable() bool {
	return false
}

func (p *filePayload) Seek() error {
	return errNotSeekable
}

func (p *filePayload) IsURLEncoded() bool {
	return false
}

// IsURLEncoded reports whether every byte of body belongs to the
// URL-encoded alphabet [A-Za-z0-9\-_.~]. An empty body is considered
// URL-encoded.
func IsURLEncoded(body []byte) bool {
	for _, b := range body {
		if !isURLEncodedByte(b) {
			return false
		}
	}
	return true
}

func isURLEncodedByte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z':
		return true
	case b >= 'a' && b <= 'z':
		return true
	case b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_' || b == '.' || b == '~':
		return true
	default:
		return false
	}
}
