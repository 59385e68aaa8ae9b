// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"errors"
	"syscall"
)

// A Category is the transience category of a particular error, as
// reported by Categorize.
//
// The category Not means the error is not transient from the
// perspective of completing an HTTP request attempt successfully, or
// in other words that a retry after encountering this error is very
// unlikely to succeed. All other categories indicate the error is
// transient, meaning a retry has some prospect of success.
type Category int

const (
	// Not indicates a non-transient error.
	Not Category = iota
	// Timeout indicates a client-side timeout, either the inactivity
	// timeout or the total request timeout. The server may be going
	// through a temporary period of slowness.
	//
	// Categorize returns Timeout if the first error in err's chain
	// (err itself or a wrapped cause) that has a Timeout() bool method
	// reports true; causes below that one are not asked.
	Timeout
	// ConnRefused indicates the remote host refused the connection,
	// corresponding to the POSIX error code ECONNREFUSED.
	//
	// Connection refusal is classified as transient because it often
	// happens while a remote service is starting or restarting and is
	// temporarily not listening on the relevant port.
	ConnRefused
	// ConnReset indicates the remote host reset a previously active
	// TCP connection, corresponding to the POSIX error code
	// ECONNRESET.
	//
	// A connection reset often means the remote process died or was
	// redeployed mid-request, and tends to have a good chance of
	// succeeding on retry.
	ConnReset
	// Aborted indicates the connection was aborted mid-stream,
	// corresponding to the POSIX error codes ECONNABORTED or EPIPE.
	// Unlike ConnRefused and ConnReset, an Aborted error occurs after
	// a connection was already established, so a retry of a
	// non-idempotent request risks double-processing on the server.
	Aborted
)

var categoryNames = []string{
	"Not",
	"Timeout",
	"ConnRefused",
	"ConnReset",
	"Aborted",
}

// String returns the name of the category.
func (c Category) String() string {
	if int(c) < 0 || int(c) >= len(categoryNames) {
		return "Unknown"
	}
	return categoryNames[c]
}

// Categorize returns the transience category of the given error. All
// non-nil transient errors result in a transience category other
// than Not. A nil error, and an error that is not transient from the
// perspective of completing an HTTP request attempt, both produce the
// return value Not.
//
// In assessing transience, Categorize looks at wrapped cause errors
// contained within err, not just err itself. However, Categorize
// never checks whether an error has a Temporary() method that returns
// true, as the semantics of Temporary() are not clearly defined
// across the standard library.
func Categorize(err error) Category {
	if err == nil {
		return Not
	}

	var hasTimeout hasTimeout
	if errors.As(err, &hasTimeout) && hasTimeout.Timeout() {
		return Timeout
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET:
			return ConnReset
		case syscall.ECONNREFUSED:
			return ConnRefused
		case syscall.ECONNABORTED, syscall.EPIPE:
			return Aborted
		}
	}

	return Not
}

// ConnectPhase returns true if category c represents a failure that
// occurred before any bytes of a response were received from the
// server, i.e. a connection-establishment failure as opposed to a
// mid-stream protocol failure.
func (c Category) ConnectPhase() bool {
	return c == ConnRefused || c == ConnReset
}

type hasTimeout interface {
	Timeout() bool
}
