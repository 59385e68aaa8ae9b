// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

// A Status identifies the current state of a Request in its state
// machine.
//
//	NotStarted --Process--> Processing --response w/ full headers--> Succeeded
//	                                   --connect failure-----------> FailedConnectionError
//	                                   --mid-stream failure---------> Failed
//	                                   --Cancel---------------------> Failed
//	                                   --Timeout---------------------> Failed
//
// Any HTTP status code delivered with full headers is a success of
// the HTTP transaction at this layer; application-level failure
// (4xx/5xx) is conveyed via the response code, not the Status.
type Status int

const (
	// NotStarted is the status of a newly-created Request, before
	// Process is first called.
	NotStarted Status = iota
	// Processing is the status of a Request between a call to
	// Process and the corresponding terminal status.
	Processing
	// FailedConnectionError is a terminal status indicating the
	// transport failed to establish a connection (DNS, connect, TLS,
	// or proxy failure).
	FailedConnectionError
	// Failed is a terminal status indicating the attempt failed
	// after a connection was established (a mid-stream read/write
	// error), was cancelled, or timed out.
	Failed
	// Succeeded is a terminal status indicating the transport
	// completed the HTTP transaction and delivered a response,
	// regardless of the response's HTTP status code.
	Succeeded
)

var statusNames = []string{
	"NotStarted",
	"Processing",
	"FailedConnectionError",
	"Failed",
	"Succeeded",
}

// String returns the name of the status.
func (s Status) String() string {
	if int(s) < 0 || int(s) >= len(statusNames) {
		return "Unknown"
	}
	return statusNames[s]
}

// Terminal reports whether s is one of the terminal statuses
// (FailedConnectionError, Failed, Succeeded).
func (s Status) Terminal() bool {
	return s == FailedConnectionError || s == Failed || s == Succeeded
}
