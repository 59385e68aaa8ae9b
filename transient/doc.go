// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient classifies errors arising during HTTP request
// execution as transient or non-transient, and further distinguishes
// errors that occurred before a connection was established from
// errors that occurred mid-stream.
//
// This is used by the retry manager to decide whether a failed
// attempt is worth retrying, and by the I/O worker's outcome
// classification to decide between FailedConnectionError and Failed.
//
// Package transient is extremely lightweight: it depends only on the
// standard library packages "errors" and "syscall".
package transient
