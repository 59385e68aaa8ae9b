// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout defines the timeout policies applied to requests by
// the manager and I/O worker: a total wall-clock budget per request,
// and an inactivity budget measured since the last transport activity.
// A generic interface for timeout policies is provided, Policy, along
// with several useful policy generating functions and built-in
// policies.
package timeout
