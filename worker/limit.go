// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package worker

import "time"

// A Limit specifies the maximum number of admissions allowed per unit
// time, e.g. HttpMaxConnectionsPerServer enforced over a rolling
// window rather than instantaneously. It throttles admission from the
// ready set into the running set.
type Limit struct {
	MaxAdmissions int
	Period        time.Duration
}

type limitQueue struct {
	antiPeriod time.Duration
	a          []time.Time
	start, len int
}

func newLimitQueue(period time.Duration, cap int) limitQueue {
	if cap <= 0 {
		cap = 1
	}
	return limitQueue{
		antiPeriod: -period,
		a:          make([]time.Time, cap),
	}
}

// accept reports whether an admission at time t is allowed under this
// limit, and if so records it.
func (q *limitQueue) accept(t *time.Time) bool {
	cutoff := t.Add(q.antiPeriod)
	n := min(q.start+q.len, len(q.a))
	for i := q.start; i < n; i++ {
		if !cutoff.Before(q.a[i]) {
			q.start++
			q.len--
		}
	}
	if q.start >= len(q.a) {
		q.start = 0
		n = q.len
		for j := 0; j < n; j++ {
			if !cutoff.Before(q.a[j]) {
				q.start++
				q.len--
			}
		}
	}
	if q.len < len(q.a) {
		i := (q.start + q.len) % len(q.a)
		q.a[i] = *t
		q.len++
		return true
	}
	return false
}

func min(x, y int) int {
	if x <= y {
		return x
	}
	return y
}
