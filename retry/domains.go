// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import "sync/atomic"

// Domains is a set of equivalent hostnames (host[:port]) a Manager
// fails a retry-wrapped request over to on a connection error.
// Domains are cycled through in order; once an attempt succeeds on a
// domain, the set remains on that domain until it produces another
// connection error.
//
// A Domains is safe for concurrent use by multiple Entry instances
// tracking independent positions within the same set.
type Domains struct {
	hosts  []string
	active atomic.Int32
}

// NewDomains constructs a Domains cycling through hosts in the given
// order, starting at hosts[0]. NewDomains panics if hosts is empty.
func NewDomains(hosts ...string) *Domains {
	if len(hosts) == 0 {
		panic("httpx/retry: empty domain set")
	}
	cp := make([]string, len(hosts))
	copy(cp, hosts)
	return &Domains{hosts: cp}
}

// Len returns the number of hosts in the set.
func (d *Domains) Len() int {
	return len(d.hosts)
}

// Host returns the host at position i, modulo the set size.
func (d *Domains) Host(i int32) string {
	n := int32(len(d.hosts))
	i %= n
	if i < 0 {
		i += n
	}
	return d.hosts[i]
}

// ActiveIndex returns the index most recently settled on by any
// entry sharing this Domains.
func (d *Domains) ActiveIndex() int32 {
	return d.active.Load()
}

// advance moves from domain index cur to the next domain in the set,
// attempting to also move the set's shared active index if no other
// entry has moved it in the meantime. It returns the new index to use.
// Advancing the caller's own position is unconditional, but the
// shared ActiveIndex only moves via a compare-and-swap, so that
// concurrent entries converge rather than fight over which domain is
// "active".
func (d *Domains) advance(cur int32) int32 {
	next := (cur + 1) % int32(len(d.hosts))
	d.active.CompareAndSwap(cur, next)
	return next
}
