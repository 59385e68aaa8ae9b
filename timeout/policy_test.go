// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"math"
	"testing"
	"time"

	"github.com/playforge/httpx/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	r := request.NewRequest()
	assert.Equal(t, 300*time.Second, DefaultPolicy.Total(r))
	assert.Equal(t, time.Duration(0), DefaultPolicy.Inactivity(r))
}

func TestInfinite(t *testing.T) {
	r := request.NewRequest()
	assert.Equal(t, time.Duration(math.MaxInt64), Infinite.Total(r))
	assert.Equal(t, time.Duration(0), Infinite.Inactivity(r))
}

func TestFixed(t *testing.T) {
	p := Fixed(33*time.Hour, 2*time.Minute)
	r := request.NewRequest()
	assert.Equal(t, 33*time.Hour, p.Total(r))
	assert.Equal(t, 2*time.Minute, p.Inactivity(r))
}

func TestWithOverride_UsesRequestTimeoutWhenSet(t *testing.T) {
	base := Fixed(10*time.Second, time.Second)
	p := WithOverride(base)

	r := request.NewRequest()
	require.NoError(t, r.SetURL("https://example.com/"))
	assert.Equal(t, 10*time.Second, p.Total(r), "falls back to base when no override is set")

	r.SetTimeout(2.5)
	assert.Equal(t, 2500*time.Millisecond, p.Total(r), "uses the request's own override once set")
	assert.Equal(t, time.Second, p.Inactivity(r), "inactivity is always deferred to the base policy")
}
