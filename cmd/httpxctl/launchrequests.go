// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/playforge/httpx"
	"github.com/playforge/httpx/request"
)

// newLaunchRequestsCommand implements HTTP LAUNCHREQUESTS <verb>
// <url> <N> [cancel]: a stress test that launches N requests and,
// when cancel is truthy, immediately cancels half of them.
func newLaunchRequestsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "launchrequests <verb> <url> <n> [cancel]",
		Short: "Launch N requests, optionally cancelling half immediately",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			verb, url := args[0], args[1]
			n, err := strconv.Atoi(args[2])
			if err != nil || n < 1 {
				return fmt.Errorf("httpxctl: invalid count %q", args[2])
			}
			cancel := false
			if len(args) > 3 {
				cancel, _ = strconv.ParseBool(args[3])
			}

			mod := httpx.Get()
			var done int64
			reqs := make([]*request.Request, n)
			for i := 0; i < n; i++ {
				r := mod.CreateRequest()
				r.SetVerb(verb)
				if err := r.SetURL(url); err != nil {
					return err
				}
				r.OnComplete(func(*request.Request, *request.Response, bool) {
					atomic.AddInt64(&done, 1)
				})
				reqs[i] = r
			}
			for _, r := range reqs {
				r.Process()
			}
			if cancel {
				for i := 0; i < n; i += 2 {
					reqs[i].Cancel()
				}
			}

			waitFor(30*time.Second, func() bool { return atomic.LoadInt64(&done) >= int64(n) }, func() { mod.Manager().Tick(0) })
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d requests completed\n", done, n)
			return nil
		},
	}
}
