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

// newTestCommand implements the HTTP TEST [n] [url] console command:
// fire N GETs and report how many succeeded.
func newTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test [n] [url]",
		Short: "Fire N GETs at url and report results",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 1
			url := "https://www.example.com"
			if len(args) > 0 {
				var err error
				n, err = strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("httpxctl: invalid count %q", args[0])
				}
			}
			if len(args) > 1 {
				url = args[1]
			}

			mod := httpx.Get()
			var ok, failed int64
			for i := 0; i < n; i++ {
				r := mod.CreateRequest()
				if err := r.SetURL(url); err != nil {
					return err
				}
				r.OnComplete(func(req *request.Request, _ *request.Response, _ bool) {
					if req.Status() == request.Succeeded {
						atomic.AddInt64(&ok, 1)
					} else {
						atomic.AddInt64(&failed, 1)
					}
				})
				r.Process()
			}

			waitFor(30*time.Second, func() bool {
				return atomic.LoadInt64(&ok)+atomic.LoadInt64(&failed) >= int64(n)
			}, func() { mod.Manager().Tick(0) })

			fmt.Fprintf(cmd.OutOrStdout(), "%d succeeded, %d failed, out of %d\n", ok, failed, n)
			return nil
		},
	}
}
