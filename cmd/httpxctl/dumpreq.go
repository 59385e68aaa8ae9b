// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/playforge/httpx"
)

// newDumpReqCommand implements HTTP DUMPREQ: list outstanding
// requests (verb, URL, status).
func newDumpReqCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dumpreq",
		Short: "List outstanding requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := httpx.Get().Manager()
			reqs := mgr.Requests()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VERB\tURL\tSTATUS")
			for _, r := range reqs {
				u := r.URL()
				urlStr := ""
				if u != nil {
					urlStr = u.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Verb(), urlStr, r.Status())
			}
			return w.Flush()
		},
	}
}
