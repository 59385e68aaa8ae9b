// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/playforge/httpx"
	"github.com/playforge/httpx/manager"
)

// newFlushCommand implements HTTP FLUSH: Flush(Default).
func newFlushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Flush outstanding requests with the Default reason",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := httpx.Get().Manager().Flush(manager.Default)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), err)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "flush complete")
			return nil
		},
	}
}
