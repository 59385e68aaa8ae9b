// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/playforge/httpx"
	"github.com/playforge/httpx/request"
)

// newFileUploadCommand implements HTTP FILEUPLOAD <url> <path>
// [verb]: a streaming upload smoke test.
func newFileUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fileupload <url> <path> [verb]",
		Short: "Stream a file's contents as the body of a request",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, path := args[0], args[1]
			verb := "POST"
			if len(args) > 2 {
				verb = args[2]
			}

			mod := httpx.Get()
			r := mod.CreateRequest()
			r.SetVerb(verb)
			if err := r.SetURL(url); err != nil {
				return err
			}
			if err := r.SetContentAsStreamedFile("application/octet-stream", path); err != nil {
				return err
			}

			var status request.Status
			r.OnComplete(func(req *request.Request, _ *request.Response, _ bool) {
				status = req.Status()
			})
			if !r.Process() {
				return fmt.Errorf("httpxctl: upload was rejected at submit")
			}

			waitFor(60*time.Second, func() bool { return status.Terminal() }, func() { mod.Manager().Tick(0) })
			fmt.Fprintf(cmd.OutOrStdout(), "upload finished with status %s\n", status)
			return nil
		},
	}
}
