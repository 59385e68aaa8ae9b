// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package main implements httpxctl, a thin command-line and console
// front end over the public httpx API; no request/retry/flush logic
// lives here; every subcommand is a wrapper around httpx.Module,
// manager.Manager, and request.Request.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/playforge/httpx"
)

type globalFlags struct {
	httpProxy             string
	enableDomainRestrict  bool
	disableDomainRestrict bool
	noTimeouts            bool
	noReuseConn           bool
	multihomeAddr         string
}

func newRootCommand() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:           "httpxctl",
		Short:         "Console and CLI front end for the httpx HTTP core",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyGlobalFlags(httpx.Get(), &flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.httpProxy, "httpproxy", "", "override proxy (host:port)")
	cmd.PersistentFlags().BoolVar(&flags.enableDomainRestrict, "enable-http-domain-restrictions", false, "enforce the domain allow-list")
	cmd.PersistentFlags().BoolVar(&flags.disableDomainRestrict, "disable-http-domain-restrictions", false, "bypass the domain allow-list (rejected in a shipping build)")
	cmd.PersistentFlags().BoolVar(&flags.noTimeouts, "no-timeouts", false, "disable inactivity timeouts")
	cmd.PersistentFlags().BoolVar(&flags.noReuseConn, "noreuseconn", false, "disable connection reuse (one connection per attempt)")
	cmd.PersistentFlags().StringVar(&flags.multihomeAddr, "multihome-http", "", "bind outgoing connections to this local address")

	cmd.AddCommand(newTestCommand())
	cmd.AddCommand(newDumpReqCommand())
	cmd.AddCommand(newFlushCommand())
	cmd.AddCommand(newFileUploadCommand())
	cmd.AddCommand(newLaunchRequestsCommand())

	return cmd
}

func applyGlobalFlags(mod *httpx.Module, flags *globalFlags) error {
	if flags.enableDomainRestrict && flags.disableDomainRestrict {
		return fmt.Errorf("httpxctl: --enable-http-domain-restrictions and --disable-http-domain-restrictions are mutually exclusive")
	}
	if flags.disableDomainRestrict && mod.Config().Shipping {
		return fmt.Errorf("httpxctl: --disable-http-domain-restrictions is rejected in a shipping build")
	}

	if flags.httpProxy != "" || flags.multihomeAddr != "" || flags.noReuseConn || flags.noTimeouts {
		cfg := mod.Config()
		if flags.httpProxy != "" {
			cfg.ProxyAddress = flags.httpProxy
		}
		if flags.multihomeAddr != "" {
			cfg.BindAddress = flags.multihomeAddr
		}
		if flags.noReuseConn {
			cfg.NoReuseConnections = true
		}
		if flags.noTimeouts {
			cfg.NoTimeouts = true
		}
		mod.SetConfig(cfg)
	}

	mgr := mod.Manager()
	if flags.disableDomainRestrict {
		mgr.DisableDomainRestrictions()
	}
	if flags.enableDomainRestrict {
		mgr.EnableDomainRestrictions()
	}
	return nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func waitFor(deadline time.Duration, cond func() bool, tick func()) bool {
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		tick()
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
