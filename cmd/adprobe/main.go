// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command adprobe drives an ad session against a session manager with a
// simulated player and prints the analytics events it produces.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "adprobe",
		Short:         "Exercise server-side ad insertion sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newPlayCmd(), newTimelineCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "adprobe %s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "adprobe:", err)
		stop()
		os.Exit(1)
	}
}
