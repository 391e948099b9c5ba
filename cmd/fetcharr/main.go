// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fetcharr",
		Short: "Install GitHub release artifacts and keep fetcharr itself up to date",
		Long: `fetcharr downloads the latest release of a repository into a destination
directory, updates its own executable through a detached helper process, and
can relocate its data directory while running.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(RunInstallCommand())
	rootCmd.AddCommand(RunUpdateCommand())
	rootCmd.AddCommand(RunRelocateCommand())
	rootCmd.AddCommand(RunHistoryCommand())
	rootCmd.AddCommand(RunVersionCommand())
	rootCmd.AddCommand(RunFinishUpdateCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
