// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/fetcharr/internal/buildinfo"
	"github.com/autobrr/fetcharr/internal/selfupdate"
	"github.com/autobrr/fetcharr/internal/update"
)

// RunInstallCommand downloads and optionally extracts the latest release of
// a repository.
func RunInstallCommand() *cobra.Command {
	var (
		repo          string
		dest          string
		extract       bool
		subfolder     bool
		deleteArchive bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download the latest release of a repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrapApp()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.orchestrator.InstallRelease(cmd.Context(), repo, dest, update.InstallOptions{
				ExtractOnDownload:         extract,
				CreateSubfolder:           subfolder,
				DeleteArchiveAfterExtract: deleteArchive,
			}, progressPrinter(cmd.OutOrStdout()))
			if err != nil {
				return err
			}

			if result.ExtractedPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Installed %s %s to %s\n", repo, result.Tag, result.ExtractedPath)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s %s to %s\n", repo, result.Tag, result.ArchivePath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "repository as owner/name")
	cmd.Flags().StringVar(&dest, "dest", ".", "destination directory")
	cmd.Flags().BoolVar(&extract, "extract", true, "extract the archive after downloading")
	cmd.Flags().BoolVar(&subfolder, "subfolder", true, "extract into a subfolder named after the archive")
	cmd.Flags().BoolVar(&deleteArchive, "delete-archive", true, "delete the archive after extraction")
	_ = cmd.MarkFlagRequired("repo")

	return cmd
}

// RunUpdateCommand groups the self-update subcommands.
func RunUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for and apply fetcharr updates",
	}
	cmd.AddCommand(RunUpdateCheckCommand())
	cmd.AddCommand(RunUpdateRunCommand())
	return cmd
}

// RunUpdateCheckCommand reports whether a newer fetcharr release exists.
func RunUpdateCheckCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a newer fetcharr release is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrapApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if watch {
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				service := update.NewService(log.Logger, a.orchestrator, true)
				service.Start(ctx)

				fmt.Fprintln(cmd.OutOrStdout(), "Watching for new releases, Ctrl-C to stop")
				<-ctx.Done()
				return nil
			}

			check, err := a.orchestrator.CheckForSelfUpdate(cmd.Context())
			if err != nil {
				return err
			}

			if check.UpdateAvailable {
				fmt.Fprintf(cmd.OutOrStdout(), "Update available: %s (running %s)\n", check.LatestTag, check.CurrentVersion)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Up to date (running %s, latest %s)\n", check.CurrentVersion, check.LatestTag)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep checking periodically until interrupted")

	return cmd
}

// RunUpdateRunCommand stages the newest release and hands off to the helper.
func RunUpdateRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Update the fetcharr executable in place",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrapApp()
			if err != nil {
				return err
			}
			defer a.Close()

			applied, err := a.orchestrator.PerformSelfUpdate(cmd.Context(), progressPrinter(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			if !applied {
				fmt.Fprintln(cmd.OutOrStdout(), "Already running the latest version")
				return nil
			}

			// The helper takes over once this process exits.
			fmt.Fprintln(cmd.OutOrStdout(), "Update staged, restarting through the helper")
			return nil
		},
	}
}

// RunRelocateCommand moves the data directory to a new parent.
func RunRelocateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "relocate <new-parent-dir>",
		Short: "Move the fetcharr data directory to a new parent directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrapApp()
			if err != nil {
				return err
			}
			return runRelocate(cmd.Context(), a, args[0], cmd.OutOrStdout())
		},
	}
}

func runRelocate(ctx context.Context, a *app, newParent string, out io.Writer) error {
	historyID := a.beginRelocationHistory(ctx, newParent)

	// The history database lives inside the directory being moved; its
	// handle has to go before the tree does.
	a.Close()

	if err := a.relocator.Relocate(newParent); err != nil {
		// Every failure path keeps this process alive with the data
		// directory in place, so the outcome can still be recorded.
		a.recordRelocationFailure(ctx, historyID, err)
		return err
	}

	// The row stays running; the relaunched process finalizes it.
	fmt.Fprintln(out, "Data directory relocated, restarting")
	return nil
}

// RunHistoryCommand lists recent engine operations.
func RunHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent install, update and relocation operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrapApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ops, err := a.history.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(ops) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No operations recorded yet")
				return nil
			}

			for _, op := range ops {
				line := fmt.Sprintf("%s  %-11s %-7s", op.StartedAt.Format(time.RFC3339), op.Kind, op.Status)
				if op.Repo != "" {
					line += " " + op.Repo
				}
				if op.Tag != "" {
					line += " " + op.Tag
				}
				if op.ErrorMessage != "" {
					line += "  (" + op.ErrorMessage + ")"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to list")

	return cmd
}

// RunVersionCommand prints build information.
func RunVersionCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print fetcharr version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				data, err := buildinfo.JSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), buildinfo.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print version information as JSON")

	return cmd
}

// RunFinishUpdateCommand is the hidden helper mode: a detached copy of the
// binary runs this to swap the live executable after the parent exits.
func RunFinishUpdateCommand() *cobra.Command {
	var (
		target       string
		staged       string
		backupSuffix string
		relaunchArgs string
	)

	cmd := &cobra.Command{
		Use:    "finish-update",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return selfupdate.RunHelper(selfupdate.NewLauncher(), selfupdate.HelperOptions{
				TargetPath:   target,
				StagedPath:   staged,
				BackupSuffix: backupSuffix,
				Relaunch:     true,
				RelaunchArgs: relaunchArgs,
			})
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "live executable to replace")
	cmd.Flags().StringVar(&staged, "staged", "", "staged replacement executable")
	cmd.Flags().StringVar(&backupSuffix, "backup-suffix", selfupdate.BackupSuffix, "suffix for the rename-aside backup")
	cmd.Flags().StringVar(&relaunchArgs, "relaunch-args", "", "arguments passed to the relaunched executable")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("staged")

	return cmd
}
