// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package selfupdate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const diagnosticFileName = "update-helper.log"

// HelperOptions carries the swap parameters the parent process passes to the
// detached helper.
type HelperOptions struct {
	// TargetPath is the live executable being replaced.
	TargetPath string
	// StagedPath is the downloaded replacement.
	StagedPath string
	// BackupSuffix names the rename-aside backup, ".old" by default.
	BackupSuffix string
	// Relaunch starts the new executable after a successful swap.
	Relaunch     bool
	RelaunchArgs string

	// WaitTimeout bounds the wait for the parent to release its executable
	// lock. Defaults to 30s.
	WaitTimeout time.Duration
	// HoldOnError keeps the helper resident after a failure so the
	// diagnostic stays visible. Defaults to 30s.
	HoldOnError time.Duration
}

// RunHelper performs the detached side of a self-update: wait for the parent
// to exit, rename the live executable aside, move the staged one into place,
// and relaunch. At this point the parent is gone, so nothing can recover
// automatically; on failure the helper writes a diagnostic next to the target
// and stays resident long enough to be noticed instead of vanishing silently.
func RunHelper(launcher ProcessLauncher, opts HelperOptions) error {
	if opts.BackupSuffix == "" {
		opts.BackupSuffix = BackupSuffix
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 30 * time.Second
	}
	if opts.HoldOnError <= 0 {
		opts.HoldOnError = 30 * time.Second
	}

	err := swap(opts)
	if err == nil && opts.Relaunch {
		if launchErr := launcher.StartDetached(opts.TargetPath, SplitRelaunchArgs(opts.RelaunchArgs), filepath.Dir(opts.TargetPath)); launchErr != nil {
			err = errors.Wrap(launchErr, "relaunch updated executable")
		}
	}

	if err != nil {
		holdWithDiagnostic(opts, err)
		return err
	}

	selfDelete()
	return nil
}

func swap(opts HelperOptions) error {
	if err := waitForWritable(opts.TargetPath, opts.WaitTimeout); err != nil {
		return err
	}

	backupPath := opts.TargetPath + opts.BackupSuffix
	if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove previous backup %s", backupPath)
	}
	if err := os.Rename(opts.TargetPath, backupPath); err != nil {
		return errors.Wrap(err, "rename current executable aside")
	}

	if err := moveFile(opts.StagedPath, opts.TargetPath); err != nil {
		return errors.Wrap(err, "move staged executable into place")
	}
	return os.Chmod(opts.TargetPath, 0o755)
}

// waitForWritable polls until the target can be opened for writing, meaning
// the parent has exited and released its lock. Unix grants this immediately;
// Windows holds the lock until process teardown completes.
func waitForWritable(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err == nil {
			return f.Close()
		}
		if time.Now().After(deadline) {
			return errors.Wrapf(err, "parent still holds %s after %s", path, timeout)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	// Rename across filesystems fails; fall back to copy and delete.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	_ = os.Remove(src)
	return nil
}

func holdWithDiagnostic(opts HelperOptions, cause error) {
	message := fmt.Sprintf(
		"fetcharr update helper failed at %s: %v\ntarget: %s\nstaged: %s\nbackup: %s%s (restore manually if the target is missing)\n",
		time.Now().Format(time.RFC3339), cause,
		opts.TargetPath, opts.StagedPath, opts.TargetPath, opts.BackupSuffix,
	)

	diagnosticPath := filepath.Join(filepath.Dir(opts.TargetPath), diagnosticFileName)
	_ = os.WriteFile(diagnosticPath, []byte(message), 0o644)
	fmt.Fprint(os.Stderr, message)

	// Keep the console window readable instead of vanishing.
	time.Sleep(opts.HoldOnError)
}

// selfDelete removes the helper binary after a successful swap. Best effort:
// Windows cannot delete a running executable, so the relaunched process also
// sweeps stale helpers on startup.
func selfDelete() {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	if !strings.HasPrefix(filepath.Base(exe), helperPrefix) {
		return
	}
	_ = os.Remove(exe)
}
