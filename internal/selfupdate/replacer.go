// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package selfupdate replaces the running executable.
//
// A process cannot overwrite its own binary while it executes, so the
// replacement runs as a three-phase protocol: stage the new executable to a
// private temporary path, release every file handle the helper might need to
// rename over, then hand off to a detached helper process and exit. Only the
// helper, after the parent is gone, touches the live executable path.
package selfupdate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	shellquote "github.com/Hellseher/go-shellquote"
	"github.com/Masterminds/semver/v3"
	goselfupdate "github.com/creativeprojects/go-selfupdate"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/autobrr/fetcharr/internal/buildinfo"
	"github.com/autobrr/fetcharr/internal/domain"
	"github.com/autobrr/fetcharr/internal/download"
	"github.com/autobrr/fetcharr/pkg/version"
)

const (
	// BackupSuffix is appended to the live executable when the helper
	// renames it aside. The backup is the manual recovery path if the swap
	// fails after the parent has exited.
	BackupSuffix = ".old"

	helperPrefix = "fetcharr-helper-"
	stagedPrefix = "fetcharr-staged-"
)

// HandleReleaser drops open file handles before the handoff boundary.
type HandleReleaser interface {
	ReleaseFileHandles() error
}

// Replacer stages a new executable and hands the swap off to a detached
// helper process.
type Replacer struct {
	log          zerolog.Logger
	downloader   *download.Downloader
	logs         HandleReleaser
	launcher     ProcessLauncher
	sourceURL    string
	relaunchArgs string

	currentVersion string
	exePath        func() (string, error)
}

// NewReplacer creates a Replacer downloading from sourceURL.
func NewReplacer(log zerolog.Logger, downloader *download.Downloader, logs HandleReleaser, launcher ProcessLauncher, sourceURL, relaunchArgs string) *Replacer {
	return &Replacer{
		log:            log.With().Str("component", "selfupdate").Logger(),
		downloader:     downloader,
		logs:           logs,
		launcher:       launcher,
		sourceURL:      sourceURL,
		relaunchArgs:   relaunchArgs,
		currentVersion: buildinfo.Version,
		exePath:        goselfupdate.ExecutablePath,
	}
}

// Stage downloads the replacement executable to a private temporary path.
// The live executable path is never written during staging; any failure here
// leaves the running process fully intact.
func (r *Replacer) Stage(ctx context.Context, onProgress download.ProgressFunc) (string, error) {
	if _, err := semver.NewVersion(version.Normalize(r.currentVersion)); err != nil {
		return "", errors.Wrapf(err, "self-update requires a release build, running %q", r.currentVersion)
	}

	exe, err := r.exePath()
	if err != nil {
		return "", errors.Wrap(err, "resolve executable path")
	}

	stagedPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s%d%s", stagedPrefix, time.Now().UnixNano(), executableSuffix))

	written, err := r.downloader.Download(ctx, r.sourceURL, stagedPath, onProgress)
	if err != nil {
		return "", err
	}
	if err := os.Chmod(stagedPath, 0o755); err != nil {
		return "", errors.Wrapf(domain.ErrIO, "mark staged executable runnable: %s", err)
	}

	r.log.Info().
		Str("staged", stagedPath).
		Str("target", exe).
		Int64("bytes", written).
		Msg("staged replacement executable")

	return stagedPath, nil
}

// Handoff releases held file handles and spawns the detached helper that
// performs the swap. On a nil return the caller must exit immediately; the
// helper waits for this process to release its executable lock.
func (r *Replacer) Handoff(stagedPath string) error {
	exe, err := r.exePath()
	if err != nil {
		return errors.Wrap(err, "resolve executable path")
	}

	if err := r.logs.ReleaseFileHandles(); err != nil {
		return errors.Wrap(err, "release log file handles")
	}

	helperPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s%d%s", helperPrefix, os.Getpid(), executableSuffix))
	if err := copyExecutable(exe, helperPath); err != nil {
		return errors.Wrapf(domain.ErrIO, "copy helper executable: %s", err)
	}

	args := []string{
		"finish-update",
		"--target", exe,
		"--staged", stagedPath,
		"--backup-suffix", BackupSuffix,
	}
	if r.relaunchArgs != "" {
		args = append(args, "--relaunch-args", r.relaunchArgs)
	}

	if err := r.launcher.StartDetached(helperPath, args, filepath.Dir(exe)); err != nil {
		return errors.Wrap(err, "start update helper")
	}

	r.log.Info().Str("helper", helperPath).Msg("update helper started, exiting for swap")
	return nil
}

// SplitRelaunchArgs parses a shell-quoted argument string. Unparseable input
// degrades to no extra arguments rather than blocking a relaunch.
func SplitRelaunchArgs(s string) []string {
	if s == "" {
		return nil
	}
	args, err := shellquote.Split(s)
	if err != nil {
		return nil
	}
	return args
}

// CleanupStaleHelpers removes helper binaries left behind by earlier updates.
// The helper deletes itself after a successful swap, but Windows cannot
// remove a running executable, so the relaunched process sweeps instead.
func CleanupStaleHelpers(log zerolog.Logger) {
	entries, err := os.ReadDir(os.TempDir())
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), helperPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || time.Since(info.ModTime()) < time.Hour {
			continue
		}

		path := filepath.Join(os.TempDir(), entry.Name())
		if err := os.Remove(path); err != nil {
			log.Debug().Err(err).Str("path", path).Msg("could not remove stale update helper")
			continue
		}
		log.Debug().Str("path", path).Msg("removed stale update helper")
	}
}

func copyExecutable(src, dst string) error {
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
	return out.Close()
}
