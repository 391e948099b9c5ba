// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package relocate moves the data directory to a new parent while the
// process is running.
//
// Ordering matters here: the pointer record is rewritten before the tree
// moves. A restarted process then finds the new location even if the move is
// interrupted partway, and a failed move rolls the pointer back and reopens
// the sinks in-process, so the running instance stays usable either way.
package relocate

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/autobrr/fetcharr/internal/domain"
	"github.com/autobrr/fetcharr/internal/paths"
	"github.com/autobrr/fetcharr/internal/selfupdate"
	"github.com/autobrr/fetcharr/pkg/fsutil"
)

// SinkController releases and re-establishes the file handles held on data
// directory contents, the log file above all.
type SinkController interface {
	ReleaseFileHandles() error
	ReopenFileHandles() error
}

// Relocator moves the data directory and restarts the process afterwards.
type Relocator struct {
	log          zerolog.Logger
	resolver     *paths.Resolver
	sinks        SinkController
	launcher     selfupdate.ProcessLauncher
	relaunchArgs string

	restartDelay time.Duration
	moveTree     func(src, dst string) error
	exePath      func() (string, error)
}

// NewRelocator creates a Relocator around the given pointer resolver.
func NewRelocator(log zerolog.Logger, resolver *paths.Resolver, sinks SinkController, launcher selfupdate.ProcessLauncher, relaunchArgs string) *Relocator {
	return &Relocator{
		log:          log.With().Str("component", "relocate").Logger(),
		resolver:     resolver,
		sinks:        sinks,
		launcher:     launcher,
		relaunchArgs: relaunchArgs,
		restartDelay: time.Second,
		moveTree:     fsutil.MoveTree,
		exePath:      os.Executable,
	}
}

// Relocate moves the data directory under newParent, persists the pointer,
// and spawns a restart of this executable. On a nil return the caller must
// exit; the replacement process picks the directory up from the pointer.
func (r *Relocator) Relocate(newParent string) error {
	cfg, err := r.resolver.LoadConfig()
	if err != nil {
		return errors.Wrap(err, "load pointer record")
	}
	oldParent := cfg.DataDirBase

	newParent, err = filepath.Abs(newParent)
	if err != nil {
		return errors.Wrapf(domain.ErrInvalidRelocationTarget, "resolve %s: %s", newParent, err)
	}

	currentDir := filepath.Join(oldParent, paths.DataDirName)
	newDir := filepath.Join(newParent, paths.DataDirName)

	// Cycle prevention runs before any I/O.
	if err := validateTarget(currentDir, newDir); err != nil {
		return err
	}

	if err := r.sinks.ReleaseFileHandles(); err != nil {
		return errors.Wrap(err, "release data sink handles")
	}

	// Pointer first. A pointer at a half-moved destination plus the rollback
	// below beats a stale pointer at a directory that no longer exists.
	if err := r.resolver.SaveConfig(paths.PathConfig{DataDirBase: newParent}); err != nil {
		r.reopenSinks()
		return errors.Wrap(err, "persist pointer record")
	}

	if err := r.moveTree(currentDir, newDir); err != nil {
		r.log.Error().Err(err).
			Str("from", currentDir).
			Str("to", newDir).
			Msg("move failed, rolling pointer back")

		if rollbackErr := r.resolver.SaveConfig(paths.PathConfig{DataDirBase: oldParent}); rollbackErr != nil {
			r.log.Error().Err(rollbackErr).Msg("pointer rollback failed, record points at the failed destination")
		}
		r.reopenSinks()
		return errors.Wrapf(domain.ErrIO, "move data directory: %s", err)
	}

	r.log.Info().Str("from", currentDir).Str("to", newDir).Msg("data directory relocated, restarting")

	if err := r.restart(); err != nil {
		// The move itself is complete; the user can restart by hand.
		return errors.Wrap(err, "restart after relocation")
	}
	return nil
}

func (r *Relocator) reopenSinks() {
	if err := r.sinks.ReopenFileHandles(); err != nil {
		r.log.Warn().Err(err).Msg("could not reopen data sinks")
	}
}

func (r *Relocator) restart() error {
	exe, err := r.exePath()
	if err != nil {
		return err
	}
	time.Sleep(r.restartDelay)
	return r.launcher.StartDetached(exe, selfupdate.SplitRelaunchArgs(r.relaunchArgs), filepath.Dir(exe))
}

// validateTarget rejects a destination equal to or nested inside the current
// data directory. Moving a directory into itself cannot succeed.
func validateTarget(currentDir, newDir string) error {
	if newDir == currentDir {
		return errors.Wrapf(domain.ErrInvalidRelocationTarget, "%s is already the data directory location", newDir)
	}

	rel, err := filepath.Rel(currentDir, newDir)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.Wrapf(domain.ErrInvalidRelocationTarget, "%s is inside the current data directory", newDir)
	}
	return nil
}
