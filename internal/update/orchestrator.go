// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package update drives install and self-update operations through a single
// state machine.
package update

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/autobrr/fetcharr/internal/archive"
	"github.com/autobrr/fetcharr/internal/database"
	"github.com/autobrr/fetcharr/internal/domain"
	"github.com/autobrr/fetcharr/internal/download"
	"github.com/autobrr/fetcharr/internal/release"
	"github.com/autobrr/fetcharr/pkg/version"
)

// State is the orchestrator's per-operation state.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateTransferring
	StatePostProcessing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateTransferring:
		return "transferring"
	case StatePostProcessing:
		return "post-processing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Replacer is the self-replacement protocol the orchestrator hands the
// post-processing phase of a self-update to.
type Replacer interface {
	Stage(ctx context.Context, onProgress download.ProgressFunc) (string, error)
	Handoff(stagedPath string) error
}

// InstallOptions controls the post-download handling of a release archive.
type InstallOptions struct {
	ExtractOnDownload         bool
	CreateSubfolder           bool
	DeleteArchiveAfterExtract bool
}

// InstallResult describes a completed install.
type InstallResult struct {
	Tag             string
	ArchivePath     string
	ExtractedPath   string
	BytesDownloaded int64
}

// CheckResult describes a self-update check.
type CheckResult struct {
	CurrentVersion  string
	LatestTag       string
	UpdateAvailable bool
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Releases   *release.Client
	Downloader *download.Downloader
	Extractor  *archive.Extractor
	Replacer   Replacer
	History    *database.HistoryStore

	// UpdateRepo is the owner/repo slug fetcharr checks for its own updates.
	UpdateRepo     string
	CurrentVersion string
}

// Orchestrator runs one operation at a time through
// Idle -> Fetching -> Transferring -> PostProcessing -> {Done, Failed}.
// The Idle check is the only mutual exclusion: starting an operation while
// another is in flight fails instead of queueing.
type Orchestrator struct {
	log  zerolog.Logger
	deps Deps

	state atomic.Int32
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(log zerolog.Logger, deps Deps) *Orchestrator {
	return &Orchestrator{
		log:  log.With().Str("component", "update").Logger(),
		deps: deps,
	}
}

// State returns the current operation state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// begin claims the state machine for a new operation. Done and Failed are
// terminal-reentrant: the next operation may start from either.
func (o *Orchestrator) begin() error {
	for _, from := range []State{StateIdle, StateDone, StateFailed} {
		if o.state.CompareAndSwap(int32(from), int32(StateFetching)) {
			return nil
		}
	}
	return errors.Wrap(domain.ErrBusy, "another operation is in flight")
}

func (o *Orchestrator) transition(s State) {
	o.state.Store(int32(s))
	o.log.Trace().Stringer("state", s).Msg("state transition")
}

// fail moves to Failed, records history, and returns err unchanged so the
// originating kind survives. Partial artifacts stay on disk for diagnosis.
func (o *Orchestrator) fail(ctx context.Context, historyID int64, err error) error {
	o.transition(StateFailed)
	o.finishHistory(ctx, historyID, database.StatusFailed, domain.Kind(err), err.Error())
	return err
}

// InstallRelease fetches the latest release of repo, downloads its archive
// into destDir, and optionally extracts it. Progress callbacks are forwarded
// from the downloader, in order.
func (o *Orchestrator) InstallRelease(ctx context.Context, repo, destDir string, opts InstallOptions, onProgress download.ProgressFunc) (*InstallResult, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}

	historyID := o.beginHistory(ctx, database.KindInstall, repo, destDir)

	asset, rel, err := o.deps.Releases.FetchLatest(ctx, repo)
	if err != nil {
		return nil, o.fail(ctx, historyID, err)
	}
	o.updateHistory(ctx, historyID, rel.TagName, asset.SuggestedFileName)

	o.transition(StateTransferring)
	archivePath := filepath.Join(destDir, asset.SuggestedFileName)
	written, err := o.deps.Downloader.Download(ctx, asset.DownloadURL, archivePath, onProgress)
	if err != nil {
		return nil, o.fail(ctx, historyID, err)
	}

	o.transition(StatePostProcessing)
	result := &InstallResult{
		Tag:             rel.TagName,
		ArchivePath:     archivePath,
		BytesDownloaded: written,
	}
	if opts.ExtractOnDownload {
		extracted, err := o.deps.Extractor.Extract(archivePath, destDir, archive.Options{
			CreateSubfolder:    opts.CreateSubfolder,
			DeleteArchiveAfter: opts.DeleteArchiveAfterExtract,
		})
		if err != nil {
			return nil, o.fail(ctx, historyID, err)
		}
		result.ExtractedPath = extracted
	}

	o.transition(StateDone)
	o.finishHistory(ctx, historyID, database.StatusDone, "", "")

	o.log.Info().
		Str("repo", repo).
		Str("tag", rel.TagName).
		Str("dest", destDir).
		Msg("release installed")

	return result, nil
}

// CheckForSelfUpdate queries the latest fetcharr release and compares tags.
// The comparison is lexicographic on the normalized tag; when strict semver
// would disagree, both verdicts are logged and the lexicographic one stands.
func (o *Orchestrator) CheckForSelfUpdate(ctx context.Context) (*CheckResult, error) {
	_, rel, err := o.deps.Releases.FetchLatest(ctx, o.deps.UpdateRepo)
	if err != nil {
		return nil, err
	}

	current := o.deps.CurrentVersion
	available := version.NewerAvailable(current, rel.TagName)
	if version.SemverDisagrees(current, rel.TagName) {
		o.log.Warn().
			Str("current", current).
			Str("latest", rel.TagName).
			Bool("lexicographic", available).
			Bool("semver", !available).
			Msg("tag ordering and semver disagree, keeping tag ordering")
	}

	return &CheckResult{
		CurrentVersion:  current,
		LatestTag:       rel.TagName,
		UpdateAvailable: available,
	}, nil
}

// PerformSelfUpdate checks for a newer release and, when one exists, stages
// it and hands off to the detached helper. A true return means the handoff
// succeeded and the caller must exit immediately so the helper can swap the
// executable.
func (o *Orchestrator) PerformSelfUpdate(ctx context.Context, onProgress download.ProgressFunc) (bool, error) {
	if err := o.begin(); err != nil {
		return false, err
	}

	historyID := o.beginHistory(ctx, database.KindSelfUpdate, o.deps.UpdateRepo, "")

	check, err := o.CheckForSelfUpdate(ctx)
	if err != nil {
		return false, o.fail(ctx, historyID, err)
	}
	o.updateHistory(ctx, historyID, check.LatestTag, "")

	if !check.UpdateAvailable {
		o.transition(StateDone)
		o.finishHistory(ctx, historyID, database.StatusDone, "", "already up to date")
		o.log.Info().Str("version", check.CurrentVersion).Msg("already running the latest version")
		return false, nil
	}

	o.transition(StateTransferring)
	staged, err := o.deps.Replacer.Stage(ctx, onProgress)
	if err != nil {
		return false, o.fail(ctx, historyID, err)
	}

	o.transition(StatePostProcessing)
	// Record the outcome before the handoff: after it, this process exits
	// and nothing gets written anymore.
	o.finishHistory(ctx, historyID, database.StatusDone, "", "")

	if err := o.deps.Replacer.Handoff(staged); err != nil {
		o.transition(StateFailed)
		o.finishHistory(ctx, historyID, database.StatusFailed, domain.Kind(err), err.Error())
		return false, err
	}

	o.transition(StateDone)
	return true, nil
}

func (o *Orchestrator) beginHistory(ctx context.Context, kind, repo, destination string) int64 {
	if o.deps.History == nil {
		return 0
	}
	id, err := o.deps.History.Begin(ctx, kind, repo, "", "", destination)
	if err != nil {
		o.log.Warn().Err(err).Msg("could not record operation start")
		return 0
	}
	return id
}

func (o *Orchestrator) updateHistory(ctx context.Context, id int64, tag, asset string) {
	if o.deps.History == nil || id == 0 {
		return
	}
	if err := o.deps.History.UpdateDetails(ctx, id, tag, asset); err != nil {
		o.log.Warn().Err(err).Msg("could not record operation details")
	}
}

func (o *Orchestrator) finishHistory(ctx context.Context, id int64, status, errorKind, errorMessage string) {
	if o.deps.History == nil || id == 0 {
		return
	}
	if err := o.deps.History.Finish(ctx, id, status, errorKind, errorMessage); err != nil {
		o.log.Warn().Err(err).Msg("could not record operation outcome")
	}
}
