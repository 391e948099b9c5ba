// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/fetcharr/internal/archive"
	"github.com/autobrr/fetcharr/internal/buildinfo"
	"github.com/autobrr/fetcharr/internal/config"
	"github.com/autobrr/fetcharr/internal/database"
	"github.com/autobrr/fetcharr/internal/domain"
	"github.com/autobrr/fetcharr/internal/download"
	"github.com/autobrr/fetcharr/internal/paths"
	"github.com/autobrr/fetcharr/internal/release"
	"github.com/autobrr/fetcharr/internal/relocate"
	"github.com/autobrr/fetcharr/internal/selfupdate"
	"github.com/autobrr/fetcharr/internal/update"
)

// updateRepo is the repository fetcharr checks for its own releases.
const updateRepo = "autobrr/fetcharr"

const databaseFileName = "fetcharr.db"

type app struct {
	cfg    *config.AppConfig
	logMgr *config.LogManager

	resolver *paths.Resolver
	dataDir  string

	db      *database.DB
	history *database.HistoryStore

	orchestrator *update.Orchestrator
	relocator    *relocate.Relocator
}

// bootstrapApp resolves the data directory, loads config, applies logging,
// and wires the engine. Failure to create the data directory is fatal:
// everything persistent lives there.
func bootstrapApp() (*app, error) {
	logMgr := config.NewLogManager()
	logMgr.Initialize()

	resolver, err := paths.NewResolver(log.Logger)
	if err != nil {
		return nil, err
	}

	dataDir, err := resolver.ResolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("no usable data directory: %w", err)
	}

	cfg, err := config.New(dataDir)
	if err != nil {
		return nil, err
	}

	if err := logMgr.Apply(cfg.Config.LogLevel, cfg.ResolveLogPath(cfg.Config.LogPath), cfg.Config.LogMaxSize, cfg.Config.LogMaxBackups); err != nil {
		log.Warn().Err(err).Msg("file logging unavailable, continuing on console")
	}

	update.SyncVersionCache(log.Logger, dataDir, buildinfo.Version)
	selfupdate.CleanupStaleHelpers(log.Logger)

	db, err := database.New(filepath.Join(dataDir, databaseFileName))
	if err != nil {
		return nil, err
	}
	history := database.NewHistoryStore(db)

	// A relocation exits before writing its own outcome; finalize any row
	// it left behind.
	if err := history.FinishPendingRelocations(context.Background()); err != nil {
		log.Warn().Err(err).Msg("could not finalize pending relocation history")
	}

	downloader := download.NewDownloader(log.Logger, buildinfo.UserAgent)
	launcher := selfupdate.NewLauncher()
	replacer := selfupdate.NewReplacer(log.Logger, downloader, logMgr, launcher, cfg.Config.SelfUpdateURL, cfg.Config.RelaunchArgs)

	orchestrator := update.NewOrchestrator(log.Logger, update.Deps{
		Releases:       release.NewClient(log.Logger, cfg.Config.APIBase, cfg.Config.GitHubToken, buildinfo.UserAgent),
		Downloader:     downloader,
		Extractor:      archive.NewExtractor(log.Logger),
		Replacer:       replacer,
		History:        history,
		UpdateRepo:     updateRepo,
		CurrentVersion: buildinfo.Version,
	})

	return &app{
		cfg:          cfg,
		logMgr:       logMgr,
		resolver:     resolver,
		dataDir:      dataDir,
		db:           db,
		history:      history,
		orchestrator: orchestrator,
		relocator:    relocate.NewRelocator(log.Logger, resolver, logMgr, launcher, cfg.Config.RelaunchArgs),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		log.Debug().Err(err).Msg("could not close database")
	}
}

func (a *app) beginRelocationHistory(ctx context.Context, newParent string) int64 {
	id, err := a.history.Begin(ctx, database.KindRelocate, "", "", "", newParent)
	if err != nil {
		log.Warn().Err(err).Msg("could not record relocation start")
		return 0
	}
	return id
}

// recordRelocationFailure reopens the history store to write the outcome of
// a failed relocation. The relocator rolled the pointer back, so the
// database is still at its old location.
func (a *app) recordRelocationFailure(ctx context.Context, id int64, cause error) {
	if id == 0 {
		return
	}

	db, err := database.New(filepath.Join(a.dataDir, databaseFileName))
	if err != nil {
		log.Warn().Err(err).Msg("could not reopen history store")
		return
	}
	defer db.Close()

	if err := database.NewHistoryStore(db).Finish(ctx, id, database.StatusFailed, domain.Kind(cause), cause.Error()); err != nil {
		log.Warn().Err(err).Msg("could not record relocation outcome")
	}
}
