// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package update

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultCheckInterval = 2 * time.Hour

// Service periodically refreshes the latest-release information and caches
// the result for the update check command.
type Service struct {
	log          zerolog.Logger
	orchestrator *Orchestrator

	mu          sync.RWMutex
	lastResult  *CheckResult
	lastChecked time.Time
	isEnabled   bool
}

// NewService creates a new update Service instance.
func NewService(log zerolog.Logger, orchestrator *Orchestrator, enabled bool) *Service {
	return &Service{
		log:          log.With().Str("component", "update").Logger(),
		orchestrator: orchestrator,
		isEnabled:    enabled,
	}
}

// Start launches a background loop that periodically checks for updates
// while the context is active.
func (s *Service) Start(ctx context.Context) {
	go func() {
		// Run an initial check shortly after startup.
		s.initialCheck(ctx)

		ticker := time.NewTicker(defaultCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CheckUpdates(ctx)
			}
		}
	}()
}

func (s *Service) initialCheck(ctx context.Context) {
	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		s.CheckUpdates(ctx)
	}
}

// CheckUpdates triggers a refresh of the cached check result if enabled.
func (s *Service) CheckUpdates(ctx context.Context) {
	if !s.isEnabled {
		s.log.Trace().Msg("skipping update check - disabled in config")
		return
	}

	result, err := s.orchestrator.CheckForSelfUpdate(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("error checking new release")
		return
	}

	s.mu.Lock()
	s.lastResult = result
	s.lastChecked = time.Now()
	s.mu.Unlock()

	if result.UpdateAvailable {
		s.log.Info().Str("tag", result.LatestTag).Msg("new fetcharr release detected")
	}
}

// LatestResult returns the cached check result, nil before the first check.
func (s *Service) LatestResult() *CheckResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResult
}

// LastChecked returns when the cached result was refreshed, zero before the
// first successful check.
func (s *Service) LastChecked() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastChecked
}

// SetEnabled toggles whether periodic update checks should run.
func (s *Service) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.isEnabled = enabled
	s.mu.Unlock()
}
