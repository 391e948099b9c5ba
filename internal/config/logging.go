// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/autobrr/fetcharr/internal/logsink"
)

// LogManager handles log configuration with safe runtime reconfiguration.
// The relocation and self-replace flows call ReleaseFileHandles before their
// handoff boundary so no log file stays locked by this process.
type LogManager struct {
	switchable  *logsink.SwitchableWriter
	mu          sync.Mutex
	initialized atomic.Bool

	// Last applied settings, so ReopenFileHandles can restore file logging
	// after a rolled-back relocation.
	lastLevel      string
	lastPath       string
	lastMaxSize    int
	lastMaxBackups int
}

// NewLogManager creates a new LogManager writing to the console.
func NewLogManager() *LogManager {
	return &LogManager{
		switchable: logsink.NewSwitchableWriter(baseLogWriter()),
	}
}

// Initialize sets up the global logger to use the switchable writer.
// This should only be called once during application startup.
func (lm *LogManager) Initialize() {
	if lm.initialized.Swap(true) {
		return // Already initialized
	}
	// Keep the logger itself at trace so the global level can be changed at
	// runtime without mutating log.Logger.
	log.Logger = log.Logger.Output(lm.switchable).Level(zerolog.TraceLevel)
}

// Apply updates the log configuration with the given settings.
// Safe to call concurrently; returns an error if file logging is requested
// but cannot be enabled.
func (lm *LogManager) Apply(level, logPath string, maxSize, maxBackups int) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	setLogLevel(level)

	newWriter, newCloser, err := buildWriter(baseLogWriter(), logPath, maxSize, maxBackups)
	if err != nil {
		return err
	}

	oldCloser := lm.switchable.Swap(newWriter, newCloser)
	if oldCloser != nil {
		if closeErr := oldCloser.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Msg("Failed to close old log rotator")
		}
	}

	lm.lastLevel = level
	lm.lastPath = logPath
	lm.lastMaxSize = maxSize
	lm.lastMaxBackups = maxBackups

	return nil
}

// ReopenFileHandles restores the last applied log configuration after a
// ReleaseFileHandles, used when a relocation rolls back in-process.
func (lm *LogManager) ReopenFileHandles() error {
	lm.mu.Lock()
	level, path, maxSize, maxBackups := lm.lastLevel, lm.lastPath, lm.lastMaxSize, lm.lastMaxBackups
	lm.mu.Unlock()

	if path == "" {
		return nil
	}
	return lm.Apply(level, path, maxSize, maxBackups)
}

// ReleaseFileHandles drops any open log file, leaving console-only output.
// Called before the self-replace handoff and before moving the data
// directory; Apply re-establishes file logging afterwards if needed.
func (lm *LogManager) ReleaseFileHandles() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.switchable.Detach(baseLogWriter())
}

func buildWriter(baseWriter io.Writer, logPath string, maxSize, maxBackups int) (io.Writer, io.Closer, error) {
	if logPath == "" {
		return baseWriter, nil, nil
	}

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	if maxSize <= 0 {
		maxSize = 50
	}
	if maxBackups < 0 {
		maxBackups = 0
	}

	rotator := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}
	return io.MultiWriter(baseWriter, rotator), rotator, nil
}

func baseLogWriter() io.Writer {
	return zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

func setLogLevel(level string) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
