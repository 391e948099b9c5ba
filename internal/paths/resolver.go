// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package paths resolves the relocatable data directory from a small pointer
// record stored beside the executable. The record only says where the data
// directory's parent lives; everything else (config, logs, history database)
// hangs off the resolved directory.
package paths

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// DataDirName is the directory created under the configured base.
	DataDirName = "fetcharr-data"

	// pointerFileName is the fixed record beside the executable.
	pointerFileName = "fetcharr-paths.json"
)

// PathConfig is the persisted pointer record.
type PathConfig struct {
	DataDirBase string `json:"dataDirBase"`
}

// Resolver reads and rewrites the pointer record for one executable location.
type Resolver struct {
	log    zerolog.Logger
	exeDir string
}

// NewResolver returns a resolver anchored at the running executable's directory.
func NewResolver(log zerolog.Logger) (*Resolver, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return NewResolverAt(log, filepath.Dir(exe)), nil
}

// NewResolverAt returns a resolver anchored at dir instead of the executable's
// directory. Used by tests and by the helper process.
func NewResolverAt(log zerolog.Logger, dir string) *Resolver {
	return &Resolver{
		log:    log.With().Str("component", "paths").Logger(),
		exeDir: dir,
	}
}

// PointerPath returns the absolute path of the pointer record.
func (r *Resolver) PointerPath() string {
	return filepath.Join(r.exeDir, pointerFileName)
}

// DefaultBase returns the fallback data directory base: the executable's own directory.
func (r *Resolver) DefaultBase() string {
	return r.exeDir
}

// LoadConfig reads the pointer record. A missing file is reported via os.IsNotExist.
func (r *Resolver) LoadConfig() (PathConfig, error) {
	data, err := os.ReadFile(r.PointerPath())
	if err != nil {
		return PathConfig{}, err
	}

	var cfg PathConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return PathConfig{}, fmt.Errorf("parse %s: %w", pointerFileName, err)
	}
	if strings.TrimSpace(cfg.DataDirBase) == "" {
		return PathConfig{}, fmt.Errorf("parse %s: empty dataDirBase", pointerFileName)
	}
	return cfg, nil
}

// SaveConfig writes the pointer record atomically: temp file + fsync + rename.
func (r *Resolver) SaveConfig(cfg PathConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode pointer record: %w", err)
	}

	tmpFile, err := os.CreateTemp(r.exeDir, ".fetcharr-paths.json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(append(data, '\n')); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, r.PointerPath()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// ResolveDataDir returns the usable data directory, creating the pointer
// record and the directory itself on first run. An invalid or unreadable
// configured base falls back to the executable's directory and rewrites the
// record. The only error returned is a failure to create the fallback data
// directory, which callers must treat as fatal: logging and state live there.
func (r *Resolver) ResolveDataDir() (string, error) {
	cfg, err := r.LoadConfig()
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warn().Err(err).Msg("pointer record unreadable, falling back to executable directory")
		}
		cfg = PathConfig{DataDirBase: r.DefaultBase()}
		if saveErr := r.SaveConfig(cfg); saveErr != nil {
			r.log.Warn().Err(saveErr).Msg("could not write pointer record")
		}
	}

	dataDir := filepath.Join(cfg.DataDirBase, DataDirName)
	if dirUsable(dataDir) {
		return dataDir, nil
	}

	if cfg.DataDirBase != r.DefaultBase() {
		r.log.Warn().
			Str("configured", dataDir).
			Msg("configured data directory missing or unusable, reverting to default")
		cfg = PathConfig{DataDirBase: r.DefaultBase()}
		if err := r.SaveConfig(cfg); err != nil {
			r.log.Warn().Err(err).Msg("could not rewrite pointer record")
		}
		dataDir = filepath.Join(cfg.DataDirBase, DataDirName)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory %s: %w", dataDir, err)
	}
	return dataDir, nil
}

// dirUsable reports whether path is an existing, readable directory.
func dirUsable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
