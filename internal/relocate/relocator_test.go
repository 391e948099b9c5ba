// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package relocate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/fetcharr/internal/domain"
	"github.com/autobrr/fetcharr/internal/paths"
)

type fakeSinks struct {
	released bool
	reopened bool
}

func (s *fakeSinks) ReleaseFileHandles() error { s.released = true; return nil }
func (s *fakeSinks) ReopenFileHandles() error  { s.reopened = true; return nil }

type fakeLauncher struct {
	path string
	args []string
}

func (l *fakeLauncher) StartDetached(path string, args []string, dir string) error {
	l.path = path
	l.args = args
	return nil
}

func setupRelocator(t *testing.T) (*Relocator, *paths.Resolver, *fakeSinks, *fakeLauncher, string) {
	t.Helper()

	exeDir := t.TempDir()
	base := t.TempDir()

	resolver := paths.NewResolverAt(zerolog.Nop(), exeDir)
	require.NoError(t, resolver.SaveConfig(paths.PathConfig{DataDirBase: base}))

	dataDir := filepath.Join(base, paths.DataDirName)
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte("logLevel = \"INFO\"\n"), 0o644))

	sinks := &fakeSinks{}
	launcher := &fakeLauncher{}
	r := NewRelocator(zerolog.Nop(), resolver, sinks, launcher, "")
	r.restartDelay = 0
	r.exePath = func() (string, error) { return filepath.Join(exeDir, "fetcharr"), nil }

	return r, resolver, sinks, launcher, base
}

func TestRelocateRejectsSameParent(t *testing.T) {
	r, resolver, sinks, _, base := setupRelocator(t)

	err := r.Relocate(base)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRelocationTarget))

	// Validation precedes any I/O.
	assert.False(t, sinks.released)

	cfg, loadErr := resolver.LoadConfig()
	require.NoError(t, loadErr)
	assert.Equal(t, base, cfg.DataDirBase)
}

func TestRelocateRejectsNestedTarget(t *testing.T) {
	r, _, sinks, _, base := setupRelocator(t)

	nested := filepath.Join(base, paths.DataDirName, "sub")
	err := r.Relocate(nested)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRelocationTarget))
	assert.False(t, sinks.released)

	_, statErr := os.Stat(filepath.Join(nested, paths.DataDirName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRelocateMovesTreeAndRestarts(t *testing.T) {
	r, resolver, sinks, launcher, base := setupRelocator(t)

	newParent := t.TempDir()
	require.NoError(t, r.Relocate(newParent))

	assert.True(t, sinks.released)

	cfg, err := resolver.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, newParent, cfg.DataDirBase)

	moved, err := os.ReadFile(filepath.Join(newParent, paths.DataDirName, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(moved), "logLevel")

	_, statErr := os.Stat(filepath.Join(base, paths.DataDirName))
	assert.True(t, os.IsNotExist(statErr))

	assert.NotEmpty(t, launcher.path)
}

func TestRelocateRollsBackPointerOnMoveFailure(t *testing.T) {
	r, resolver, sinks, launcher, base := setupRelocator(t)
	r.moveTree = func(src, dst string) error { return errors.New("disk full") }

	newParent := t.TempDir()
	err := r.Relocate(newParent)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIO))

	cfg, loadErr := resolver.LoadConfig()
	require.NoError(t, loadErr)
	assert.Equal(t, base, cfg.DataDirBase)

	// The running instance stays usable: sinks reopened, no restart spawned.
	assert.True(t, sinks.reopened)
	assert.Empty(t, launcher.path)

	_, statErr := os.Stat(filepath.Join(base, paths.DataDirName, "config.toml"))
	assert.NoError(t, statErr)
}
