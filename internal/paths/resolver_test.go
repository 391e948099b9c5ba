// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package paths

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	return NewResolverAt(zerolog.Nop(), dir), dir
}

func TestResolveDataDirFirstRunCreatesPointerAndDirectory(t *testing.T) {
	r, exeDir := testResolver(t)

	dataDir, err := r.ResolveDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exeDir, DataDirName), dataDir)

	info, err := os.Stat(dataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	raw, err := os.ReadFile(r.PointerPath())
	require.NoError(t, err)
	var cfg PathConfig
	require.NoError(t, json.Unmarshal(raw, &cfg))
	assert.Equal(t, exeDir, cfg.DataDirBase)
}

func TestResolveDataDirHonorsConfiguredBase(t *testing.T) {
	r, _ := testResolver(t)
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, DataDirName), 0o755))
	require.NoError(t, r.SaveConfig(PathConfig{DataDirBase: base}))

	dataDir, err := r.ResolveDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, DataDirName), dataDir)
}

func TestResolveDataDirFallsBackWhenConfiguredBaseInvalid(t *testing.T) {
	r, exeDir := testResolver(t)
	require.NoError(t, r.SaveConfig(PathConfig{DataDirBase: filepath.Join(exeDir, "gone")}))

	dataDir, err := r.ResolveDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exeDir, DataDirName), dataDir)

	// The record must have been rewritten to the default base.
	cfg, err := r.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, exeDir, cfg.DataDirBase)
}

func TestResolveDataDirRecoversFromCorruptPointer(t *testing.T) {
	r, exeDir := testResolver(t)
	require.NoError(t, os.WriteFile(r.PointerPath(), []byte("{not json"), 0o644))

	dataDir, err := r.ResolveDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exeDir, DataDirName), dataDir)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	r, _ := testResolver(t)
	base := t.TempDir()
	require.NoError(t, r.SaveConfig(PathConfig{DataDirBase: base}))

	cfg, err := r.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, base, cfg.DataDirBase)
}
