// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesAndReadsDefaultConfig(t *testing.T) {
	dataDir := t.TempDir()

	c, err := New(dataDir)
	require.NoError(t, err)

	assert.Equal(t, "INFO", c.Config.LogLevel)
	assert.Equal(t, "https://api.github.com", c.Config.APIBase)
	assert.True(t, c.Config.CheckForUpdates)
	assert.Equal(t, 50, c.Config.LogMaxSize)

	_, err = os.Stat(filepath.Join(dataDir, "config.toml"))
	require.NoError(t, err)
}

func TestNewHonorsEnvOverrides(t *testing.T) {
	t.Setenv("FETCHARR__LOG_LEVEL", "DEBUG")
	t.Setenv("FETCHARR__API_BASE", "https://git.example.com/api/v1")

	c, err := New(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", c.Config.LogLevel)
	assert.Equal(t, "https://git.example.com/api/v1", c.Config.APIBase)
}

func TestResolveLogPath(t *testing.T) {
	dataDir := t.TempDir()
	c, err := New(dataDir)
	require.NoError(t, err)

	assert.Equal(t, "", c.ResolveLogPath(""))
	assert.Equal(t, filepath.Join(dataDir, "fetcharr.log"), c.ResolveLogPath("fetcharr.log"))

	abs := filepath.Join(t.TempDir(), "elsewhere.log")
	assert.Equal(t, abs, c.ResolveLogPath(abs))
}

func TestLogManagerApplyAndRelease(t *testing.T) {
	lm := NewLogManager()
	logPath := filepath.Join(t.TempDir(), "logs", "fetcharr.log")

	require.NoError(t, lm.Apply("DEBUG", logPath, 10, 1))

	// Releasing handles must succeed and leave subsequent applies working.
	require.NoError(t, lm.ReleaseFileHandles())
	require.NoError(t, lm.Apply("INFO", "", 0, 0))
}

func TestLogManagerReopenRestoresLastSettings(t *testing.T) {
	lm := NewLogManager()
	logPath := filepath.Join(t.TempDir(), "fetcharr.log")

	require.NoError(t, lm.Apply("DEBUG", logPath, 10, 1))
	require.NoError(t, lm.ReleaseFileHandles())

	// Used by the relocation rollback path.
	require.NoError(t, lm.ReopenFileHandles())
	assert.Equal(t, logPath, lm.lastPath)
}
