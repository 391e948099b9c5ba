// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveTreeRenamesWithinFilesystem(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "file.txt"), []byte("payload"), 0o644))

	dst := filepath.Join(root, "moved", "data")
	require.NoError(t, MoveTree(src, dst))

	content, err := os.ReadFile(filepath.Join(dst, "nested", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestMoveTreeRejectsExistingDestination(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.MkdirAll(dst, 0o755))

	err := MoveTree(src, dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destination already exists")

	// Source must be untouched on failure.
	_, err = os.Stat(src)
	require.NoError(t, err)
}

func TestSameFilesystemSelf(t *testing.T) {
	dir := t.TempDir()
	same, err := SameFilesystem(dir, dir)
	require.NoError(t, err)
	assert.True(t, same)
}
