// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsArchiveName(t *testing.T) {
	assert.True(t, IsArchiveName("repo-1.2.0.zip"))
	assert.True(t, IsArchiveName("Repo-1.2.0.ZIP"))
	assert.True(t, IsArchiveName("tool_linux_amd64.tar.gz"))
	assert.True(t, IsArchiveName("tool_linux_amd64.tar.xz"))
	assert.True(t, IsArchiveName("tool.tgz"))
	assert.False(t, IsArchiveName("tool_linux_amd64"))
	assert.False(t, IsArchiveName("checksums.txt"))
	assert.False(t, IsArchiveName("tool.gz"))
}

func TestArchiveBaseName(t *testing.T) {
	assert.Equal(t, "repo-1.2.0", ArchiveBaseName("repo-1.2.0.zip"))
	assert.Equal(t, "tool_linux_amd64", ArchiveBaseName("/tmp/dl/tool_linux_amd64.tar.gz"))
	assert.Equal(t, "tool_linux_amd64", ArchiveBaseName("tool_linux_amd64.tar.xz"))
	assert.Equal(t, "notes", ArchiveBaseName("notes.txt"))
	assert.Equal(t, "plain", ArchiveBaseName("plain"))
}

func TestSanitizePathSegment(t *testing.T) {
	assert.Equal(t, "repo-1.2.0", SanitizePathSegment("repo-1.2.0"))
	assert.Equal(t, "ab", SanitizePathSegment(`a<>:"/\|?*b`))
	assert.Equal(t, "name", SanitizePathSegment("name. "))
	assert.Equal(t, "_CON", SanitizePathSegment("CON"))
	assert.Equal(t, "_", SanitizePathSegment(""))
}
