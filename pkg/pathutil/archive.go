// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pathutil

import (
	"path/filepath"
	"strings"
)

// archiveExtensions lists the archive suffixes fetcharr can extract, longest
// first so ".tar.gz" wins over ".gz".
var archiveExtensions = []string{".tar.gz", ".tar.xz", ".tgz", ".zip"}

// IsArchiveName reports whether name carries a supported archive extension.
func IsArchiveName(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ArchiveBaseName returns the file name of path with its archive extension
// stripped, e.g. "repo-1.2.0.tar.gz" -> "repo-1.2.0". Names without a known
// archive extension are returned with filepath.Ext stripped instead.
func ArchiveBaseName(path string) string {
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	if ext := filepath.Ext(name); ext != "" {
		return name[:len(name)-len(ext)]
	}
	return name
}
