// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package update

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const versionCacheName = "version.txt"

// SyncVersionCache rewrites the version file inside dataDir from the running
// binary's embedded version. The binary is the single source of truth; the
// cached copy only exists so external tooling can read the installed version
// without executing fetcharr.
func SyncVersionCache(log zerolog.Logger, dataDir, current string) {
	path := filepath.Join(dataDir, versionCacheName)

	existing, err := os.ReadFile(path)
	if err == nil && strings.TrimSpace(string(existing)) == current {
		return
	}

	if err := os.WriteFile(path, []byte(current+"\n"), 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not write version cache")
		return
	}
	log.Debug().Str("path", path).Str("version", current).Msg("version cache updated")
}
