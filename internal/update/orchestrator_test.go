// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package update

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/fetcharr/internal/archive"
	"github.com/autobrr/fetcharr/internal/database"
	"github.com/autobrr/fetcharr/internal/domain"
	"github.com/autobrr/fetcharr/internal/download"
	"github.com/autobrr/fetcharr/internal/release"
)

type fakeReplacer struct {
	stagedPath string
	staged     bool
	handedOff  bool
	stageErr   error
}

func (r *fakeReplacer) Stage(ctx context.Context, onProgress download.ProgressFunc) (string, error) {
	if r.stageErr != nil {
		return "", r.stageErr
	}
	r.staged = true
	return r.stagedPath, nil
}

func (r *fakeReplacer) Handoff(stagedPath string) error {
	r.handedOff = true
	return nil
}

func zipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// releaseServer serves a latest-release document whose zipball points back at
// the same server.
func releaseServer(t *testing.T, tag string, zipContent []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/repos/owner/repo/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name": %q, "zipball_url": %q, "assets": []}`, tag, srv.URL+"/zipball")
	})
	mux.HandleFunc("/zipball", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(zipContent)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newOrchestrator(t *testing.T, apiBase, currentVersion string, replacer Replacer, history *database.HistoryStore) *Orchestrator {
	t.Helper()
	logger := zerolog.Nop()
	return NewOrchestrator(logger, Deps{
		Releases:       release.NewClient(logger, apiBase, "", "fetcharr-test"),
		Downloader:     download.NewDownloader(logger, "fetcharr-test"),
		Extractor:      archive.NewExtractor(logger),
		Replacer:       replacer,
		History:        history,
		UpdateRepo:     "owner/repo",
		CurrentVersion: currentVersion,
	})
}

func TestInstallReleaseDownloadsExtractsAndCleansUp(t *testing.T) {
	srv := releaseServer(t, "v1.2.0", zipBytes(t, map[string]string{
		"readme.md":   "hello",
		"src/main.go": "package main",
	}))

	db, err := database.New(filepath.Join(t.TempDir(), "fetcharr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	history := database.NewHistoryStore(db)

	o := newOrchestrator(t, srv.URL, "v1.0.0", &fakeReplacer{}, history)

	destDir := t.TempDir()
	result, err := o.InstallRelease(context.Background(), "owner/repo", destDir, InstallOptions{
		ExtractOnDownload:         true,
		CreateSubfolder:           true,
		DeleteArchiveAfterExtract: true,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "v1.2.0", result.Tag)
	assert.Equal(t, StateDone, o.State())

	// Exactly one new subdirectory named repo-1.2.0, no archive left behind.
	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "repo-1.2.0", entries[0].Name())
	assert.True(t, entries[0].IsDir())

	content, err := os.ReadFile(filepath.Join(destDir, "repo-1.2.0", "src", "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main", string(content))

	ops, err := history.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, database.KindInstall, ops[0].Kind)
	assert.Equal(t, database.StatusDone, ops[0].Status)
	assert.Equal(t, "v1.2.0", ops[0].Tag)
}

func TestInstallReleaseWithoutExtraction(t *testing.T) {
	srv := releaseServer(t, "v1.2.0", zipBytes(t, map[string]string{"a": "b"}))
	o := newOrchestrator(t, srv.URL, "v1.0.0", &fakeReplacer{}, nil)

	destDir := t.TempDir()
	result, err := o.InstallRelease(context.Background(), "owner/repo", destDir, InstallOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(destDir, "repo-1.2.0.zip"), result.ArchivePath)
	assert.Empty(t, result.ExtractedPath)
	_, err = os.Stat(result.ArchivePath)
	require.NoError(t, err)
}

func TestInstallReleaseRejectsConcurrentOperation(t *testing.T) {
	o := newOrchestrator(t, "http://unused.invalid", "v1.0.0", &fakeReplacer{}, nil)
	o.state.Store(int32(StateTransferring))

	_, err := o.InstallRelease(context.Background(), "owner/repo", t.TempDir(), InstallOptions{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBusy))
}

func TestInstallReleasePreservesErrorKindAndReturnsToRunnable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	o := newOrchestrator(t, srv.URL, "v1.0.0", &fakeReplacer{}, nil)

	_, err := o.InstallRelease(context.Background(), "owner/repo", t.TempDir(), InstallOptions{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, StateFailed, o.State())

	// Failed is terminal-reentrant.
	_, err = o.InstallRelease(context.Background(), "owner/repo", t.TempDir(), InstallOptions{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, errors.Is(err, domain.ErrBusy))
}

func TestCheckForSelfUpdateComparesTagsLexicographically(t *testing.T) {
	srv := releaseServer(t, "v2.0.0", nil)
	o := newOrchestrator(t, srv.URL, "v1.0.0", &fakeReplacer{}, nil)

	check, err := o.CheckForSelfUpdate(context.Background())
	require.NoError(t, err)
	assert.True(t, check.UpdateAvailable)
	assert.Equal(t, "v2.0.0", check.LatestTag)
}

func TestCheckForSelfUpdateKeepsLexicographicOrderingOnDisagreement(t *testing.T) {
	// Lexicographically "0.10.0" sorts below "0.2.0", so no update is
	// reported even though semver says otherwise.
	srv := releaseServer(t, "v0.10.0", nil)
	o := newOrchestrator(t, srv.URL, "v0.2.0", &fakeReplacer{}, nil)

	check, err := o.CheckForSelfUpdate(context.Background())
	require.NoError(t, err)
	assert.False(t, check.UpdateAvailable)
}

func TestPerformSelfUpdateStagesAndHandsOff(t *testing.T) {
	srv := releaseServer(t, "v2.0.0", nil)
	replacer := &fakeReplacer{stagedPath: "/tmp/staged"}
	o := newOrchestrator(t, srv.URL, "v1.0.0", replacer, nil)

	applied, err := o.PerformSelfUpdate(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, replacer.staged)
	assert.True(t, replacer.handedOff)
	assert.Equal(t, StateDone, o.State())
}

func TestPerformSelfUpdateNoopWhenAlreadyCurrent(t *testing.T) {
	srv := releaseServer(t, "v1.0.0", nil)
	replacer := &fakeReplacer{}
	o := newOrchestrator(t, srv.URL, "v1.0.0", replacer, nil)

	applied, err := o.PerformSelfUpdate(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.False(t, replacer.staged)
	assert.False(t, replacer.handedOff)
	assert.Equal(t, StateDone, o.State())
}

func TestPerformSelfUpdateFailureKeepsKind(t *testing.T) {
	srv := releaseServer(t, "v2.0.0", nil)
	replacer := &fakeReplacer{stageErr: errors.Wrap(domain.ErrIO, "disk full")}
	o := newOrchestrator(t, srv.URL, "v1.0.0", replacer, nil)

	_, err := o.PerformSelfUpdate(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIO))
	assert.Equal(t, StateFailed, o.State())
}
