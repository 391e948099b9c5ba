// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package release queries a GitHub-compatible hosting API for the latest
// release of a repository and resolves a downloadable archive for it.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/autobrr/fetcharr/internal/domain"
	"github.com/autobrr/fetcharr/internal/pkg/timeouts"
	"github.com/autobrr/fetcharr/pkg/httphelpers"
	"github.com/autobrr/fetcharr/pkg/pathutil"
	"github.com/autobrr/fetcharr/pkg/version"
)

const fetchAttempts = 3

// Release models the parts of a hosting-API release we care about.
type Release struct {
	TagName    string  `json:"tag_name"`
	ZipballURL string  `json:"zipball_url"`
	Assets     []Asset `json:"assets"`
}

// Asset models a downloadable artifact attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// ResolvedAsset is the archive the installer should download.
type ResolvedAsset struct {
	DownloadURL       string
	SuggestedFileName string
	SizeBytes         int64 // 0 when unknown (zipballs report no size)
}

// Client talks to the releases/latest endpoint of a GitHub-compatible API.
type Client struct {
	log       zerolog.Logger
	apiBase   string
	token     string
	userAgent string

	httpClient *http.Client
}

// NewClient returns a configured release client.
func NewClient(log zerolog.Logger, apiBase, token, userAgent string) *Client {
	return &Client{
		log:       log.With().Str("component", "release").Logger(),
		apiBase:   strings.TrimRight(apiBase, "/"),
		token:     token,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeouts.DefaultFetchTimeout,
		},
	}
}

// FetchLatest fetches the latest release of repo ("owner/name") and resolves
// its downloadable archive. Error kinds: domain.ErrNotFound when the API
// answers 404 (no releases published), domain.ErrMalformed when the response
// cannot be parsed or yields no archive candidate, domain.ErrNetwork for
// transport failures.
func (c *Client) FetchLatest(ctx context.Context, repo string) (*ResolvedAsset, *Release, error) {
	rel, err := c.getLatest(ctx, repo)
	if err != nil {
		return nil, nil, err
	}

	asset, err := ResolveAsset(rel, repoName(repo))
	if err != nil {
		return nil, rel, err
	}

	c.log.Debug().
		Str("repo", repo).
		Str("tag", rel.TagName).
		Str("file", asset.SuggestedFileName).
		Msg("resolved release asset")

	return asset, rel, nil
}

func (c *Client) getLatest(ctx context.Context, repo string) (*Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/releases/latest", c.apiBase, repo)

	var release *Release

	// The metadata GET is idempotent, so transient transport errors are
	// retried. Downloads are never retried (no resume support).
	err := retry.Do(
		func() error {
			rel, err := c.getOnce(ctx, endpoint)
			if err != nil {
				return err
			}
			release = rel
			return nil
		},
		retry.Attempts(fetchAttempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, domain.ErrNetwork) && ctx.Err() == nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return release, nil
}

func (c *Client) getOnce(ctx context.Context, endpoint string) (*Release, error) {
	ctx, cancel := timeouts.WithFetchTimeout(ctx, timeouts.DefaultFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(domain.ErrNetwork, err.Error())
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req) //nolint:bodyclose // closed by DrainAndClose
	if err != nil {
		return nil, errors.Wrapf(domain.ErrNetwork, "get %s: %v", endpoint, err)
	}
	defer httphelpers.DrainAndClose(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(domain.ErrNotFound, "no releases published at %s", endpoint)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Wrapf(domain.ErrNetwork, "unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, errors.Wrapf(domain.ErrMalformed, "decode release: %v", err)
	}
	if release.TagName == "" {
		return nil, errors.Wrap(domain.ErrMalformed, "release lacks tag_name")
	}

	return &release, nil
}

// ResolveAsset picks the downloadable archive for a release. The
// auto-generated source zipball is always preferred; otherwise the first
// asset (in list order) whose name carries an archive extension wins.
func ResolveAsset(rel *Release, repoName string) (*ResolvedAsset, error) {
	if rel.ZipballURL != "" {
		name := fmt.Sprintf("%s-%s.zip", repoName, version.Normalize(rel.TagName))
		return &ResolvedAsset{
			DownloadURL:       rel.ZipballURL,
			SuggestedFileName: pathutil.SanitizePathSegment(name),
		}, nil
	}

	for _, asset := range rel.Assets {
		if pathutil.IsArchiveName(asset.Name) {
			return &ResolvedAsset{
				DownloadURL:       asset.BrowserDownloadURL,
				SuggestedFileName: asset.Name,
				SizeBytes:         asset.Size,
			}, nil
		}
	}

	return nil, errors.Wrapf(domain.ErrMalformed, "release %s has no downloadable archive", rel.TagName)
}

func repoName(repo string) string {
	if idx := strings.LastIndex(repo, "/"); idx >= 0 {
		return repo[idx+1:]
	}
	return repo
}
