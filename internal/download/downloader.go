// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package download streams HTTP responses to disk in bounded chunks and
// reports transfer progress.
package download

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/autobrr/fetcharr/internal/domain"
	"github.com/autobrr/fetcharr/internal/pkg/timeouts"
	"github.com/autobrr/fetcharr/pkg/httphelpers"
)

// chunkSize is the fixed transfer granularity; one progress callback fires
// per chunk.
const chunkSize = 8 * 1024

// ProgressFunc receives transfer progress after each chunk. fraction is nil
// when the server reported no content length (indeterminate). Callbacks are
// invoked synchronously from the transfer goroutine, strictly in order, and
// the next chunk is not read until the callback returns. Callers that own
// UI state must marshal onto their own loop.
type ProgressFunc func(fraction *float64, downloaded, total int64)

// Downloader streams one URL at a time to disk. A download cannot be resumed
// or cancelled mid-transfer beyond context expiry; failed transfers leave the
// partial file in place for diagnostics.
type Downloader struct {
	log       zerolog.Logger
	userAgent string

	httpClient *http.Client
}

// NewDownloader returns a Downloader.
func NewDownloader(log zerolog.Logger, userAgent string) *Downloader {
	return &Downloader{
		log:        log.With().Str("component", "download").Logger(),
		userAgent:  userAgent,
		httpClient: &http.Client{}, // deadline comes from the request context
	}
}

// Download streams url to destPath and returns the bytes written.
// Error kinds: domain.ErrNetwork for transport failures, domain.ErrIO when
// the destination cannot be created or written.
func (d *Downloader) Download(ctx context.Context, url, destPath string, onProgress ProgressFunc) (int64, error) {
	ctx, cancel := timeouts.WithFetchTimeout(ctx, timeouts.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.Wrap(domain.ErrNetwork, err.Error())
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.httpClient.Do(req) //nolint:bodyclose // closed by DrainAndClose
	if err != nil {
		return 0, errors.Wrapf(domain.ErrNetwork, "get %s: %v", url, err)
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Wrapf(domain.ErrNetwork, "unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, errors.Wrapf(domain.ErrIO, "create destination directory: %v", err)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return 0, errors.Wrapf(domain.ErrIO, "create %s: %v", destPath, err)
	}

	total := resp.ContentLength // -1 when the server did not report one
	written, copyErr := copyChunks(out, resp.Body, total, onProgress)

	if closeErr := out.Close(); closeErr != nil && copyErr == nil {
		copyErr = errors.Wrapf(domain.ErrIO, "close %s: %v", destPath, closeErr)
	}
	if copyErr != nil {
		// The partial file stays on disk for diagnostics.
		return written, copyErr
	}

	d.log.Debug().
		Str("url", url).
		Str("size", humanize.Bytes(uint64(written))).
		Msg("download complete")

	return written, nil
}

// copyChunks copies src to dst in chunkSize pieces, invoking onProgress after
// every chunk. Progress is monotonically non-decreasing and never exceeds
// total when total is known.
func copyChunks(dst io.Writer, src io.Reader, total int64, onProgress ProgressFunc) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return written, errors.Wrapf(domain.ErrIO, "write chunk: %v", writeErr)
			}
			written += int64(n)

			if onProgress != nil {
				var fraction *float64
				if total > 0 {
					f := float64(written) / float64(total)
					fraction = &f
				}
				onProgress(fraction, written, total)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, errors.Wrapf(domain.ErrNetwork, "read body: %v", readErr)
		}
	}
}
