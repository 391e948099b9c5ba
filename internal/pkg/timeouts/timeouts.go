// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package timeouts

import (
	"context"
	"time"
)

const (
	// DefaultFetchTimeout bounds a single release-metadata request.
	DefaultFetchTimeout = 30 * time.Second
	// DownloadTimeout caps an archive or binary transfer; large enough for
	// multi-megabyte assets on slow links.
	DownloadTimeout = 15 * time.Minute
)

// WithFetchTimeout enforces a timeout only when the parent context lacks a deadline.
func WithFetchTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if ctx == nil {
		return context.WithTimeout(context.Background(), timeout)
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
