// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package domain holds the shared error kinds surfaced by the update engine.
// The presentation layer decides how to render them; the engine only
// classifies.
package domain

import "github.com/pkg/errors"

var (
	// ErrNotFound indicates the repository has no published releases.
	ErrNotFound = errors.New("no releases found")

	// ErrMalformed indicates an API response that could not be parsed or
	// lacked the fields needed to resolve a downloadable asset.
	ErrMalformed = errors.New("malformed release response")

	// ErrNetwork indicates a transport-level failure or timeout.
	ErrNetwork = errors.New("network error")

	// ErrIO indicates a filesystem create/write/rename/move failure.
	ErrIO = errors.New("io error")

	// ErrBadArchive indicates the downloaded file is not a valid archive.
	ErrBadArchive = errors.New("bad archive")

	// ErrInvalidRelocationTarget indicates a relocation destination that
	// equals or is nested inside the current data directory.
	ErrInvalidRelocationTarget = errors.New("invalid relocation target")

	// ErrBusy indicates another engine operation is already in flight.
	ErrBusy = errors.New("operation already in progress")
)

// Kind returns a short machine-readable name for a classified error, or
// "unknown" when the error does not wrap one of the engine kinds.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrBadArchive):
		return "bad_archive"
	case errors.Is(err, ErrInvalidRelocationTarget):
		return "invalid_target"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "unknown"
	}
}
