// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package version compares release tags the way the rest of fetcharr does:
// plain lexicographic ordering on the normalized tag string. That ordering is
// not semver-correct once double-digit components appear ("v0.10.0" sorts
// below "v0.2.0"); SemverDisagrees exists so callers can surface the
// discrepancy without changing the comparison result.
package version

import (
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Normalize strips a leading "v" or "V" prefix and surrounding whitespace
// from a tag so that "v1.2.0" and "1.2.0" compare and render the same way.
func Normalize(tag string) string {
	tag = strings.TrimSpace(tag)
	if len(tag) > 0 && (tag[0] == 'v' || tag[0] == 'V') {
		return tag[1:]
	}
	return tag
}

// Compare returns -1, 0 or 1 ordering a before b lexicographically on the
// normalized tags.
func Compare(a, b string) int {
	return strings.Compare(Normalize(a), Normalize(b))
}

// NewerAvailable reports whether remote orders after current.
func NewerAvailable(current, remote string) bool {
	return Compare(current, remote) < 0
}

// SemverDisagrees reports whether a strict semantic-version comparison of the
// two tags would reach a different verdict than NewerAvailable. Tags that do
// not parse as semver never disagree.
func SemverDisagrees(current, remote string) bool {
	cv, err := goversion.NewVersion(current)
	if err != nil {
		return false
	}
	rv, err := goversion.NewVersion(remote)
	if err != nil {
		return false
	}
	return rv.GreaterThan(cv) != NewerAvailable(current, remote)
}
