// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "1.2.0", Normalize("v1.2.0"))
	assert.Equal(t, "1.2.0", Normalize("V1.2.0"))
	assert.Equal(t, "1.2.0", Normalize(" 1.2.0 "))
	assert.Equal(t, "", Normalize(""))
}

func TestNewerAvailable(t *testing.T) {
	assert.True(t, NewerAvailable("v1.2.0", "v1.3.0"))
	assert.False(t, NewerAvailable("v1.3.0", "v1.2.0"))
	assert.False(t, NewerAvailable("v1.2.0", "v1.2.0"))
	assert.True(t, NewerAvailable("1.2.0", "v1.3.0"))
}

// The ordering is deliberately lexicographic, so double-digit components sort
// before single-digit ones. This pins the observed behavior rather than a
// semver-correct one.
func TestNewerAvailableLexicographicGap(t *testing.T) {
	assert.True(t, NewerAvailable("v0.10.0", "v0.2.0"))
	assert.False(t, NewerAvailable("v0.2.0", "v0.10.0"))
}

func TestSemverDisagrees(t *testing.T) {
	assert.True(t, SemverDisagrees("v0.10.0", "v0.2.0"))
	assert.True(t, SemverDisagrees("v0.2.0", "v0.10.0"))
	assert.False(t, SemverDisagrees("v1.2.0", "v1.3.0"))
	assert.False(t, SemverDisagrees("not-a-version", "v1.0.0"))
}
