// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package update

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceCachesCheckResult(t *testing.T) {
	srv := releaseServer(t, "v2.0.0", nil)
	o := newOrchestrator(t, srv.URL, "v1.0.0", &fakeReplacer{}, nil)

	s := NewService(zerolog.Nop(), o, true)
	assert.Nil(t, s.LatestResult())
	assert.True(t, s.LastChecked().IsZero())

	s.CheckUpdates(context.Background())

	result := s.LatestResult()
	require.NotNil(t, result)
	assert.True(t, result.UpdateAvailable)
	assert.Equal(t, "v2.0.0", result.LatestTag)
	assert.False(t, s.LastChecked().IsZero())
}

func TestServiceSkipsCheckWhenDisabled(t *testing.T) {
	srv := releaseServer(t, "v2.0.0", nil)
	o := newOrchestrator(t, srv.URL, "v1.0.0", &fakeReplacer{}, nil)

	s := NewService(zerolog.Nop(), o, false)
	s.CheckUpdates(context.Background())
	assert.Nil(t, s.LatestResult())
	assert.True(t, s.LastChecked().IsZero())
}
