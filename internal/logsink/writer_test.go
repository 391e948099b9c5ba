// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package logsink

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCloser struct {
	closed bool
}

func (r *recordingCloser) Close() error {
	r.closed = true
	return nil
}

func TestSwitchableWriterWritesToCurrentTarget(t *testing.T) {
	var first, second bytes.Buffer
	sw := NewSwitchableWriter(&first)

	_, err := sw.Write([]byte("one"))
	require.NoError(t, err)

	sw.Swap(&second, nil)

	_, err = sw.Write([]byte("two"))
	require.NoError(t, err)

	assert.Equal(t, "one", first.String())
	assert.Equal(t, "two", second.String())
}

func TestSwapReturnsOldCloser(t *testing.T) {
	closer := &recordingCloser{}
	sw := NewSwitchableWriter(&bytes.Buffer{})
	sw.Swap(&bytes.Buffer{}, closer)

	returned := sw.Swap(&bytes.Buffer{}, nil)
	require.NotNil(t, returned)
	require.NoError(t, returned.Close())
	assert.True(t, closer.closed)
}

func TestDetachClosesAndDiscards(t *testing.T) {
	closer := &recordingCloser{}
	sw := NewSwitchableWriter(&bytes.Buffer{})
	sw.Swap(&bytes.Buffer{}, closer)

	require.NoError(t, sw.Detach(nil))
	assert.True(t, closer.closed)

	// Writes after detaching to nil are dropped, not errors.
	n, err := sw.Write([]byte("dropped"))
	require.NoError(t, err)
	assert.Equal(t, len("dropped"), n)
}
