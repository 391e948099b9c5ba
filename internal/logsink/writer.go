// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package logsink provides an io.Writer whose underlying destination can be
// swapped or detached at runtime. The self-replace and relocation flows use
// Detach to release the log file handle before handing off to the helper
// process, then Swap to re-establish it if the operation is rolled back.
package logsink

import (
	"io"
	"sync/atomic"
)

// SwitchableWriter is an io.Writer that allows atomic swapping of the underlying writer.
type SwitchableWriter struct {
	target atomic.Pointer[writerWithCloser]
}

type writerWithCloser struct {
	w      io.Writer
	closer io.Closer // optional, may be nil
}

// NewSwitchableWriter creates a new SwitchableWriter with the given initial writer.
func NewSwitchableWriter(initial io.Writer) *SwitchableWriter {
	sw := &SwitchableWriter{}
	sw.target.Store(&writerWithCloser{w: initial})
	return sw
}

// Write writes data to the underlying writer.
// Errors are not wrapped since SwitchableWriter implements io.Writer and
// callers expect standard Write semantics.
func (sw *SwitchableWriter) Write(p []byte) (n int, err error) {
	target := sw.target.Load()
	if target == nil || target.w == nil {
		return len(p), nil
	}
	return target.w.Write(p)
}

// Swap atomically replaces the underlying writer and returns the old closer (if any).
// The caller is responsible for closing the returned closer after the swap.
func (sw *SwitchableWriter) Swap(newWriter io.Writer, newCloser io.Closer) io.Closer {
	old := sw.target.Swap(&writerWithCloser{w: newWriter, closer: newCloser})
	if old != nil {
		return old.closer
	}
	return nil
}

// Detach swaps the underlying writer for fallback (which may be nil to
// discard writes) and closes the previous writer's closer. After Detach
// returns, no file handle from the previous configuration is held open.
func (sw *SwitchableWriter) Detach(fallback io.Writer) error {
	closer := sw.Swap(fallback, nil)
	if closer != nil {
		return closer.Close()
	}
	return nil
}
