// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/autobrr/fetcharr/internal/download"
)

// progressPrinter renders download progress on a single line. Callbacks
// arrive in order and never re-enter, so plain closure state is enough.
func progressPrinter(w io.Writer) download.ProgressFunc {
	lastPercent := -1
	var lastBytes int64

	return func(fraction *float64, downloaded, total int64) {
		if fraction != nil {
			percent := int(*fraction * 100)
			if percent == lastPercent {
				return
			}
			lastPercent = percent
			fmt.Fprintf(w, "\rdownloading... %3d%% (%s / %s)", percent,
				humanize.Bytes(uint64(downloaded)), humanize.Bytes(uint64(total)))
			if percent >= 100 {
				fmt.Fprintln(w)
			}
			return
		}

		// No Content-Length: report running byte count every mebibyte.
		if lastBytes == 0 || downloaded-lastBytes >= 1<<20 {
			lastBytes = downloaded
			fmt.Fprintf(w, "\rdownloading... %s", humanize.Bytes(uint64(downloaded)))
		}
	}
}
