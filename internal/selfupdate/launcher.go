// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package selfupdate

import (
	"os/exec"
)

// ProcessLauncher starts a process detached from the current process tree so
// it survives this process exiting.
type ProcessLauncher interface {
	StartDetached(path string, args []string, dir string) error
}

type osLauncher struct{}

// NewLauncher returns the ProcessLauncher for the current platform.
func NewLauncher() ProcessLauncher {
	return osLauncher{}
}

func (osLauncher) StartDetached(path string, args []string, dir string) error {
	cmd := exec.Command(path, args...)
	cmd.Dir = dir
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return err
	}
	// Orphan the child so it is not reaped with this process tree.
	return cmd.Process.Release()
}
