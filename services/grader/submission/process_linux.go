// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build linux

package submission

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcess puts the child in its own process group so cancellation
// kills anything it forked.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return err
	}
}

// applyLimits sets rlimits on a started process. The child may run a few
// instructions before the limits land, which is acceptable for harness
// startup.
func applyLimits(pid int, l Limits) error {
	var errs []error
	set := func(resource int, v uint64) {
		if v == 0 {
			return
		}
		lim := unix.Rlimit{Cur: v, Max: v}
		if err := unix.Prlimit(pid, resource, &lim, nil); err != nil {
			errs = append(errs, err)
		}
	}
	set(unix.RLIMIT_AS, l.MemoryBytes)
	set(unix.RLIMIT_CPU, l.CPUSeconds)
	set(unix.RLIMIT_NOFILE, l.MaxOpenFiles)
	return errors.Join(errs...)
}
