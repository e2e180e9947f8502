// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !windows

package sig

import "syscall"

const interruptible = true

// SendInterrupt delivers SIGINT directly to pid.
func SendInterrupt(pid int) error {
	return syscall.Kill(pid, syscall.SIGINT)
}

// SendTerminate delivers SIGTERM directly to pid, requesting a graceful
// shutdown. Worker.Kill falls back to an unconditional kill only when
// this returns an error.
func SendTerminate(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}
