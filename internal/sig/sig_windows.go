// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build windows

package sig

import "errors"

const interruptible = false

// SendInterrupt is unsupported on Windows: there is no way to route
// SIGINT to a child process independently of the parent's own console
// process group. Callers must use the wire-level interrupt frame.
func SendInterrupt(pid int) error {
	return errors.New("sig: SendInterrupt not supported on windows")
}

// SendTerminate is unsupported on Windows; Worker.Kill falls back to
// os.Process.Kill directly instead of calling this function.
func SendTerminate(pid int) error {
	return errors.New("sig: SendTerminate not supported on windows")
}
