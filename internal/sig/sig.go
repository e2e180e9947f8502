// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sig delivers POSIX signals to a child process by pid, used by
// Worker.Interrupt on platforms where the host can route SIGINT to a
// child independently of its own process group.
package sig

// Interruptible reports whether SendInterrupt can deliver SIGINT to a
// child pid on this platform. Where it cannot (Windows), callers fall
// back to the wire-level interrupt frame instead.
func Interruptible() bool { return interruptible }
