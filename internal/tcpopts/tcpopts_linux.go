// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package tcpopts

import (
	"net"

	"golang.org/x/sys/unix"
)

// setQuickAck enables TCP_QUICKACK on the connection's file descriptor.
// It is best-effort: any error is swallowed, since quick-ack is a
// latency tweak, not a correctness requirement.
func setQuickAck(tc *net.TCPConn) {
	raw, err := tc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	})
}
