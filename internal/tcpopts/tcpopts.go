// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tcpopts applies the low-latency socket options the manager
// and worker both want on their shared connection: Nagle disabled and,
// where the platform supports it, TCP quick-ack enabled. Neither option
// is part of the protocol's correctness contract; failures to apply
// them are logged by the caller and otherwise ignored.
package tcpopts

import "net"

// SetLowLatency disables Nagle's algorithm and, best-effort, enables
// quick-ack on conn. It is a no-op (returning nil) for connections that
// are not *net.TCPConn, so it is always safe to call on a generic
// net.Conn such as the one returned by a dialer or listener.
func SetLowLatency(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetNoDelay(true); err != nil {
		return err
	}
	setQuickAck(tc)
	return nil
}
