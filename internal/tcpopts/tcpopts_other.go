// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package tcpopts

import "net"

// setQuickAck is a no-op on platforms without TCP_QUICKACK.
func setQuickAck(tc *net.TCPConn) {}
