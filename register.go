// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxrt

import "code.hybscloud.com/sandboxrt/internal/wire"

// Register records a concrete type with the wire serializer so values
// of that type can flow through call arguments and results. Both the
// manager and worker processes must register the same types before any
// value of that type crosses the wire. A reply value whose type the
// manager has not registered surfaces to the caller as a
// *SerializationError; a call argument of an unregistered type fails to
// encode before anything is written, and the call returns a
// *TransportError wrapping the encode error.
func Register(value any) {
	wire.Register(value)
}
