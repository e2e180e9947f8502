// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxrt

import (
	"time"

	"code.hybscloud.com/sandboxrt/internal/wire"
)

// receiveLoop is the Worker's single dedicated reader goroutine. It
// reads one frame at a time and fans replies out to the pending map by
// correlation id. It returns when the connection closes or a protocol
// error makes the stream unrecoverable.
func (w *Worker) receiveLoop() {
	for {
		kind, id, body, err := w.wc.ReadFrame()
		if err != nil {
			w.opts.Logger.Debug().Err(err).Str("worker_id", w.ID).Msg("sandboxrt: receive loop ending")
			w.handleTransportFailure()
			return
		}

		switch kind {
		case wire.KindResult:
			payload, _ := body.(wire.ResultPayload)
			if !w.pending.deliver(id, result{value: payload.Value}) {
				w.opts.Logger.Debug().Uint64("id", id).Str("worker_id", w.ID).Msg("sandboxrt: reply for unknown or abandoned id")
			}
		case wire.KindFailure:
			payload, _ := body.(wire.FailurePayload)
			funcName, _ := w.pending.funcName(id)
			remoteErr := &RemoteError{WorkerID: w.ID, FuncName: funcName, Message: payload.Message}
			if !w.pending.deliver(id, result{err: remoteErr}) {
				w.opts.Logger.Debug().Uint64("id", id).Str("worker_id", w.ID).Msg("sandboxrt: failure reply for unknown or abandoned id")
			}
		case wire.KindSerializationFailure:
			payload, _ := body.(wire.FailurePayload)
			serErr := &SerializationError{WorkerID: w.ID, Detail: payload.Message}
			if !w.pending.deliver(id, result{err: serErr}) {
				w.opts.Logger.Debug().Uint64("id", id).Str("worker_id", w.ID).Msg("sandboxrt: serialization failure for unknown or abandoned id")
			}
		default:
			w.opts.Logger.Debug().Str("kind", kind.String()).Str("worker_id", w.ID).Msg("sandboxrt: unexpected frame kind from worker")
		}
	}
}

// handleTransportFailure implements the grace-period-then-kill policy:
// the connection is the worker's only control channel, so once it is
// gone a still-running process is force-killed rather than left in a
// half-open state.
func (w *Worker) handleTransportFailure() {
	if !w.IsRunning() {
		return
	}
	select {
	case <-w.exited:
		return
	case <-time.After(w.opts.GracePeriod):
	}
	if w.IsRunning() {
		_ = w.killProcess()
	}
}
