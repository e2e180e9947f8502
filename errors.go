// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxrt

import "fmt"

// TerminatedWorkerError reports an attempt to use a Worker whose process
// has already exited.
type TerminatedWorkerError struct {
	WorkerID string
}

func (e *TerminatedWorkerError) Error() string {
	return fmt.Sprintf("sandboxrt: worker %s has terminated", e.WorkerID)
}

// RemoteError wraps a value raised by a registered function on the
// worker, rethrown into the caller's goroutine as if the call had been
// local.
type RemoteError struct {
	WorkerID string
	FuncName string
	Message  string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("sandboxrt: %s: %s: %s", e.WorkerID, e.FuncName, e.Message)
}

// SerializationError reports that a frame body could not be decoded.
// The stream has already been resynchronized by the time this error
// surfaces; subsequent calls on the same Worker remain usable.
type SerializationError struct {
	WorkerID string
	Detail   string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("sandboxrt: %s: serialization failure: %s", e.WorkerID, e.Detail)
}

// TransportError reports that a call's frame could not be sent: either
// the body failed to encode (nothing is written then, and the Worker
// stays usable) or the socket write failed. A failed read on the
// connection is handled by the receive loop instead, which force-kills a
// still-running worker after the grace period.
type TransportError struct {
	WorkerID string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sandboxrt: %s: transport failure: %v", e.WorkerID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SpawnError reports that the worker process exited, or never produced
// a readable handshake line, before the manager could connect.
type SpawnError struct {
	Stderr string
	Err    error
}

func (e *SpawnError) Error() string {
	msg := fmt.Sprintf("sandboxrt: worker exited before we could connect: %v", e.Err)
	if e.Stderr != "" {
		msg += fmt.Sprintf(" (stderr: %s)", e.Stderr)
	}
	return msg
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TimeoutError reports that WaitForExit's deadline elapsed while the
// worker was still running.
type TimeoutError struct {
	WorkerID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("sandboxrt: %s: timed out waiting for exit", e.WorkerID)
}
