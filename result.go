// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxrt

import "context"

// result is what a pending call resolves to: either a decoded value or
// an error (RemoteError, SerializationError, or TerminatedWorkerError if
// the worker exited first). A caller that gives up first gets its
// context error from Get; that error is never stored in a result.
type result struct {
	value any
	err   error
}

// Future is the deferred result of an asynchronous Call. It resolves
// exactly once, when the worker's reply frame arrives or the Worker is
// stopped, whichever comes first.
type Future struct {
	done chan result
}

func newFuture() *Future {
	return &Future{done: make(chan result, 1)}
}

func (f *Future) deliver(r result) {
	f.done <- r
}

// Get blocks until the call resolves or ctx is done, whichever comes
// first. Calling Get more than once on the same Future returns the same
// outcome.
func (f *Future) Get(ctx context.Context) (any, error) {
	select {
	case r, ok := <-f.done:
		if !ok {
			return nil, context.Canceled
		}
		// Re-buffer so a second Get still observes the outcome.
		f.done <- r
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
