// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sandboxworker implements the worker side of the sandboxed
// multiprocessing runtime: a registered-function table, a dispatch loop
// bound to one accepted connection, and the built-in functions
// (terminate, remote-channel operations, eval, identity, sleep) that
// every worker process exposes.
package sandboxworker

import (
	"context"
	"fmt"
	"sync"
)

// Func is a worker-side callable registered under a name and invoked by
// a manager's Call/Fetch/Wait/Do. args is the gob-decoded argument
// slice carried by the call frame.
type Func func(ctx context.Context, args []any) (result any, err error)

// Registry maps function names to their implementations. The zero value
// is not usable; construct with NewRegistry.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns a Registry pre-populated with the always-available
// core.* built-ins (identity, sleep, eval, and the RemoteChannel
// operations). core.terminate is not among them: NewConnServer registers
// it, bound to the connection it serves.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	registerBuiltins(r)
	return r
}

// Register records fn under name, overwriting any previous registration.
// Call before Serve; registering concurrently with an in-flight dispatch
// loop is safe but racy with respect to which version a given call sees.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

func (r *Registry) lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// ErrUnknownFunc reports a call naming a function the worker has no
// registration for.
type ErrUnknownFunc struct {
	Name string
}

func (e *ErrUnknownFunc) Error() string {
	return fmt.Sprintf("sandboxworker: no function registered under name %q", e.Name)
}
