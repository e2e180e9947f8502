// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxrt

import (
	"runtime"
	"sync"
	"time"
	"weak"

	"code.hybscloud.com/sandboxrt/internal/sig"
	"code.hybscloud.com/sandboxrt/internal/wire"
)

// Stop asks the worker to terminate itself cleanly by firing a
// fire-and-forget "terminate" call, then returns whether a stop request
// was issued — not whether the process has actually exited yet. Stop is
// idempotent: concurrent callers (an explicit Stop, the finalizer, and
// StopAll all racing) coalesce into a single in-flight request.
func (w *Worker) Stop() bool {
	v, _, _ := w.stopGroup.Do("stop", func() (any, error) {
		if !w.IsRunning() {
			return false, nil
		}
		err := w.Do("core.terminate")
		if err != nil {
			return false, nil
		}
		go w.awaitGracefulExit()
		return true, nil
	})
	issued, _ := v.(bool)
	return issued
}

// awaitGracefulExit escalates to Kill if the worker has not exited on
// its own within the configured grace period after a Stop request.
func (w *Worker) awaitGracefulExit() {
	select {
	case <-w.exited:
		return
	case <-time.After(w.opts.GracePeriod):
	}
	if w.IsRunning() {
		_ = w.killProcess()
	}
}

// Kill delivers an OS-level terminate signal to the worker process:
// SIGTERM where the platform supports routing it to a child
// independently, or an unconditional process kill otherwise.
func (w *Worker) Kill() error {
	return w.killProcess()
}

func (w *Worker) killProcess() error {
	if sig.Interruptible() {
		if err := sig.SendTerminate(w.cmd.Process.Pid); err == nil {
			return nil
		}
	}
	return w.cmd.Process.Kill()
}

// Interrupt delivers a best-effort cancellation of the worker's
// currently running call. On POSIX platforms this is SIGINT sent
// directly to the child pid; elsewhere it is a wire-level interrupt
// frame, since the OS provides no way to route SIGINT to a child
// independently of the parent's own process group.
func (w *Worker) Interrupt() error {
	if !w.IsRunning() {
		return &TerminatedWorkerError{WorkerID: w.ID}
	}
	if sig.Interruptible() {
		return sig.SendInterrupt(w.cmd.Process.Pid)
	}
	_, _, err := w.sendFrame(wire.KindInterrupt, wire.InterruptPayload{}, false)
	return err
}

// WaitForExit polls IsRunning until it reports false or timeout
// elapses. On timeout it returns a *TimeoutError; callers typically
// escalate to Kill in response.
func (w *Worker) WaitForExit(timeout time.Duration) error {
	select {
	case <-w.exited:
		return nil
	case <-time.After(timeout):
		return &TimeoutError{WorkerID: w.ID}
	}
}

// live tracks every Worker that has not yet been stopped, so StopAll
// can request a graceful shutdown of everything still running — the
// closest Go-idiomatic substitute for a process-exit hook, wired into
// cmd/sandboxctl's own signal handling.
//
// It holds weak.Pointer values rather than *Worker directly. A strong
// reference here would keep every spawned Worker reachable for the
// life of the process, since a map (key or value) counts as a
// reference like any other — which would mean the finalizer registered
// in registerWorker could never run while the process is alive, no
// matter how thoroughly a caller dropped its own handle. A weak pointer
// lets the registry observe a Worker without being the thing that
// keeps it alive.
var live = struct {
	mu      sync.Mutex
	workers map[weak.Pointer[Worker]]struct{}
}{workers: make(map[weak.Pointer[Worker]]struct{})}

func registerWorker(w *Worker) {
	live.mu.Lock()
	live.workers[weak.Make(w)] = struct{}{}
	live.mu.Unlock()

	runtime.SetFinalizer(w, func(w *Worker) {
		w.Stop()
	})
}

func unregisterWorker(w *Worker) {
	live.mu.Lock()
	delete(live.workers, weak.Make(w))
	live.mu.Unlock()
}

// StopAll issues Stop to every Worker spawned in this process that has
// not already terminated. Intended for use from a top-level signal
// handler (see cmd/sandboxctl) so no worker subprocess outlives its
// manager.
func StopAll() {
	live.mu.Lock()
	refs := make([]weak.Pointer[Worker], 0, len(live.workers))
	for wp := range live.workers {
		refs = append(refs, wp)
	}
	live.mu.Unlock()

	for _, wp := range refs {
		if w := wp.Value(); w != nil {
			w.Stop()
		}
	}
}
