// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxrt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"code.hybscloud.com/sandboxrt/internal/tcpopts"
	"code.hybscloud.com/sandboxrt/internal/wire"
)

// Worker is a handle to one spawned worker process. A Worker is safe for
// concurrent use by any number of goroutines; exactly one background
// goroutine (the receive loop) reads from the underlying connection.
type Worker struct {
	ID string

	opts Options
	cmd  *exec.Cmd
	conn net.Conn
	wc   *wire.Conn

	nextID  uint64
	pending *pendingMap

	runningMu sync.Mutex
	running   bool
	stopGroup singleflight.Group

	exited chan struct{}
}

// SpawnWorker launches a worker process, performs the stdout handshake,
// connects to its listening port, and starts the receive loop. The
// returned Worker is ready for calls as soon as SpawnWorker returns.
func SpawnWorker(ctx context.Context, opts ...Option) (*Worker, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cmd := exec.CommandContext(ctx, o.WorkerBin, o.Args...)
	cmd.Env = o.Env
	cmd.Dir = o.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Err: fmt.Errorf("open stdout pipe: %w", err)}
	}
	var stderrBuf strings.Builder
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Err: fmt.Errorf("open stderr pipe: %w", err)}
	}
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stderrW.Close()
		return nil, &SpawnError{Err: fmt.Errorf("start process: %w", err)}
	}
	stderrW.Close()
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := stderrR.Read(buf)
			if n > 0 {
				stderrBuf.Write(buf[:n])
				if o.Stderr != nil {
					o.Stderr(append([]byte(nil), buf[:n]...))
				}
			}
			if err != nil {
				return
			}
		}
	}()

	deadline := time.Now().Add(o.HandshakeTimeout)
	port, err := readHandshakeLine(stdout, deadline)
	if err != nil {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
		return nil, &SpawnError{Stderr: stderrBuf.String(), Err: err}
	}

	dialer := net.Dialer{}
	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	conn, err := dialer.DialContext(dialCtx, "tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
		return nil, &SpawnError{Stderr: stderrBuf.String(), Err: fmt.Errorf("dial worker: %w", err)}
	}
	if err := tcpopts.SetLowLatency(conn); err != nil {
		o.Logger.Debug().Err(err).Msg("sandboxrt: low-latency tcp options not applied")
	}

	w := &Worker{
		ID:      uuid.NewString(),
		opts:    o,
		cmd:     cmd,
		conn:    conn,
		wc:      wire.NewConn(bufio.NewReader(conn), conn, o.WriteBufferSize),
		pending: newPendingMap(),
		running: true,
		exited:  make(chan struct{}),
	}

	o.Logger.Info().Str("worker_id", w.ID).Int("pid", cmd.Process.Pid).Int("port", port).Msg("sandboxrt: worker spawned")

	go w.receiveLoop()
	go w.watchExit()
	registerWorker(w)

	return w, nil
}

// readHandshakeLine reads the worker's one-line port announcement,
// failing if the deadline passes first or the line is not a bare
// decimal integer.
func readHandshakeLine(r io.Reader, deadline time.Time) (int, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		br := bufio.NewReader(r)
		line, err := br.ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil && res.line == "" {
			return 0, fmt.Errorf("worker exited before we could connect: %w", res.err)
		}
		port, convErr := strconv.Atoi(strings.TrimSpace(res.line))
		if convErr != nil {
			return 0, fmt.Errorf("worker exited before we could connect: handshake line %q is not a port number", res.line)
		}
		return port, nil
	case <-time.After(time.Until(deadline)):
		return 0, fmt.Errorf("worker exited before we could connect: handshake timed out")
	}
}

// allocID returns the next strictly increasing correlation/channel id.
func (w *Worker) allocID() uint64 {
	return atomic.AddUint64(&w.nextID, 1)
}

// IsRunning reports whether the worker process is believed to still be
// alive.
func (w *Worker) IsRunning() bool {
	w.runningMu.Lock()
	defer w.runningMu.Unlock()
	return w.running
}

func (w *Worker) markTerminated() {
	w.runningMu.Lock()
	already := !w.running
	w.running = false
	w.runningMu.Unlock()
	if !already {
		close(w.exited)
		w.pending.drain(&TerminatedWorkerError{WorkerID: w.ID})
		unregisterWorker(w)
	}
}

func (w *Worker) watchExit() {
	_ = w.cmd.Wait()
	w.markTerminated()
}

// sendFrame allocates an id (when expectReply is true), installs a
// pending sink before writing to the wire, and flushes the frame. It
// returns the allocated id (0 when expectReply is false) and, when a
// reply is expected, the Future that will resolve with it.
func (w *Worker) sendFrame(kind wire.Kind, body any, expectReply bool) (uint64, *Future, error) {
	if !w.IsRunning() {
		return 0, nil, &TerminatedWorkerError{WorkerID: w.ID}
	}

	var id uint64
	var fut *Future
	if expectReply {
		id = w.allocID()
		fut = newFuture()
		funcName := ""
		if cp, ok := body.(wire.CallPayload); ok {
			funcName = cp.FuncName
		}
		w.pending.insert(id, fut, funcName)
	}

	if err := w.wc.WriteFrame(kind, id, body); err != nil {
		if expectReply {
			w.pending.remove(id)
		}
		return 0, nil, &TransportError{WorkerID: w.ID, Err: err}
	}
	return id, fut, nil
}

// Call issues an asynchronous call and returns a Future for its result
// without blocking for the reply.
func (w *Worker) Call(ctx context.Context, funcName string, args ...any) (*Future, error) {
	_, fut, err := w.sendFrame(wire.KindCall, wire.CallPayload{FuncName: funcName, Args: args}, true)
	if err != nil {
		return nil, err
	}
	return fut, nil
}

// Fetch issues a call and blocks until the value is available.
func (w *Worker) Fetch(ctx context.Context, funcName string, args ...any) (any, error) {
	fut, err := w.Call(ctx, funcName, args...)
	if err != nil {
		return nil, err
	}
	return fut.Get(ctx)
}

// Wait issues a call and blocks until it completes, discarding the
// returned value.
func (w *Worker) Wait(ctx context.Context, funcName string, args ...any) error {
	_, fut, err := w.sendFrame(wire.KindCall, wire.CallPayload{FuncName: funcName, Args: args, Discard: true}, true)
	if err != nil {
		return err
	}
	_, err = fut.Get(ctx)
	return err
}

// Do issues a fire-and-forget call: the worker invokes funcName but no
// reply is sent or awaited.
func (w *Worker) Do(funcName string, args ...any) error {
	_, _, err := w.sendFrame(wire.KindCallNoReply, wire.CallPayload{FuncName: funcName, Args: args, Discard: true}, false)
	return err
}

const evalFuncName = "core.eval"

// EvalCall is sugar for Call("core.eval", module, expr).
func (w *Worker) EvalCall(ctx context.Context, module, expr string) (*Future, error) {
	return w.Call(ctx, evalFuncName, module, expr)
}

// EvalFetch is sugar for Fetch("core.eval", module, expr).
func (w *Worker) EvalFetch(ctx context.Context, module, expr string) (any, error) {
	return w.Fetch(ctx, evalFuncName, module, expr)
}

// EvalWait is sugar for Wait("core.eval", module, expr).
func (w *Worker) EvalWait(ctx context.Context, module, expr string) error {
	return w.Wait(ctx, evalFuncName, module, expr)
}

// EvalDo is sugar for Do("core.eval", module, expr).
func (w *Worker) EvalDo(module, expr string) error {
	return w.Do(evalFuncName, module, expr)
}
