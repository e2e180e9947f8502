// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxrt

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"code.hybscloud.com/sandboxrt/internal/wire"
	"code.hybscloud.com/sandboxrt/sandboxworker"
)

// newLinkedWorker wires a manager-side Worker directly to a worker-side
// dispatch loop over a net.Pipe, exercising the full protocol between
// the two packages without spawning a real subprocess.
func newLinkedWorker(t *testing.T) *Worker {
	t.Helper()
	c1, c2 := net.Pipe()

	w := &Worker{
		ID:      "linked-worker",
		opts:    defaultOptions(),
		conn:    c1,
		wc:      wire.NewConn(c1, c1, 0),
		pending: newPendingMap(),
		running: true,
		exited:  make(chan struct{}),
	}
	go w.receiveLoop()

	registry := sandboxworker.NewRegistry()
	srv := sandboxworker.NewConnServer(registry, c2, sandboxworker.ServeOptions{Logger: zerolog.Nop()})
	go srv.Run()

	t.Cleanup(func() {
		// markTerminated first so the background receive loop's transport-
		// failure handling (which assumes a real spawned process) sees the
		// worker as already stopped instead of trying to kill a nil cmd.
		w.markTerminated()
		c1.Close()
		c2.Close()
	})
	return w
}

func TestIntegration_FetchIdentityRoundTrip(t *testing.T) {
	t.Parallel()

	w := newLinkedWorker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	v, err := w.Fetch(ctx, "core.identity", true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if v != true {
		t.Fatalf("v = %v, want true", v)
	}
}

func TestIntegration_EvalDefineAssignFetch(t *testing.T) {
	t.Parallel()

	w := newLinkedWorker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := w.EvalWait(ctx, "S", "module S end"); err != nil {
		t.Fatalf("define module: %v", err)
	}
	if err := w.EvalWait(ctx, "S", `S.x = "hi"`); err != nil {
		t.Fatalf("assign: %v", err)
	}
	v, err := w.EvalFetch(ctx, "S", "S.x")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if v != "hi" {
		t.Fatalf("v = %v, want hi", v)
	}
}

func TestIntegration_RemoteChannelOrderedPutTake(t *testing.T) {
	t.Parallel()

	w := newLinkedWorker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := NewRemoteChannel(ctx, w, 20)
	if err != nil {
		t.Fatalf("NewRemoteChannel: %v", err)
	}

	errs := make(chan error, 1)
	go func() {
		for i := 1; i <= 40; i++ {
			if err := ch.Put(ctx, i); err != nil {
				errs <- err
				return
			}
		}
		errs <- nil
	}()

	for i := 1; i <= 40; i++ {
		v, err := ch.Take(ctx)
		if err != nil {
			t.Fatalf("Take[%d]: %v", i, err)
		}
		if v != i {
			t.Fatalf("Take[%d] = %v, want %d", i, v, i)
		}
	}
	if err := <-errs; err != nil {
		t.Fatalf("Put: %v", err)
	}

	ready, err := ch.Ready(ctx)
	if err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if ready {
		t.Fatal("Ready() = true after draining the channel")
	}
}

// unregisteredPayload is never passed to wire.Register, so gob refuses
// to encode a value of this type stored in an any, mirroring what a
// caller sees when it forgets to register a concrete argument type.
type unregisteredPayload struct{ X int }

func TestIntegration_UnregisteredTypeFailsToEncodeWithoutCorruptingStream(t *testing.T) {
	t.Parallel()

	w := newLinkedWorker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id := w.allocID()
	fut := newFuture()
	w.pending.insert(id, fut, "unused.fn")
	if err := w.wc.WriteFrame(wire.KindCall, id, unregisteredPayload{X: 1}); err == nil {
		t.Fatal("expected WriteFrame to fail encoding an unregistered type")
	}
	w.pending.remove(id)

	v, err := w.Fetch(ctx, "core.identity", true)
	if err != nil {
		t.Fatalf("Fetch after failed encode: %v", err)
	}
	if v != true {
		t.Fatalf("v = %v, want true", v)
	}
}

func TestIntegration_UnregisteredFuncSurfacesRemoteError(t *testing.T) {
	t.Parallel()

	w := newLinkedWorker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := w.Fetch(ctx, "does.not.exist")
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
}
