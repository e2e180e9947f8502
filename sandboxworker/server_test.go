// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxworker

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"code.hybscloud.com/sandboxrt/internal/wire"
)

// newPipeServer wires a dispatch-loop server to one end of a net.Pipe
// and returns the fake-manager end, mirroring the teacher's net.Pipe
// deterministic-stream test style instead of a real TCP listener.
func newPipeServer(t *testing.T) (*ConnServer, *wire.Conn) {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() {
		c1.Close()
		c2.Close()
	})

	r := NewRegistry()
	s := NewConnServer(r, c1, ServeOptions{Logger: zerolog.Nop()})
	fake := wire.NewConn(c2, c2, 0)
	return s, fake
}

func TestServer_DispatchesCallAndReplies(t *testing.T) {
	t.Parallel()

	s, fake := newPipeServer(t)

	loopErr := make(chan error, 1)
	go func() { loopErr <- s.Run() }()

	if err := fake.WriteFrame(wire.KindCall, 1, wire.CallPayload{FuncName: "core.identity", Args: []any{"x"}}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	kind, id, body, err := fake.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if kind != wire.KindResult || id != 1 {
		t.Fatalf("frame = (%v,%d), want (result,1)", kind, id)
	}
	if rp := body.(wire.ResultPayload); rp.Value != "x" {
		t.Fatalf("value = %v, want x", rp.Value)
	}

	if err := fake.WriteFrame(wire.KindCallNoReply, 0, wire.CallPayload{FuncName: "core.terminate"}); err != nil {
		t.Fatalf("WriteFrame terminate: %v", err)
	}

	select {
	case err := <-loopErr:
		if err != nil {
			t.Fatalf("Run() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after core.terminate")
	}
}

func TestServer_UnknownFuncRepliesFailure(t *testing.T) {
	t.Parallel()

	s, fake := newPipeServer(t)
	go s.Run()

	if err := fake.WriteFrame(wire.KindCall, 5, wire.CallPayload{FuncName: "nope"}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	kind, id, _, err := fake.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if kind != wire.KindFailure || id != 5 {
		t.Fatalf("frame = (%v,%d), want (failure,5)", kind, id)
	}
}

func TestServer_InterruptCancelsLatestCall(t *testing.T) {
	t.Parallel()

	s, fake := newPipeServer(t)
	go s.Run()

	if err := fake.WriteFrame(wire.KindCall, 9, wire.CallPayload{FuncName: "core.sleep", Args: []any{"10s"}}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	// Give the dispatch goroutine a moment to register itself as the
	// latest interrupt target before the interrupt frame arrives.
	time.Sleep(50 * time.Millisecond)
	if err := fake.WriteFrame(wire.KindInterrupt, 0, wire.InterruptPayload{}); err != nil {
		t.Fatalf("WriteFrame interrupt: %v", err)
	}

	kind, id, _, err := fake.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if kind != wire.KindFailure || id != 9 {
		t.Fatalf("frame = (%v,%d), want (failure,9) after interrupt", kind, id)
	}
}
