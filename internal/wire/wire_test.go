// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
)

func TestWriteReadFrame_RoundTrip(t *testing.T) {
	t.Parallel()

	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	writer := NewConn(c1, c1, 0)
	reader := NewConn(c2, c2, 0)

	done := make(chan error, 1)
	go func() {
		done <- writer.WriteFrame(KindCall, 7, CallPayload{FuncName: "core.identity", Args: []any{"hi"}})
	}()

	kind, id, body, err := reader.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if kind != KindCall {
		t.Fatalf("kind = %v, want %v", kind, KindCall)
	}
	if id != 7 {
		t.Fatalf("id = %d, want 7", id)
	}
	payload, ok := body.(CallPayload)
	if !ok {
		t.Fatalf("body type = %T, want CallPayload", body)
	}
	if payload.FuncName != "core.identity" || len(payload.Args) != 1 || payload.Args[0] != "hi" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestWriteReadFrame_MultipleFramesStayAligned(t *testing.T) {
	t.Parallel()

	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	writer := NewConn(c1, c1, 0)
	reader := NewConn(c2, c2, 0)

	const n = 5
	errs := make(chan error, 1)
	go func() {
		for i := uint64(0); i < n; i++ {
			if err := writer.WriteFrame(KindResult, i, ResultPayload{Value: int(i)}); err != nil {
				errs <- err
				return
			}
		}
		errs <- nil
	}()

	for i := uint64(0); i < n; i++ {
		kind, id, body, err := reader.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame[%d]: %v", i, err)
		}
		if kind != KindResult || id != i {
			t.Fatalf("frame[%d] = (%v,%d), want (result,%d)", i, kind, id, i)
		}
		rp, ok := body.(ResultPayload)
		if !ok || rp.Value != int(i) {
			t.Fatalf("frame[%d] payload = %+v", i, body)
		}
	}
	if err := <-errs; err != nil {
		t.Fatalf("writer goroutine: %v", err)
	}
}

func TestReadFrame_ClosedAtBoundary(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader(nil)
	conn := NewConn(r, io.Discard, 0)
	_, _, _, err := conn.ReadFrame()
	if err != ErrClosed {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestReadFrame_ShortIDIsProtocolError(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader([]byte{byte(KindCall), 0x01, 0x02})
	conn := NewConn(r, io.Discard, 0)
	_, _, _, err := conn.ReadFrame()
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("err = %v, want ErrProtocol on short id read", err)
	}
}

// TestReadFrame_ResyncsAfterGarbage puts a frame with a garbage body in
// front of a well-formed frame to exercise the delimiter resync path
// deterministically.
func TestReadFrame_ResyncsAfterGarbage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writer := NewConn(&buf, &buf, 0)

	// Hand-corrupt a frame: write a header, garbage body bytes instead of
	// a valid gob stream, then the delimiter, then a clean frame.
	buf.WriteByte(byte(KindCall))
	var idBytes [8]byte
	idBytes[0] = 42
	buf.Write(idBytes[:])
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff}) // not a valid gob stream
	buf.Write(Delimiter[:])

	if err := writer.WriteFrame(KindResult, 99, ResultPayload{Value: "ok"}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	reader := NewConn(&buf, io.Discard, 0)

	kind, id, body, err := reader.ReadFrame()
	if err != nil {
		t.Fatalf("first ReadFrame: %v", err)
	}
	if kind != KindSerializationFailure || id != 42 {
		t.Fatalf("first frame = (%v,%d), want (serialization-failure,42)", kind, id)
	}
	if _, ok := body.(FailurePayload); !ok {
		t.Fatalf("first frame body type = %T, want FailurePayload", body)
	}

	kind, id, body, err = reader.ReadFrame()
	if err != nil {
		t.Fatalf("second ReadFrame: %v", err)
	}
	if kind != KindResult || id != 99 {
		t.Fatalf("second frame = (%v,%d), want (result,99)", kind, id)
	}
	rp, ok := body.(ResultPayload)
	if !ok || rp.Value != "ok" {
		t.Fatalf("second frame payload = %+v", body)
	}
}
