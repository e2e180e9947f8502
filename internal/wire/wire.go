// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire implements the manager↔worker frame protocol: a fixed
// header, a gob-encoded body, and a resynchronization delimiter.
//
// Wire format, per frame:
//
//	kind  : u8           message kind
//	id    : u64 LE        correlation id, 0 for frames that never expect a reply
//	body  : opaque        gob-encoded payload
//	bound : 10 bytes      fixed delimiter, see Delimiter
//
// The delimiter is a resynchronization marker, not a length prefix. gob's
// own decoder reads a length-prefixed message of its own and will happily
// try to read past a corrupt body's true extent — on a live socket that
// means blocking for bytes that will never arrive, or consuming the next
// frame outright. So ReadFrame never hands the live stream to gob
// directly: it first scans raw bytes up to (and including) the delimiter
// into an isolated buffer, and only decodes from that buffer. A decode
// failure can then never consume more of the stream than the one frame
// it belongs to, regardless of what the corrupt bytes told gob to do.
package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Kind identifies the purpose of a frame. See the package doc for the
// wire format each kind carries.
type Kind uint8

const (
	// KindCall is a host→worker call that expects a reply.
	KindCall Kind = 0x01
	// KindCallNoReply is a host→worker call with no reply expected.
	KindCallNoReply Kind = 0x02
	// KindInterrupt is a host→worker request to cancel the worker's
	// currently running call. Used only where POSIX signal delivery to
	// the child is not available.
	KindInterrupt Kind = 0x14
	// KindResult is a worker→host successful call result.
	KindResult Kind = 0x50
	// KindFailure is a worker→host call failure (the callable raised).
	KindFailure Kind = 0x51
	// KindSerializationFailure is synthesized on the receive side when a
	// frame body could not be decoded; it is never written to the wire.
	KindSerializationFailure Kind = 0x64
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindCallNoReply:
		return "call-no-reply"
	case KindInterrupt:
		return "interrupt"
	case KindResult:
		return "result"
	case KindFailure:
		return "failure"
	case KindSerializationFailure:
		return "serialization-failure"
	default:
		return fmt.Sprintf("kind(%#02x)", uint8(k))
	}
}

// Delimiter is the fixed 10-byte resynchronization marker that follows
// every frame body, in either direction.
var Delimiter = [10]byte{0x79, 0x8E, 0x8E, 0xF5, 0x6E, 0x9B, 0x2E, 0x97, 0xD5, 0x7D}

const headerLen = 1 + 8 // kind + id

// CallPayload is the body of a KindCall / KindCallNoReply frame.
type CallPayload struct {
	FuncName string
	Args     []any
	Discard  bool
}

// InterruptPayload is the (empty) body of a KindInterrupt frame.
type InterruptPayload struct{}

// ResultPayload is the body of a KindResult frame.
type ResultPayload struct {
	Value any
}

// FailurePayload is the body of a KindFailure frame. Message is the
// string form of whatever the callable raised or, for synthesized
// serialization failures, a description of what went wrong.
type FailurePayload struct {
	Message string
}

func init() {
	gob.Register(CallPayload{})
	gob.Register(InterruptPayload{})
	gob.Register(ResultPayload{})
	gob.Register(FailurePayload{})
}

// Register records a concrete type with the gob wire format so values of
// that type can flow through call arguments and results. Both the
// manager and worker processes must register the same types.
func Register(value any) {
	gob.Register(value)
}

// ErrClosed is returned by ReadFrame when the stream ended cleanly at a
// frame boundary (kind byte read hits EOF).
var ErrClosed = errors.New("wire: connection closed")

// ErrProtocol reports a malformed frame that the delimiter resync
// cannot recover from cleanly (e.g. a short read of the id field).
var ErrProtocol = errors.New("wire: protocol error")

// Conn pairs a frame reader and writer bound to the same byte stream.
// Writes are serialized by an internal lock so concurrent senders never
// interleave a header, body, and delimiter. Reads are not synchronized;
// the protocol design calls for exactly one reader goroutine per Conn.
type Conn struct {
	r   io.Reader
	enc *gob.Encoder
	dec *gob.Decoder

	writeMu sync.Mutex
	encBuf  *bytes.Buffer
	bw      *bufio.Writer
	w       io.Writer

	// decBuf holds exactly one frame's raw body bytes at a time. dec is
	// bound to it for the life of the Conn (not recreated per frame) so
	// gob's type-descriptor cache stays in sync with the peer's encoder
	// across frames, the same reason encBuf/enc are long-lived on the
	// write side.
	decBuf *bytes.Buffer
}

// NewConn wraps r/w with a write-side buffer of the given size (<= 0
// selects a 64KiB default, matching the coalescing buffer the source
// system uses for its many small serialized writes).
func NewConn(r io.Reader, w io.Writer, writeBufferSize int) *Conn {
	if writeBufferSize <= 0 {
		writeBufferSize = 64 * 1024
	}
	encBuf := new(bytes.Buffer)
	decBuf := new(bytes.Buffer)
	return &Conn{
		r:      r,
		w:      w,
		bw:     bufio.NewWriterSize(w, writeBufferSize),
		encBuf: encBuf,
		enc:    gob.NewEncoder(encBuf),
		decBuf: decBuf,
		dec:    gob.NewDecoder(decBuf),
	}
}

// WriteFrame writes one frame: header, gob-encoded body, delimiter, then
// flushes. The internal lock guarantees no interleaving with a
// concurrent WriteFrame call on the same Conn. The frame is assembled
// in a scratch buffer first and copied to the stream only once fully
// built, so a body that fails to encode (for example, a value of a
// type the caller never registered) never leaves a half-written frame
// on the wire for the peer to choke on.
func (c *Conn) WriteFrame(kind Kind, id uint64, body any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.encBuf.Reset()
	var header [headerLen]byte
	header[0] = byte(kind)
	binary.LittleEndian.PutUint64(header[1:], id)
	c.encBuf.Write(header[:])

	if err := c.enc.Encode(&body); err != nil {
		return fmt.Errorf("wire: encode body: %w", err)
	}
	c.encBuf.Write(Delimiter[:])

	if _, err := c.bw.Write(c.encBuf.Bytes()); err != nil {
		return fmt.Errorf("wire: write frame: %w", err)
	}
	if err := c.bw.Flush(); err != nil {
		return fmt.Errorf("wire: flush: %w", err)
	}
	return nil
}

// ReadFrame reads exactly one frame and reports its kind, id, and
// decoded body. On decode failure the returned kind is
// KindSerializationFailure and body is a FailurePayload describing the
// decode error; the stream has already been
// resynchronized to the next frame boundary regardless, since the raw
// body bytes are always fully consumed up to the delimiter before gob
// ever sees them.
func (c *Conn) ReadFrame() (kind Kind, id uint64, body any, err error) {
	var kindByte [1]byte
	if _, err = io.ReadFull(c.r, kindByte[:]); err != nil {
		if err == io.EOF {
			return 0, 0, nil, ErrClosed
		}
		return 0, 0, nil, fmt.Errorf("wire: read kind: %w", err)
	}
	kind = Kind(kindByte[0])

	var idBytes [8]byte
	if _, err = io.ReadFull(c.r, idBytes[:]); err != nil {
		// A short read here is fatal: kind was already consumed, so the
		// stream cannot be meaningfully resynchronized at this point.
		return 0, 0, nil, fmt.Errorf("%w: short id read: %v", ErrProtocol, err)
	}
	id = binary.LittleEndian.Uint64(idBytes[:])

	raw, rerr := readUntilDelimiter(c.r)
	if rerr != nil {
		return 0, 0, nil, fmt.Errorf("%w: read body: %v", ErrProtocol, rerr)
	}

	c.decBuf.Reset()
	c.decBuf.Write(raw)
	var decoded any
	if decErr := c.dec.Decode(&decoded); decErr != nil {
		return KindSerializationFailure, id, FailurePayload{
			Message: fmt.Sprintf("wire: deserialize body: %v", decErr),
		}, nil
	}
	return kind, id, decoded, nil
}

// readUntilDelimiter consumes bytes from r one at a time, returning
// everything read before the first occurrence of the 10-byte Delimiter
// sequence (the delimiter itself is consumed but not included in the
// result). This runs at the raw byte level, before gob ever touches the
// data, precisely so a body that decodes as garbage still only ever
// consumes the bytes belonging to its own frame: gob's decoder reads a
// length it trusts from the body itself, and a corrupt body can claim
// any length it likes, so letting gob read directly from a live stream
// risks blocking on bytes that will never arrive or devouring the next
// frame outright.
func readUntilDelimiter(r io.Reader) ([]byte, error) {
	var body []byte
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		body = append(body, b[0])
		if len(body) >= len(Delimiter) && bytes.Equal(body[len(body)-len(Delimiter):], Delimiter[:]) {
			return body[:len(body)-len(Delimiter)], nil
		}
	}
}
