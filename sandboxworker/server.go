// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxworker

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"

	"github.com/rs/zerolog"

	"code.hybscloud.com/sandboxrt/internal/tcpopts"
	"code.hybscloud.com/sandboxrt/internal/wire"
)

// ServeOptions configures Serve.
type ServeOptions struct {
	// Logger receives structured events for the dispatch loop. Defaults
	// to a no-op logger.
	Logger zerolog.Logger

	// WriteBufferSize sizes the buffered frame writer. Zero selects
	// wire.NewConn's own default.
	WriteBufferSize int
}

// ServeOption configures ServeOptions.
type ServeOption func(*ServeOptions)

// WithLogger attaches a structured logger to the dispatch loop.
func WithLogger(l zerolog.Logger) ServeOption {
	return func(o *ServeOptions) { o.Logger = l }
}

// WithWriteBufferSize sizes the frame writer's buffer.
func WithWriteBufferSize(n int) ServeOption {
	return func(o *ServeOptions) { o.WriteBufferSize = n }
}

// Serve implements the worker process main loop: pick a listening port,
// print it as the handshake line, accept exactly one connection, and
// dispatch frames against r until the connection closes or
// core.terminate is invoked. It returns nil on an orderly core.terminate
// shutdown or when the manager closes the connection at a frame
// boundary, and a non-nil error for any other exit path.
func Serve(r *Registry, opts ...ServeOption) error {
	o := ServeOptions{Logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	ln, err := listen()
	if err != nil {
		return fmt.Errorf("sandboxworker: listen: %w", err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	if _, err := fmt.Fprintf(os.Stdout, "%d\n", port); err != nil {
		return fmt.Errorf("sandboxworker: write handshake line: %w", err)
	}

	conn, err := ln.Accept()
	if err != nil {
		return fmt.Errorf("sandboxworker: accept: %w", err)
	}
	defer conn.Close()
	if err := tcpopts.SetLowLatency(conn); err != nil {
		o.Logger.Debug().Err(err).Msg("sandboxworker: low-latency tcp options not applied")
	}

	s := NewConnServer(r, conn, o)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			s.cancelLatest()
		}
	}()

	return s.Run()
}

func listen() (*net.TCPListener, error) {
	hint := 9000 + os.Getpid()%1000
	if ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: hint}); err == nil {
		return ln, nil
	}
	return net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
}

// ConnServer runs the dispatch loop described in Serve against an
// already-established connection. It is exported separately from Serve
// so tests, and embedders that already own a net.Conn (for example one
// obtained over vsock rather than TCP), can drive it directly.
type ConnServer struct {
	registry *Registry
	netConn  net.Conn
	conn     *wire.Conn
	logger   zerolog.Logger

	latestMu sync.Mutex
	latest   context.CancelFunc

	done       chan struct{}
	terminated bool
}

// NewConnServer builds a ConnServer bound to conn and registers
// core.terminate against r. r must not already have a conflicting
// core.terminate registration from a prior ConnServer sharing the
// Registry.
func NewConnServer(r *Registry, conn net.Conn, o ServeOptions) *ConnServer {
	s := &ConnServer{
		registry: r,
		netConn:  conn,
		conn:     wire.NewConn(bufio.NewReader(conn), conn, o.WriteBufferSize),
		logger:   o.Logger,
		done:     make(chan struct{}),
	}
	r.Register("core.terminate", s.handleTerminate)
	return s
}

func (s *ConnServer) setLatest(cancel context.CancelFunc) {
	s.latestMu.Lock()
	s.latest = cancel
	s.latestMu.Unlock()
}

func (s *ConnServer) cancelLatest() {
	s.latestMu.Lock()
	cancel := s.latest
	s.latestMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *ConnServer) handleTerminate(ctx context.Context, args []any) (any, error) {
	s.latestMu.Lock()
	s.terminated = true
	s.latestMu.Unlock()
	close(s.done)
	// Unblock the dispatch loop's in-flight ReadFrame; it has nothing
	// further to read once the manager has asked us to terminate.
	_ = s.netConn.Close()
	return nil, nil
}

// Run reads and dispatches frames until the connection closes or
// core.terminate is invoked. It returns nil on an orderly shutdown.
func (s *ConnServer) Run() error {
	for {
		select {
		case <-s.done:
			return nil
		default:
		}

		kind, id, body, err := s.conn.ReadFrame()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if err == wire.ErrClosed {
				return nil
			}
			return fmt.Errorf("sandboxworker: read frame: %w", err)
		}

		switch kind {
		case wire.KindCall:
			payload, _ := body.(wire.CallPayload)
			go s.dispatch(id, payload, true)
		case wire.KindCallNoReply:
			payload, _ := body.(wire.CallPayload)
			go s.dispatch(id, payload, false)
		case wire.KindInterrupt:
			s.cancelLatest()
		case wire.KindSerializationFailure:
			payload, _ := body.(wire.FailurePayload)
			s.logger.Debug().Str("detail", payload.Message).Msg("sandboxworker: call body failed to deserialize")
			if id != 0 {
				_ = s.conn.WriteFrame(wire.KindFailure, id, wire.FailurePayload{Message: payload.Message})
			}
		default:
			s.logger.Debug().Str("kind", kind.String()).Msg("sandboxworker: unexpected frame kind from manager")
		}

		select {
		case <-s.done:
			return nil
		default:
		}
	}
}

// dispatch runs one call's Func, tracking it as the latest interrupt
// target, and writes the reply frame when one is expected.
func (s *ConnServer) dispatch(id uint64, payload wire.CallPayload, reply bool) {
	ctx, cancel := context.WithCancel(context.Background())
	s.setLatest(cancel)
	defer cancel()

	fn, ok := s.registry.lookup(payload.FuncName)
	if !ok {
		if reply {
			_ = s.conn.WriteFrame(wire.KindFailure, id, wire.FailurePayload{
				Message: (&ErrUnknownFunc{Name: payload.FuncName}).Error(),
			})
		}
		return
	}

	value, err := fn(ctx, payload.Args)
	if !reply {
		return
	}
	if err != nil {
		_ = s.conn.WriteFrame(wire.KindFailure, id, wire.FailurePayload{Message: err.Error()})
		return
	}
	if payload.Discard {
		value = nil
	}
	_ = s.conn.WriteFrame(wire.KindResult, id, wire.ResultPayload{Value: value})
}
