// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxrt

import (
	"time"

	"github.com/rs/zerolog"

	"code.hybscloud.com/sandboxrt/internal/rlog"
)

// Options configures SpawnWorker. Construct with functional Option
// values rather than populating the struct directly, so future fields
// can default safely.
type Options struct {
	// WorkerBin is the path to the worker executable to spawn. Defaults
	// to "sandboxworker", resolved via PATH.
	WorkerBin string

	// Args are extra command-line arguments appended after WorkerBin.
	Args []string

	// Env, if non-nil, replaces the spawned process's environment
	// entirely. Nil inherits the manager's own environment.
	Env []string

	// Dir sets the spawned process's working directory. Empty inherits
	// the manager's.
	Dir string

	// HandshakeTimeout bounds how long SpawnWorker waits for the worker
	// to print its listening port and for the subsequent dial to
	// succeed, before giving up and killing the half-started process.
	HandshakeTimeout time.Duration

	// WriteBufferSize sizes the manager side's buffered frame writer.
	// Zero selects wire.NewConn's own default.
	WriteBufferSize int

	// GracePeriod bounds how long Stop waits for a cooperative exit
	// (terminate call acknowledged, process exits) before escalating to
	// Kill.
	GracePeriod time.Duration

	// Logger receives structured events for this worker's lifecycle and
	// calls. Defaults to a no-op logger.
	Logger zerolog.Logger

	// Stderr, if non-nil, receives the worker process's standard error
	// stream as it arrives.
	Stderr func([]byte)
}

func defaultOptions() Options {
	return Options{
		WorkerBin:        "sandboxworker",
		HandshakeTimeout: 10 * time.Second,
		GracePeriod:      5 * time.Second,
		Logger:           rlog.Nop(),
	}
}

// Option configures a Worker at spawn time.
type Option func(*Options)

// WithWorkerBin sets the worker executable path.
func WithWorkerBin(path string) Option {
	return func(o *Options) { o.WorkerBin = path }
}

// WithArgs appends extra arguments to the worker command line.
func WithArgs(args ...string) Option {
	return func(o *Options) { o.Args = append(o.Args, args...) }
}

// WithEnv replaces the spawned process's environment.
func WithEnv(env ...string) Option {
	return func(o *Options) { o.Env = env }
}

// WithDir sets the spawned process's working directory.
func WithDir(dir string) Option {
	return func(o *Options) { o.Dir = dir }
}

// WithHandshakeTimeout bounds the spawn-and-connect phase.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *Options) { o.HandshakeTimeout = d }
}

// WithWriteBufferSize sizes the frame writer's buffer.
func WithWriteBufferSize(n int) Option {
	return func(o *Options) { o.WriteBufferSize = n }
}

// WithGracePeriod bounds how long Stop waits before escalating to Kill.
func WithGracePeriod(d time.Duration) Option {
	return func(o *Options) { o.GracePeriod = d }
}

// WithLogger attaches a structured logger to the worker's lifecycle.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithStderrSink routes the worker process's stderr to fn as it arrives.
func WithStderrSink(fn func([]byte)) Option {
	return func(o *Options) { o.Stderr = fn }
}
