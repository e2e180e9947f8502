// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command sandboxctl is a small CLI front end exercising the manager
// API end to end: spawn a worker, evaluate an expression on it, print
// the result, and stop the worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"code.hybscloud.com/sandboxrt"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sandboxctl:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		workerBin        string
		execFlags        []string
		env              []string
		handshakeTimeout time.Duration
		module           string
		logLevel         string
	)

	cmd := &cobra.Command{
		Use:   "sandboxctl expr",
		Short: "Spawn a sandboxed worker and evaluate an expression on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("component", "sandboxctl").Logger()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()
			defer sandboxrt.StopAll()

			opts := []sandboxrt.Option{
				sandboxrt.WithHandshakeTimeout(handshakeTimeout),
				sandboxrt.WithLogger(logger),
			}
			if workerBin != "" {
				opts = append(opts, sandboxrt.WithWorkerBin(workerBin))
			}
			if len(execFlags) > 0 {
				opts = append(opts, sandboxrt.WithArgs(execFlags...))
			}
			if len(env) > 0 {
				opts = append(opts, sandboxrt.WithEnv(env...))
			}

			w, err := sandboxrt.SpawnWorker(ctx, opts...)
			if err != nil {
				return fmt.Errorf("spawn worker: %w", err)
			}
			defer w.Stop()

			v, err := w.EvalFetch(ctx, module, args[0])
			if err != nil {
				return fmt.Errorf("evaluate %q: %w", args[0], err)
			}
			fmt.Println(v)
			return nil
		},
	}

	cmd.Flags().StringVar(&workerBin, "worker-bin", "", "path to the sandboxworker executable (default: resolved via PATH)")
	cmd.Flags().StringSliceVar(&execFlags, "exec-flag", nil, "extra flag passed through to the worker process (repeatable)")
	cmd.Flags().StringSliceVar(&env, "env", nil, "environment variable KEY=VALUE passed to the worker process (repeatable)")
	cmd.Flags().DurationVar(&handshakeTimeout, "handshake-timeout", 10*time.Second, "how long to wait for the worker to announce its port")
	cmd.Flags().StringVar(&module, "module", "Main", "module namespace the expression is evaluated in")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	return cmd
}
