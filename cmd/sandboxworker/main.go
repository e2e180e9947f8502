// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command sandboxworker is the worker-side entry point of the sandboxed
// multiprocessing runtime. It registers the built-in functions and
// serves exactly one manager connection for its entire lifetime.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"code.hybscloud.com/sandboxrt/sandboxworker"
)

func main() {
	level := zerolog.WarnLevel
	if lvl, err := zerolog.ParseLevel(os.Getenv("SANDBOXRT_LOG_LEVEL")); err == nil {
		level = lvl
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("component", "sandboxworker").Logger()

	registry := sandboxworker.NewRegistry()
	if err := sandboxworker.Serve(registry, sandboxworker.WithLogger(logger)); err != nil {
		fmt.Fprintln(os.Stderr, "sandboxworker:", err)
		os.Exit(1)
	}
}
