// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rlog provides the structured logger shared by the manager and
// worker sides of the runtime. It is a thin wrapper over zerolog so
// callers pass a destination, level and component name once, rather
// than reaching for a global logger.
package rlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w (os.Stderr if w is nil) at the given
// level, with a component field attached.
func New(w io.Writer, level zerolog.Level, component string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("component", component).Logger()
}

// Nop returns a logger that discards everything, used as the default
// when a caller does not configure logging.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
