// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sandboxrt is a sandboxed multiprocessing runtime: a manager
// spawns isolated worker child processes, evaluates registered
// functions on them over a binary message channel, and can terminate,
// kill, or interrupt them independently.
//
// A minimal manager-side session looks like:
//
//	w, err := sandboxrt.SpawnWorker(ctx)
//	if err != nil { ... }
//	defer w.Stop()
//
//	v, err := w.Fetch(ctx, "core.identity", 42)
//
// The worker side of the protocol lives in the sandboxworker
// subpackage; cmd/sandboxworker is a ready-to-spawn worker binary that
// registers the built-in functions plus nothing else, and cmd/sandboxctl
// is a small CLI front end exercising the manager API end to end.
package sandboxrt
