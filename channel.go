// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxrt

import (
	"context"
	"fmt"
)

// RemoteChannel is a FIFO hosted on a worker process, addressed by a
// registry id drawn from the same id namespace as RPC correlation ids.
// Operations are ordinary RPC calls that re-enter the worker to act on
// the stored queue; the channel itself holds no buffering of its own.
type RemoteChannel struct {
	worker *Worker
	id     uint64
}

// NewRemoteChannel creates a bounded FIFO on the worker with the given
// capacity and returns a handle to it. Capacity 0 means unbounded.
func NewRemoteChannel(ctx context.Context, w *Worker, capacity int) (*RemoteChannel, error) {
	id := w.allocID()
	if err := w.Wait(ctx, "core.channel_new", id, capacity); err != nil {
		return nil, err
	}
	return &RemoteChannel{worker: w, id: id}, nil
}

// Put blocks until v has been enqueued.
func (c *RemoteChannel) Put(ctx context.Context, v any) error {
	return c.worker.Wait(ctx, "core.channel_put", c.id, v)
}

// Take blocks until a value is available and returns it.
func (c *RemoteChannel) Take(ctx context.Context) (any, error) {
	return c.worker.Fetch(ctx, "core.channel_take", c.id)
}

// Ready reports whether a Take would return immediately.
func (c *RemoteChannel) Ready(ctx context.Context) (bool, error) {
	v, err := c.worker.Fetch(ctx, "core.channel_ready", c.id)
	if err != nil {
		return false, err
	}
	ready, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("sandboxrt: channel_ready returned non-bool %T", v)
	}
	return ready, nil
}

// Wait blocks until a value is available (equivalent to Ready becoming
// true) or the channel is closed, without consuming a value.
func (c *RemoteChannel) Wait(ctx context.Context) error {
	return c.worker.Wait(ctx, "core.channel_wait", c.id)
}

// Close evicts the worker-side registry entry for this channel. Unlike
// the behavior the source system leaves resident indefinitely, this
// module always evicts deterministically on Close (see DESIGN.md).
func (c *RemoteChannel) Close(ctx context.Context) error {
	return c.worker.Wait(ctx, "core.channel_close", c.id)
}
