// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxworker

import (
	"context"
	"fmt"
	"time"
)

var defaultModuleStore = newModuleStore()
var defaultChannelRegistry = newChannelRegistry()

func registerBuiltins(r *Registry) {
	r.Register("core.identity", func(ctx context.Context, args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("core.identity: expected 1 argument, got %d", len(args))
		}
		return args[0], nil
	})

	r.Register("core.sleep", func(ctx context.Context, args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("core.sleep: expected 1 argument, got %d", len(args))
		}
		d, err := parseDuration(args[0])
		if err != nil {
			return nil, err
		}
		select {
		case <-time.After(d):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	r.Register("core.eval", func(ctx context.Context, args []any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("core.eval: expected 2 arguments, got %d", len(args))
		}
		module, ok1 := args[0].(string)
		expr, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("core.eval: expected (module string, expr string)")
		}
		return defaultModuleStore.eval(module, expr)
	})

	r.Register("core.channel_new", func(ctx context.Context, args []any) (any, error) {
		id, capacity, err := channelArgsIDCapacity(args)
		if err != nil {
			return nil, err
		}
		defaultChannelRegistry.new(id, capacity)
		return nil, nil
	})

	r.Register("core.channel_put", func(ctx context.Context, args []any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("core.channel_put: expected (id, value)")
		}
		id, err := channelID(args[0])
		if err != nil {
			return nil, err
		}
		f, err := defaultChannelRegistry.get(id)
		if err != nil {
			return nil, err
		}
		return nil, f.put(ctx, args[1])
	})

	r.Register("core.channel_take", func(ctx context.Context, args []any) (any, error) {
		id, err := channelIDFromSingle(args)
		if err != nil {
			return nil, err
		}
		f, err := defaultChannelRegistry.get(id)
		if err != nil {
			return nil, err
		}
		return f.take(ctx)
	})

	r.Register("core.channel_ready", func(ctx context.Context, args []any) (any, error) {
		id, err := channelIDFromSingle(args)
		if err != nil {
			return nil, err
		}
		f, err := defaultChannelRegistry.get(id)
		if err != nil {
			return nil, err
		}
		return f.ready(), nil
	})

	r.Register("core.channel_wait", func(ctx context.Context, args []any) (any, error) {
		id, err := channelIDFromSingle(args)
		if err != nil {
			return nil, err
		}
		f, err := defaultChannelRegistry.get(id)
		if err != nil {
			return nil, err
		}
		return nil, f.wait(ctx)
	})

	r.Register("core.channel_close", func(ctx context.Context, args []any) (any, error) {
		id, err := channelIDFromSingle(args)
		if err != nil {
			return nil, err
		}
		defaultChannelRegistry.evict(id)
		return nil, nil
	})
}

func parseDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case string:
		return time.ParseDuration(d)
	case time.Duration:
		return d, nil
	default:
		return 0, fmt.Errorf("core.sleep: expected a duration string, got %T", v)
	}
}

func channelID(v any) (uint64, error) {
	switch id := v.(type) {
	case uint64:
		return id, nil
	case int:
		return uint64(id), nil
	case int64:
		return uint64(id), nil
	default:
		return 0, fmt.Errorf("sandboxworker: expected a channel id, got %T", v)
	}
}

func channelIDFromSingle(args []any) (uint64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("sandboxworker: expected (id), got %d arguments", len(args))
	}
	return channelID(args[0])
}

func channelArgsIDCapacity(args []any) (id uint64, capacity int, err error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("core.channel_new: expected (id, capacity)")
	}
	id, err = channelID(args[0])
	if err != nil {
		return 0, 0, err
	}
	switch c := args[1].(type) {
	case int:
		capacity = c
	case int64:
		capacity = int(c)
	default:
		return 0, 0, fmt.Errorf("core.channel_new: expected int capacity, got %T", args[1])
	}
	return id, capacity, nil
}
