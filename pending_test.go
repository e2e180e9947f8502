// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxrt

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPendingMap_InsertDeliver(t *testing.T) {
	t.Parallel()

	p := newPendingMap()
	f := newFuture()
	p.insert(1, f, "test.fn")

	if !p.deliver(1, result{value: "ok"}) {
		t.Fatal("deliver reported no pending future for a known id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := f.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "ok" {
		t.Fatalf("v = %v, want ok", v)
	}
}

func TestPendingMap_DeliverUnknownIDReportsFalse(t *testing.T) {
	t.Parallel()

	p := newPendingMap()
	if p.deliver(42, result{value: "x"}) {
		t.Fatal("deliver reported success for an id that was never inserted")
	}
}

func TestPendingMap_DeliverIsOneShot(t *testing.T) {
	t.Parallel()

	p := newPendingMap()
	f := newFuture()
	p.insert(1, f, "test.fn")
	p.deliver(1, result{value: 1})

	if p.deliver(1, result{value: 2}) {
		t.Fatal("deliver succeeded twice for the same id")
	}
}

func TestPendingMap_Drain(t *testing.T) {
	t.Parallel()

	p := newPendingMap()
	f1, f2 := newFuture(), newFuture()
	p.insert(1, f1, "test.fn1")
	p.insert(2, f2, "test.fn2")

	sentinel := errors.New("drained")
	p.drain(sentinel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, f := range []*Future{f1, f2} {
		if _, err := f.Get(ctx); !errors.Is(err, sentinel) {
			t.Fatalf("Get err = %v, want %v", err, sentinel)
		}
	}
}

func TestPendingMap_RemoveWithoutDeliver(t *testing.T) {
	t.Parallel()

	p := newPendingMap()
	f := newFuture()
	p.insert(1, f, "test.fn")
	p.remove(1)

	if p.deliver(1, result{value: "late"}) {
		t.Fatal("deliver succeeded for an id removed before the reply arrived")
	}
}
