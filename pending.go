// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sandboxrt

import "sync"

// pendingEntry pairs a Future with the name of the call it is waiting
// on, so a failure reply can be attributed to the function that caused
// it without the receive loop having to thread that context separately.
type pendingEntry struct {
	future   *Future
	funcName string
}

// pendingMap tracks in-flight calls awaiting a reply, keyed by
// correlation id. One goroutine (the receive loop) delivers into it;
// any number of caller goroutines insert and, when their frame could
// not be written, remove.
type pendingMap struct {
	mu      sync.Mutex
	entries map[uint64]*pendingEntry
}

func newPendingMap() *pendingMap {
	return &pendingMap{entries: make(map[uint64]*pendingEntry)}
}

// insert registers f under id, remembering funcName for attribution in
// a later failure reply. Callers must not reuse an id that is still
// pending.
func (p *pendingMap) insert(id uint64, f *Future, funcName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[id] = &pendingEntry{future: f, funcName: funcName}
}

// funcName reports the name the call registered under id was made
// against, if id is still pending.
func (p *pendingMap) funcName(id uint64) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[id]
	if !ok {
		return "", false
	}
	return e.funcName, true
}

// deliver resolves and removes the future registered under id, if any.
// It reports whether a pending future was found, since a reply for an
// unknown or already-abandoned id is logged rather than treated as
// fatal.
func (p *pendingMap) deliver(id uint64, r result) bool {
	p.mu.Lock()
	e, ok := p.entries[id]
	if ok {
		delete(p.entries, id)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	e.future.deliver(r)
	return true
}

// remove drops id without resolving it, used when the call's frame could
// not be written. A caller whose context ends before the reply arrives
// does not remove its entry; the entry stays until the reply is
// delivered or the map is drained.
func (p *pendingMap) remove(id uint64) {
	p.mu.Lock()
	delete(p.entries, id)
	p.mu.Unlock()
}

// drain resolves every still-pending future with err, called once when
// the worker's connection dies or Stop completes.
func (p *pendingMap) drain(err error) {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[uint64]*pendingEntry)
	p.mu.Unlock()
	for _, e := range entries {
		e.future.deliver(result{err: err})
	}
}
