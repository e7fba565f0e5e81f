package ffihmpc

import "sync"

// Handle is an opaque, process-local reference to a Go value kept
// alive on behalf of foreign code. It is an index into a table, not a
// pointer — idiomatic Go never exports a real pointer to a value the
// garbage collector still owns.
type Handle int64

// invalidHandle is never issued by put; a caller receiving it knows
// construction failed.
const invalidHandle Handle = 0

type handleTable struct {
	mu      sync.Mutex
	next    int64
	entries map[int64]interface{}
}

func newHandleTable() *handleTable {
	return &handleTable{entries: make(map[int64]interface{})}
}

func (t *handleTable) put(v interface{}) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	id := t.next
	t.entries[id] = v
	return Handle(id)
}

func (t *handleTable) get(h Handle) (interface{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[int64(h)]
	return v, ok
}

func (t *handleTable) remove(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, int64(h))
}

var (
	configHandles = newHandleTable()
	queueHandles  = newHandleTable()
)
