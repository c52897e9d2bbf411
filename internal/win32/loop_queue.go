package win32

import "sync"

// loopOp is a hotkey register/unregister request executed on the loop thread.
// RegisterHotKey with a null HWND binds the hotkey to the registering thread,
// so every OS call must run on the same locked thread that pumps messages.
type loopOp struct {
	unregister bool
	id         int32
	modifiers  uint32
	vk         uint32
	result     chan error
}

// opQueue is the handshake between submitters and the loop thread. push must
// never block: the loop thread only drains after the submitter posts its wake
// message, which comes after push returns. A blocking hand-off here would
// leave the submitter stuck before the wake is ever posted.
type opQueue struct {
	mu    sync.Mutex
	items []loopOp
}

// push appends op. Lock-only, never blocks on a consumer.
func (q *opQueue) push(op loopOp) {
	q.mu.Lock()
	q.items = append(q.items, op)
	q.mu.Unlock()
}

// drain removes and returns every queued op in submission order.
func (q *opQueue) drain() []loopOp {
	q.mu.Lock()
	out := q.items
	q.items = nil
	q.mu.Unlock()
	return out
}
