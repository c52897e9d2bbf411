package win32

import (
	"sync"
	"testing"
	"time"
)

func TestOpQueuePushNeverBlocksWithoutDrainer(t *testing.T) {
	var q opQueue
	done := make(chan struct{})
	go func() {
		for i := range 64 {
			q.push(loopOp{id: int32(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("push blocked with no drainer running")
	}
}

func TestOpQueueDrainReturnsOpsInSubmissionOrder(t *testing.T) {
	var q opQueue
	q.push(loopOp{id: 1})
	q.push(loopOp{id: 2, unregister: true})
	q.push(loopOp{id: 3, modifiers: 0x0003, vk: 0x48})

	ops := q.drain()
	if len(ops) != 3 {
		t.Fatalf("drain returned %d ops, want 3", len(ops))
	}
	for i, want := range []int32{1, 2, 3} {
		if ops[i].id != want {
			t.Errorf("ops[%d].id = %d, want %d", i, ops[i].id, want)
		}
	}
	if !ops[1].unregister {
		t.Error("ops[1].unregister = false, want true")
	}

	if again := q.drain(); len(again) != 0 {
		t.Fatalf("second drain returned %d ops, want 0", len(again))
	}
}

// The loop thread sits in its message wait and only drains after a submitter
// posts the wake. The first registration must therefore complete without any
// drain running concurrently with the push.
func TestOpQueueFirstSubmissionCompletes(t *testing.T) {
	var q opQueue
	wake := make(chan struct{}, 1)

	// Models the loop thread: idle until woken, then drain and answer.
	go func() {
		<-wake
		for _, op := range q.drain() {
			op.result <- nil
		}
	}()

	op := loopOp{id: 0x4000, modifiers: 0x0003, vk: 0x48, result: make(chan error, 1)}
	q.push(op)
	wake <- struct{}{}

	select {
	case err := <-op.result:
		if err != nil {
			t.Fatalf("first submission error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first submission never completed; op was not visible to the woken drain")
	}
}

func TestOpQueueConcurrentPushesAllArrive(t *testing.T) {
	var q opQueue
	var wg sync.WaitGroup
	for i := range 50 {
		id := int32(i)
		wg.Go(func() { q.push(loopOp{id: id}) })
	}
	wg.Wait()

	seen := map[int32]bool{}
	for _, op := range q.drain() {
		seen[op.id] = true
	}
	if len(seen) != 50 {
		t.Fatalf("drained %d distinct ops, want 50", len(seen))
	}
}
