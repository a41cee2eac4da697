package push

import (
	"sync"

	"github.com/eapache/queue"
)

// Outbox is an unbounded FIFO of encoded frames for one connection. Enqueue never blocks and fails
// only once the outbox is closed.
type Outbox struct {
	mu     sync.Mutex
	items  *queue.Queue
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

func NewOutbox() *Outbox {
	return &Outbox{
		items: queue.New(),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Enqueue appends payload and reports whether the outbox accepted it.
func (o *Outbox) Enqueue(payload []byte) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.items.Add(payload)
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
	return true
}

// Close rejects further enqueues and discards anything still pending. Safe to call more than once.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	for o.items.Length() > 0 {
		o.items.Remove()
	}
	close(o.done)
}

func (o *Outbox) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.items.Length()
}

// pop removes the oldest frame. It returns false when the outbox is empty or closed.
func (o *Outbox) pop() ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || o.items.Length() == 0 {
		return nil, false
	}
	return o.items.Remove().([]byte), true
}

// readyCh receives a value after at least one Enqueue since the last receive.
func (o *Outbox) readyCh() <-chan struct{} { return o.ready }

func (o *Outbox) doneCh() <-chan struct{} { return o.done }
