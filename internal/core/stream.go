// Stream is a bounded SPSC ring buffer of item pointers with a cooperative
// blocking protocol on empty/full, adapted from a cache-line-isolated,
// sequence-counted ring buffer: separate head/tail cursors on isolated
// cache lines, a per-slot sequence number standing in for a lock, and
// power-of-2 sizing for masking instead of modulo. The original's fixed
// 24-byte payload slot is generalized to one interface{} per slot, since a
// stream here carries arbitrary item pointers rather than a fixed wire
// format.
package core

import (
	"sync"
	"sync/atomic"
)

type slot struct {
	val any
	seq uint64
}

// Stream is the bounded FIFO backing one producer-consumer pair. Capacity
// is fixed at creation and never resized.
type Stream struct {
	uid uint64

	_    [64]byte
	head uint64

	_    [56]byte
	tail uint64

	mask uint64
	step uint64
	buf  []slot

	mu          sync.Mutex
	consWaiting *Task // installed by Read/poll-any-in, cleared and woken by Write
	prodWaiting *Task // installed by Write, cleared and woken by Read

	prodSD *Descriptor
	consSD *Descriptor
}

// NewStream allocates a stream with the requested logical capacity,
// rejecting zero (spec boundary: "zero-capacity streams are rejected at
// creation"). The backing ring is sized to the next power of two at or
// above capacity; the ring's sequence protocol supports holding exactly
// that many items before a producer blocks, so rounding up only grows the
// point at which backpressure kicks in, it never shrinks it below what the
// caller asked for.
func NewStream(uid uint64, capacity int) (*Stream, error) {
	if capacity <= 0 {
		return nil, ErrInval("stream capacity must be > 0")
	}
	size := nextPow2(capacity)
	s := &Stream{
		uid:  uid,
		mask: uint64(size - 1),
		step: uint64(size),
		buf:  make([]slot, size),
	}
	for i := range s.buf {
		s.buf[i].seq = uint64(i)
	}
	return s, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// push is the fast-path, lock-free enqueue; false means the ring is full.
func (s *Stream) push(val any) bool {
	t := s.tail
	if t-atomic.LoadUint64(&s.head) >= s.step {
		return false
	}
	sl := &s.buf[t&s.mask]
	if atomic.LoadUint64(&sl.seq) != t {
		return false
	}
	sl.val = val
	atomic.StoreUint64(&sl.seq, t+1)
	s.tail = t + 1
	return true
}

// pop is the fast-path, lock-free dequeue; ok is false if the ring is empty.
func (s *Stream) pop() (any, bool) {
	h := s.head
	sl := &s.buf[h&s.mask]
	if atomic.LoadUint64(&sl.seq) != h+1 {
		return nil, false
	}
	val := sl.val
	sl.val = nil
	atomic.StoreUint64(&sl.seq, h+s.step)
	atomic.StoreUint64(&s.head, h+1)
	return val, true
}

// Write implements the producer side of the spec's blocking protocol:
// push val, waking any waiting consumer; if the ring is full, register in
// the wait slot, block until a reader frees a slot, then retry the push
// that triggered the block — symmetric to Read's retry after an empty-ring
// block. It returns true once val has actually been enqueued.
func (s *Stream) Write(sd *Descriptor, val any) bool {
	p := sd.owner
	if s.push(val) {
		s.wakeConsumer(sd, p.owner)
		return true
	}

	p.pollToken.Store(0)
	s.mu.Lock()
	s.prodWaiting = p
	s.mu.Unlock()
	if sd.mon != nil {
		sd.mon.BlockOn()
	}
	p.Block(BlockedOnOutput)

	if !s.push(val) {
		panic("lpel: producer woke from a full-ring block but the ring is still full")
	}
	s.wakeConsumer(sd, p.owner)
	return true
}

// Read implements the consumer side, symmetric to Write.
func (s *Stream) Read(sd *Descriptor) (any, bool) {
	c := sd.owner
	if val, ok := s.pop(); ok {
		s.wakeProducer(sd, c.owner)
		return val, true
	}

	c.pollToken.Store(0)
	s.mu.Lock()
	s.consWaiting = c
	s.mu.Unlock()
	if sd.mon != nil {
		sd.mon.BlockOn()
	}
	c.Block(BlockedOnInput)
	val, ok := s.pop()
	if ok {
		s.wakeProducer(sd, c.owner)
	}
	return val, ok
}

// wakeConsumer records the move through sd and, if a consumer is waiting
// on this stream, delivers it a wakeup.
func (s *Stream) wakeConsumer(sd *Descriptor, from *Worker) {
	if sd.mon != nil {
		sd.mon.Moved()
	}
	s.mu.Lock()
	waiter := s.consWaiting
	s.consWaiting = nil
	s.mu.Unlock()
	if waiter != nil {
		deliverWakeup(waiter, sd, from)
	}
}

// wakeProducer is wakeConsumer's mirror for the producer-waiting slot.
func (s *Stream) wakeProducer(sd *Descriptor, from *Worker) {
	if sd.mon != nil {
		sd.mon.Moved()
	}
	s.mu.Lock()
	waiter := s.prodWaiting
	s.prodWaiting = nil
	s.mu.Unlock()
	if waiter != nil {
		deliverWakeup(waiter, sd, from)
	}
}

// RegisterAnyIn installs c into this stream's consumer-waiting slot for an
// any-in wait, without attempting a read first — the caller has already
// checked that no data is immediately available across the whole set it
// is polling.
func (s *Stream) RegisterAnyIn(c *Task) {
	s.mu.Lock()
	s.consWaiting = c
	s.mu.Unlock()
}

// UnregisterAnyIn removes c from the consumer-waiting slot if it is still
// there (no wakeup fired through this endpoint), used when a task wakes
// via a different endpoint during an any-in wait.
func (s *Stream) UnregisterAnyIn(c *Task) {
	s.mu.Lock()
	if s.consWaiting == c {
		s.consWaiting = nil
	}
	s.mu.Unlock()
}

// TryRead is the non-blocking half of Read, used by PollAnyIn to check
// every endpoint before committing to a wait.
func (s *Stream) TryRead(sd *Descriptor) (any, bool) {
	val, ok := s.pop()
	if !ok {
		return nil, false
	}
	s.wakeProducer(sd, sd.owner.owner)
	return val, true
}

// FillLevel reports the number of items currently buffered: a cheap
// read-only diagnostic, not part of the blocking protocol itself.
func (s *Stream) FillLevel() int {
	return int(atomic.LoadUint64(&s.tail) - atomic.LoadUint64(&s.head))
}

// Consumer and Producer report the descriptor currently bound to each
// endpoint, or nil if that endpoint has never been opened or has closed.
func (s *Stream) Consumer() *Descriptor { return s.consSD }
func (s *Stream) Producer() *Descriptor { return s.prodSD }

// deliverWakeup is the spec's "deliver wakeup" primitive: atomically claim
// the wakeup for w via its poll token, record which of w's own descriptors
// fired (the other endpoint of the stream the waker sd is bound to), mark
// w Ready, and hand it to its owning worker — locally if the caller is
// already that worker, otherwise by mailbox, since a worker's ready queue
// and task fields are never touched by any other worker directly.
func deliverWakeup(w *Task, sd *Descriptor, from *Worker) {
	if !w.pollToken.CompareAndSwap(0, 1) {
		return // a peer already won this wakeup race
	}
	if sd != nil {
		if sd.mode == 'w' {
			w.wakeupSD = sd.stream.consSD
		} else {
			w.wakeupSD = sd.stream.prodSD
		}
	}
	w.setState(StateReady)
	if sd != nil && sd.mon != nil {
		sd.mon.Wakeup()
	}
	if from != nil && w.owner == from {
		from.readyLocal(w)
		return
	}
	w.owner.mailbox.Post(Message{Kind: MsgWakeup, Task: w})
}
