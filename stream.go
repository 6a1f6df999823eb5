package lpel

import (
	"sync/atomic"

	"lpel/internal/core"
)

var nextStreamUID atomic.Uint64

// Stream is an opaque handle to a bounded SPSC FIFO of item pointers.
type Stream struct {
	s *core.Stream
}

// Descriptor is a task's handle to one endpoint of one Stream.
type Descriptor struct {
	sd *core.Descriptor
}

// StreamCreate allocates a stream with the given capacity. capacity<=0 is
// rejected (zero-capacity streams are not permitted).
func StreamCreate(capacity int) (*Stream, error) {
	uid := nextStreamUID.Add(1)
	s, err := core.NewStream(uid, capacity)
	if err != nil {
		return nil, wrap(ErrInval, err.Error())
	}
	return &Stream{s: s}, nil
}

// StreamOpen opens mode ('r' or 'w') on s on behalf of owner.
func StreamOpen(s *Stream, owner *Task, mode byte) *Descriptor {
	return &Descriptor{sd: core.StreamOpen(s.s, owner.t, mode)}
}

// StreamClose closes sd. destroy must be true only from whichever endpoint
// closes last, once the buffer has drained, per the spec's "destroyed
// when both endpoints are closed and the buffer is drained" invariant;
// this package does not enforce that precondition itself (see
// SPEC_FULL.md §7 on programmer errors being fatal-by-assertion, not
// recoverable).
func StreamClose(sd *Descriptor, destroy bool) {
	sd.sd.Close(destroy)
}

// StreamWrite writes val through sd, blocking (by yielding self to its
// worker) if the stream is full. It must be called from within self's own
// body goroutine.
func StreamWrite(sd *Descriptor, val any) {
	sd.sd.Stream().Write(sd.sd, val)
}

// StreamRead reads one value through sd, blocking if the stream is empty.
// It must be called from within the reading task's own body goroutine.
func StreamRead(sd *Descriptor) any {
	val, _ := sd.sd.Stream().Read(sd.sd)
	return val
}

// StreamReplace rebinds sd to newStream in place.
func StreamReplace(sd *Descriptor, newStream *Stream) {
	sd.sd.Replace(newStream.s)
}

// StreamPollAny waits on any of sds for the next available item, returning
// the descriptor that fired and the value read through it. It must be
// called from within the waiting task's own body goroutine.
func StreamPollAny(self *Task, sds []*Descriptor) (*Descriptor, any) {
	coreSDs := make([]*core.Descriptor, len(sds))
	for i, sd := range sds {
		coreSDs[i] = sd.sd
	}
	fired, val := core.PollAnyIn(self.t, coreSDs)
	for _, sd := range sds {
		if sd.sd == fired {
			return sd, val
		}
	}
	return nil, val
}

// FillLevel reports the number of items currently buffered in s.
func (s *Stream) FillLevel() int { return s.s.FillLevel() }
