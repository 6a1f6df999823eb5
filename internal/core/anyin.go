package core

// PollAnyIn implements the "wait on any of a set of read endpoints"
// operation. It first tries every descriptor without blocking; if one
// already has data, that one wins immediately with no registration at
// all. Otherwise the calling task registers itself in every endpoint's
// consumer-waiting slot, yields, and on resume inspects WakeupDescriptor
// to learn which endpoint fired, unregistering itself from the rest.
//
// PollAnyIn must be called from within the task's own body goroutine.
func PollAnyIn(self *Task, sds []*Descriptor) (*Descriptor, any) {
	for _, sd := range sds {
		if val, ok := sd.TryReadFast(); ok {
			return sd, val
		}
	}

	self.pollToken.Store(0)
	for _, sd := range sds {
		sd.stream.RegisterAnyIn(self)
	}

	self.Block(BlockedOnAnyIn)

	fired := self.wakeupSD
	for _, sd := range sds {
		if sd != fired {
			sd.stream.UnregisterAnyIn(self)
		}
	}

	if fired == nil {
		// Spurious resume without a recorded wakeup is a programmer
		// error per the spec's "no recovery of a faulted task" stance;
		// there is nothing safe to return.
		panic("lpel: task resumed from any-in wait with no wakeup descriptor")
	}
	val, _ := fired.TryReadFast()
	return fired, val
}

// TryReadFast is Stream.TryRead on sd's current stream, exposed for
// PollAnyIn's initial sweep: it reads one item if available and, like
// Read's fast path, wakes a blocked producer.
func (sd *Descriptor) TryReadFast() (any, bool) {
	return sd.stream.TryRead(sd)
}
