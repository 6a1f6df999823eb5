package core

import "lpel/monitor"

// Descriptor is a task's handle to one endpoint of one stream. A stream
// has at most one read descriptor and at most one write descriptor open
// on it at a time.
type Descriptor struct {
	stream *Stream
	mode   byte // 'r' or 'w'
	owner  *Task
	mon    *monitor.StreamEvent
}

// StreamOpen opens mode ('r' or 'w') on s on behalf of owner, registering
// the descriptor as the stream's consumer or producer endpoint. The
// descriptor gets a monitor stream event only if owner is monitored.
func StreamOpen(s *Stream, owner *Task, mode byte) *Descriptor {
	sd := &Descriptor{stream: s, mode: mode, owner: owner}
	if owner.Mon != nil {
		sd.mon = monitor.NewStreamEvent(owner.Mon, uint32(s.uid), mode)
	}
	if mode == 'r' {
		s.consSD = sd
	} else {
		s.prodSD = sd
	}
	return sd
}

// Stream returns the stream this descriptor is currently bound to.
func (sd *Descriptor) Stream() *Stream { return sd.stream }

// Mode reports 'r' or 'w'.
func (sd *Descriptor) Mode() byte { return sd.mode }

// Close closes sd. If destroy is true the caller additionally requests
// that the stream be destroyed now that both endpoints have closed and
// the buffer has drained; destroy must only be requested by whichever
// endpoint closes last.
func (sd *Descriptor) Close(destroy bool) {
	if sd.mon != nil {
		sd.mon.Closed()
	}
	if sd.mode == 'r' {
		sd.stream.consSD = nil
	} else {
		sd.stream.prodSD = nil
	}
	if destroy {
		sd.stream = nil
	}
}

// Replace rebinds sd to newStream in place, carrying over the descriptor's
// identity (and thus its dirty-list linkage) to the new stream — the
// mechanic behind the monitor's descriptor-replace event.
func (sd *Descriptor) Replace(newStream *Stream) {
	old := sd.stream
	sd.stream = newStream
	if sd.mode == 'r' {
		old.consSD = nil
		newStream.consSD = sd
	} else {
		old.prodSD = nil
		newStream.prodSD = sd
	}
	if sd.mon != nil {
		sd.mon.Replaced(uint32(newStream.uid))
	}
}
