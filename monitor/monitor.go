// Package monitor implements the runtime's monitoring sidecar: one
// append-only trace file per worker, written in a fixed line format on
// every task dispatch stop. The format and the dirty-list discipline that
// feeds it are part of the persisted contract and must not drift.
//
// Dirty-list discipline: during one dispatch, each stream-descriptor event
// (open, close, replace, moved, blocked-on, woken) marks that descriptor
// dirty at most once by linking it into the dispatched task's dirty list.
// "Not linked" and "end of list" are distinguished by a reserved sentinel
// value rather than nil, so a descriptor already linked is never linked
// twice in the same dispatch.
package monitor

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"lpel/lpellog"
)

// Task state letters, as written into trace lines.
const (
	StateCreated = 'C'
	StateRunning = 'U'
	StateReady   = 'R'
	StateBlocked = 'B'
	StateZombie  = 'Z'
)

// Block sub-reason letters, written after StateBlocked.
const (
	BlockedOnInput  = 'i'
	BlockedOnOutput = 'o'
	BlockedOnAnyIn  = 'a'
)

// Stream descriptor state letters.
const (
	DescInUse    = 'I'
	DescOpened   = 'O'
	DescClosed   = 'C'
	DescReplaced = 'R'
)

// Flags select which optional fields TaskRecord.Stop emits.
type Flags uint8

const (
	FlagTimes   Flags = 1 << 0
	FlagStreams Flags = 1 << 1
)

var (
	beginOnce sync.Once
	begin     time.Time
)

func markBegin() {
	beginOnce.Do(func() { begin = time.Now() })
}

func normTime(t time.Time) int64 {
	markBegin()
	return t.Sub(begin).Microseconds()
}

// Context is one worker's monitor state: its trace file and its
// wait-time accounting. Monitor contexts are worker-private; nothing
// outside the owning worker ever writes to a Context.
type Context struct {
	wid    int
	file   *os.File
	w      *bufio.Writer
	mu     sync.Mutex
	waitCnt   uint64
	waitTotal time.Duration
	waitSince time.Time
	waiting   bool
}

// NewContext opens (creating if necessary) the trace file named
// prefix+name+postfix for worker wid.
func NewContext(prefix, name, postfix string, wid int) (*Context, error) {
	markBegin()
	path := prefix + name + postfix
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("monitor: open %q: %w", path, err)
	}
	return &Context{wid: wid, file: f, w: bufio.NewWriter(f)}, nil
}

// Close flushes and closes the trace file.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	_ = c.w.Flush()
	err := c.file.Close()
	c.file = nil
	return err
}

func (c *Context) writeLine(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return
	}
	if _, err := c.w.WriteString(line); err != nil {
		lpellog.MonitorWriteFailed(c.wid, err)
		return
	}
	// Best effort, matching the spec's "a failed write is dropped
	// silently": flush errors are reported but never propagated.
	if err := c.w.Flush(); err != nil {
		lpellog.MonitorWriteFailed(c.wid, err)
	}
}

// Debugf writes a free-form, timestamped diagnostic line to the same
// trace file, prefixed so it is visually distinct from dispatch records.
func (c *Context) Debugf(format string, args ...any) {
	line := fmt.Sprintf("*** %d %s\n", normTime(time.Now()), fmt.Sprintf(format, args...))
	c.writeLine(line)
}

// WaitStart records that this worker has begun blocking on its mailbox.
func (c *Context) WaitStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waitSince = time.Now()
	c.waiting = true
}

// WaitStop records that this worker has stopped blocking on its mailbox,
// accumulating the elapsed wait into the running total.
func (c *Context) WaitStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.waiting {
		return
	}
	c.waitTotal += time.Since(c.waitSince)
	c.waitCnt++
	c.waiting = false
}

// WaitStats reports the accumulated count and duration of mailbox waits.
func (c *Context) WaitStats() (count uint64, total time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitCnt, c.waitTotal
}

// dirtyEnd is the reserved sentinel marking "end of dirty list", distinct
// from nil which means "not linked into any dirty list".
var dirtyEnd = &StreamEvent{}

// StreamEvent is one task's monitoring record for one stream descriptor.
// It accumulates event flags across a dispatch and is drained, printed,
// and reset by TaskRecord.Stop.
type StreamEvent struct {
	next *StreamEvent

	sid     uint32
	mode    byte // 'r' or 'w'
	state   byte // DescInUse / DescOpened / DescClosed / DescReplaced
	counter uint64

	blockedOn bool // '?' — task registered itself waiting on this descriptor
	woken     bool // '!' — a wakeup fired through this descriptor
	moved     bool // '*' — an item was transferred through this descriptor

	owner *TaskRecord
}

// NewStreamEvent allocates a fresh event for a newly opened descriptor.
func NewStreamEvent(owner *TaskRecord, sid uint32, mode byte) *StreamEvent {
	ev := &StreamEvent{owner: owner, sid: sid, mode: mode, state: DescOpened}
	owner.markDirty(ev)
	return ev
}

func (ev *StreamEvent) markDirty() {
	if ev.owner != nil {
		ev.owner.markDirty(ev)
	}
}

// Closed marks the descriptor closed; it is freed once its closed-state
// line has been printed and drained by Stop.
func (ev *StreamEvent) Closed() {
	ev.state = DescClosed
	ev.markDirty()
}

// Replaced marks the descriptor as rebound to a new stream id.
func (ev *StreamEvent) Replaced(newSid uint32) {
	ev.state = DescReplaced
	ev.sid = newSid
	ev.markDirty()
}

// Moved records that one item crossed this descriptor.
func (ev *StreamEvent) Moved() {
	ev.counter++
	ev.moved = true
	ev.markDirty()
}

// BlockOn records that the owning task registered itself waiting on this
// descriptor, and sets the owning task's block sub-reason accordingly.
func (ev *StreamEvent) BlockOn() {
	ev.blockedOn = true
	ev.markDirty()
	if ev.owner != nil {
		if ev.mode == 'r' {
			ev.owner.blockedOn = BlockedOnInput
		} else {
			ev.owner.blockedOn = BlockedOnOutput
		}
	}
}

// Wakeup records that a wakeup was delivered through this descriptor. It
// does not itself mark the descriptor dirty: a Moved event on the same
// descriptor always accompanies a wakeup and already dirties it.
func (ev *StreamEvent) Wakeup() {
	ev.woken = true
}

// TaskRecord is one task's monitor state, carrying its dispatch counter,
// timings, and the current dispatch's dirty stream-event list.
type TaskRecord struct {
	ctx   *Context
	name  string
	tid   uint64
	flags Flags

	disp uint64

	creat time.Time
	start time.Time
	total time.Duration

	blockedOn byte
	dirty     *StreamEvent
}

// NewTaskRecord creates a monitor record for a task. name is truncated to
// 31 bytes, mirroring the original fixed-size name field.
func NewTaskRecord(ctx *Context, tid uint64, name string, flags Flags) *TaskRecord {
	if len(name) > 31 {
		name = name[:31]
	}
	t := &TaskRecord{
		ctx: ctx, name: name, tid: tid, flags: flags,
		blockedOn: BlockedOnAnyIn,
		dirty:     dirtyEnd,
	}
	if flags&FlagTimes != 0 {
		t.creat = time.Now()
	}
	return t
}

func (t *TaskRecord) markDirty(ev *StreamEvent) {
	if ev.next != nil {
		return // already linked this dispatch
	}
	ev.next = t.dirty
	t.dirty = ev
}

// Start marks the beginning of one dispatch of this task.
func (t *TaskRecord) Start() {
	t.disp++
	t.blockedOn = BlockedOnAnyIn
	if t.flags&FlagTimes != 0 {
		t.start = time.Now()
	}
}

// Stop writes one trace line for the just-finished dispatch and drains the
// dirty list, per the fixed grammar:
//
//	<ts_norm> <tid> [<name> ] disp <N> st <S>[<sub>] [et <dt> [creat <ct>]] [<streams>]
func (t *TaskRecord) Stop(state byte) {
	var b strings.Builder

	fmt.Fprintf(&b, "%d %d ", normTime(time.Now()), t.tid)
	if t.name != "" {
		fmt.Fprintf(&b, "%s ", t.name)
	}
	fmt.Fprintf(&b, "disp %d ", t.disp)

	if state == StateBlocked {
		fmt.Fprintf(&b, "st B%c ", t.blockedOn)
	} else {
		fmt.Fprintf(&b, "st %c ", state)
	}

	if t.flags&FlagTimes != 0 {
		dt := time.Since(t.start).Microseconds()
		t.total += time.Since(t.start)
		fmt.Fprintf(&b, "et %d ", dt)
		if state == StateZombie {
			fmt.Fprintf(&b, "creat %d ", normTime(t.creat))
		}
	}

	if t.flags&FlagStreams != 0 {
		b.WriteByte('[')
		b.WriteString(t.drainDirty())
		b.WriteString("] ")
	}

	line := strings.TrimRight(b.String(), " ") + "\n"
	t.ctx.writeLine(line)
}

// drainDirty walks the dirty list, formatting each entry as
// "sid,mode,state,counter,flags;" and applying the state transition each
// entry implies, exactly mirroring the original's PrintDirtyList.
func (t *TaskRecord) drainDirty() string {
	var b strings.Builder
	ev := t.dirty
	for ev != dirtyEnd {
		nextEv := ev.next
		flags := flagLetters(ev)
		fmt.Fprintf(&b, "%d,%c,%c,%d,%s;", ev.sid, ev.mode, ev.state, ev.counter, flags)

		switch ev.state {
		case DescOpened, DescReplaced:
			ev.state = DescInUse
			ev.blockedOn, ev.woken, ev.moved = false, false, false
			ev.next = nil
		case DescClosed:
			ev.next = nil
			ev.owner = nil
		default:
			ev.blockedOn, ev.woken, ev.moved = false, false, false
			ev.next = nil
		}
		ev = nextEv
	}
	t.dirty = dirtyEnd
	return b.String()
}

func flagLetters(ev *StreamEvent) string {
	letter := func(set bool, c byte) byte {
		if set {
			return c
		}
		return '-'
	}
	return string([]byte{
		letter(ev.blockedOn, '?'),
		letter(ev.woken, '!'),
		letter(ev.moved, '*'),
	})
}
