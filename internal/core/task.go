// Package core implements the runtime's scheduler internals: tasks, the
// ready-queue taskqueue, SPSC streams, worker dispatch loops, and the
// mailbox that is the only channel through which workers touch each
// other's state. These are kept in one package, deliberately: a task's
// wait slot lives on a stream, a stream's wakeup lands on a task owned by
// some worker, and a worker mutates both — splitting them into separate
// packages would just reintroduce the aliasing the original's design
// notes warn against, through exported fields instead of package walls.
package core

import (
	"sync/atomic"

	"lpel/monitor"
)

// State is a task's scheduling state, using the same letters the monitor
// trace format expects.
type State byte

const (
	StateCreated State = 'C'
	StateRunning State = 'U'
	StateReady   State = 'R'
	StateBlocked State = 'B'
	StateZombie  State = 'Z'
)

// BlockedOn is the sub-reason recorded when a task is Blocked.
type BlockedOn byte

const (
	BlockedOnInput  BlockedOn = 'i'
	BlockedOnOutput BlockedOn = 'o'
	BlockedOnAnyIn  BlockedOn = 'a'
)

// DefaultStackSize is used when a task is created with stacksize<=0.
const DefaultStackSize = 8192

// Func is a task body. self lets the body call Yield/block operations on
// itself without a separate "current task" lookup.
type Func func(self *Task, inarg any)

// Task is a cooperatively scheduled execution context, owned by exactly
// one worker for its entire life.
type Task struct {
	prev, next *Task // intrusive ready-queue links; valid only while queued

	UID       uint64
	StackSize int

	state     atomic.Uint32 // State, read cross-worker by wakeup delivery before ownership transfers back
	blockedOn BlockedOn

	owner *Worker

	pollToken atomic.Uint32
	wakeupSD  *Descriptor // meaningful only between wakeup delivery and the next yield from Ready

	Mon *monitor.TaskRecord

	fn     Func
	inarg  any
	resume chan struct{}
	yield  chan struct{}
	started bool
}

// NewTask allocates a task bound to owner. It does not start the task's
// coroutine; Dispatch does that on the task's first dispatch.
func NewTask(uid uint64, owner *Worker, fn Func, inarg any, stacksize int) *Task {
	if stacksize <= 0 {
		stacksize = DefaultStackSize
	}
	t := &Task{
		UID: uid, StackSize: stacksize, owner: owner,
		fn: fn, inarg: inarg,
		resume: make(chan struct{}), yield: make(chan struct{}),
	}
	t.state.Store(uint32(StateCreated))
	return t
}

func (t *Task) State() State     { return State(t.state.Load()) }
func (t *Task) setState(s State) { t.state.Store(uint32(s)) }

// Owner is the worker this task is permanently assigned to.
func (t *Task) Owner() *Worker { return t.owner }

// BlockedOnReason is the sub-reason recorded while t.State()==StateBlocked.
func (t *Task) BlockedOnReason() BlockedOn { return t.blockedOn }

// WakeupDescriptor is the stream descriptor that produced the most recent
// wakeup, valid only between that wakeup and the task's next yield.
func (t *Task) WakeupDescriptor() *Descriptor { return t.wakeupSD }

// ensureStarted launches the task's body goroutine exactly once. The body
// goroutine parks immediately on resume, so launching early is safe.
func (t *Task) ensureStarted() {
	if t.started {
		return
	}
	t.started = true
	go func() {
		<-t.resume
		t.fn(t, t.inarg)
		t.setState(StateZombie)
		t.yield <- struct{}{}
	}()
}

// Dispatch performs one context switch from the worker into the task,
// blocking until the task yields, blocks, or exits. This is the worker
// side of the save/restore-context contract named in the design notes;
// the two unbuffered channels implement the "atomically from the caller's
// point of view" hand-off without a real stack switch, since a task body
// already runs on its own goroutine stack.
func (t *Task) Dispatch() {
	t.ensureStarted()
	t.resume <- struct{}{}
	<-t.yield
}

// Yield hands control back to the worker without an accompanying state
// change (the caller sets t.state before calling this). It must be called
// only from within the task's own body goroutine.
func (t *Task) Yield() {
	t.yield <- struct{}{}
	<-t.resume
}

// YieldReady transitions t to Ready and hands control back to the worker,
// which will re-append it to the ready queue. This is the plain
// cooperative yield: "I have more work, but let others run first."
func (t *Task) YieldReady() {
	t.setState(StateReady)
	t.Yield()
}

// Block transitions t to Blocked with the given sub-reason and yields to
// the worker. It must be called only from within the task's own body, and
// only after the caller has already reset pollToken and installed t in
// whatever wait slot it is blocking on: a reset here would happen after t
// is visible to concurrent wakers, racing a real deliverWakeup's CAS.
func (t *Task) Block(reason BlockedOn) {
	t.blockedOn = reason
	t.setState(StateBlocked)
	t.Yield()
}
