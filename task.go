package lpel

import (
	"lpel/internal/core"
	"lpel/monitor"
)

// Task is an opaque handle to a cooperatively scheduled execution context.
type Task struct {
	t *core.Task
}

// TaskFunc is a task body. self lets the body call TaskYield/TaskExit on
// itself.
type TaskFunc func(self *Task, inarg any)

// TaskCreate creates a task owned by worker workerID. stacksize<=0 selects
// the default (8 KiB, for API fidelity only — see DESIGN.md). The task is
// not placed on any ready queue until TaskRun.
func TaskCreate(workerID int, body TaskFunc, inarg any, stacksize int) (*Task, error) {
	initMu.Lock()
	defer initMu.Unlock()
	if !initialized {
		return nil, wrap(ErrFail, "not initialized")
	}
	if workerID < 0 || workerID >= len(pool.Workers()) {
		return nil, wrap(ErrInval, "worker id out of range")
	}
	w := pool.Workers()[workerID]
	handle := &Task{}
	coreFn := func(ct *core.Task, arg any) {
		body(handle, arg)
	}
	uid := nextTaskUID.Add(1)
	handle.t = core.NewTask(uid, w, coreFn, inarg, stacksize)
	return handle, nil
}

// TaskDestroy releases a task's resources. It must only be called on a
// task that has reached Zombie or has never been run.
func TaskDestroy(t *Task) {
	t.t = nil
}

// TaskMonitor enables monitoring for t. flags selects which optional
// fields Stop emits (times, streams); name is truncated to 31 bytes.
func TaskMonitor(t *Task, name string, flags monitor.Flags) {
	workerIdx := -1
	for i, w := range pool.Workers() {
		if w == t.t.Owner() {
			workerIdx = i
			break
		}
	}
	if workerIdx < 0 || monCtxs[workerIdx] == nil {
		return
	}
	t.t.Mon = monitor.NewTaskRecord(monCtxs[workerIdx], t.t.UID, name, flags)
}

// TaskRun places t on its owning worker's ready queue via the worker's
// mailbox. Use this from outside any task body (e.g. placing the first
// tasks after Spawn). A task spawning another task on its own worker
// should call self.RunChild instead, which is allowed and preferred: it
// appends directly to the local ready queue rather than round-tripping
// through the mailbox.
func TaskRun(t *Task) {
	owner := t.t.Owner()
	for i, w := range pool.Workers() {
		if w == owner {
			pool.Assign(t.t, i)
			return
		}
	}
}

// RunChild places child on self's own ready queue directly. It must only
// be called from within self's own body goroutine, and child must be
// owned by the same worker as self.
func (self *Task) RunChild(child *Task) {
	self.t.Owner().RunLocal(child.t)
}

// TaskExit has no effect: it returns immediately and does not end self. A
// task finishes, and becomes Zombie, only when its body returns.
func TaskExit(self *Task) {
	// The body goroutine's wrapper in internal/core transitions to Zombie
	// and yields when body returns; this function does not unwind the body.
}

// TaskYield cooperatively yields self back to its worker without
// blocking; self remains Ready and will be redispatched in turn.
func TaskYield(self *Task) {
	self.t.YieldReady()
}

// TaskGetUID reports t's unique, monotonically assigned identifier.
func TaskGetUID(t *Task) uint64 { return t.t.UID }
