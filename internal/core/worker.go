// Worker implements the spec's dispatch loop: drain mailbox, check for
// exit, block if idle, pop and dispatch one task, record its stop. Each
// worker is one goroutine pinned (optionally exclusively) to one OS thread
// and, through that thread, to one core.
package core

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"lpel/affinity"
	"lpel/lpellog"
	"lpel/monitor"
	"lpel/relax"
)

// spinBudget bounds how many empty-queue iterations a worker busy-polls
// before parking on its mailbox doorbell, trading latency for CPU burn the
// same way a dedicated consumer thread would.
const spinBudget = 224

// Worker is one OS thread's scheduling context.
type Worker struct {
	id        int
	core      int
	pinned    bool
	exclusive bool

	ready   Taskqueue
	mailbox *Mailbox
	mon     *monitor.Context

	liveTasks *taskIndex
	terminate bool
}

// NewWorker allocates a worker context. mon may be nil if this worker is
// not monitored.
func NewWorker(id, core int, pinned, exclusive bool, mon *monitor.Context) *Worker {
	return &Worker{
		id: id, core: core, pinned: pinned, exclusive: exclusive,
		mailbox:   NewMailbox(),
		mon:       mon,
		liveTasks: newTaskIndex(256),
	}
}

// ID reports the worker's index.
func (w *Worker) ID() int { return w.id }

// assign posts t to this worker's mailbox — the only legal way a
// different worker (or code outside any worker) may place a task here.
func (w *Worker) assign(t *Task) {
	w.mailbox.Post(Message{Kind: MsgAssign, Task: t})
}

// RunLocal places t directly on this worker's ready queue. It must only
// be called from within w's own dispatch loop, i.e. by a task spawning
// another task on its own worker — "allowed and preferred" per the spec,
// since it skips the mailbox round-trip entirely.
func (w *Worker) RunLocal(t *Task) {
	w.liveTasks.put(t.UID, t)
	t.setState(StateReady)
	w.ready.Append(t)
}

func (w *Worker) readyLocal(t *Task) {
	w.ready.Append(t)
}

// run is the worker's dispatch loop. It returns once termination has been
// requested and no live tasks remain.
func (w *Worker) run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if w.pinned {
		if err := affinity.PinCurrentThread(w.core); err != nil {
			lpellog.AffinityFailed(w.id, err)
		} else if w.exclusive {
			if err := affinity.SetExclusive(); err != nil {
				lpellog.AffinityFailed(w.id, err)
			}
		}
	}
	lpellog.WorkerStarted(w.id, w.core, w.pinned)
	defer lpellog.WorkerStopped(w.id)

	spins := 0
	for {
		for _, msg := range w.mailbox.Drain() {
			w.applyMessage(msg)
		}

		if w.ready.Len() == 0 && w.terminate && w.liveTasks.len() == 0 {
			return nil
		}

		if w.ready.Len() == 0 {
			if spins < spinBudget {
				spins++
				relax.CPU()
				continue
			}
			if w.mon != nil {
				w.mon.WaitStart()
			}
			w.mailbox.Wait()
			if w.mon != nil {
				w.mon.WaitStop()
			}
			spins = 0
			continue
		}
		spins = 0

		t := w.ready.Remove()
		t.setState(StateRunning)
		if t.Mon != nil {
			t.Mon.Start()
		}
		t.Dispatch()
		state := t.State()
		if t.Mon != nil {
			t.Mon.Stop(byte(state))
		}

		switch state {
		case StateZombie:
			w.liveTasks.delete(t.UID)
		case StateReady:
			w.ready.Append(t)
		case StateBlocked:
			// Pinned in a stream endpoint's wait slot; nothing to do.
		}
	}
}

func (w *Worker) applyMessage(msg Message) {
	switch msg.Kind {
	case MsgAssign:
		w.RunLocal(msg.Task)
	case MsgWakeup:
		w.ready.Append(msg.Task)
	case MsgTerminate:
		w.terminate = true
	}
}

// Pool owns a fixed set of workers and their lifecycle.
type Pool struct {
	workers []*Worker
	group   *errgroup.Group
}

// NewPool wraps an already-constructed worker set.
func NewPool(workers []*Worker) *Pool {
	return &Pool{workers: workers}
}

// Workers returns the pool's worker contexts, indexed by id.
func (p *Pool) Workers() []*Worker { return p.workers }

// Spawn starts one goroutine per worker via an errgroup, so a worker that
// returns a non-nil error (there is currently no such path; run only
// returns nil or panics) would be reported through Cleanup rather than
// silently dropped.
func (p *Pool) Spawn() {
	g, _ := errgroup.WithContext(context.Background())
	p.group = g
	for _, w := range p.workers {
		w := w
		g.Go(w.run)
	}
}

// Assign posts t to worker wid's mailbox. Called from outside any worker's
// own dispatch loop (e.g. placing the first tasks before any task exists
// to prefer the local path).
func (p *Pool) Assign(t *Task, wid int) {
	p.workers[wid].assign(t)
}

// Terminate posts a termination message to every worker's mailbox.
func (p *Pool) Terminate() {
	for _, w := range p.workers {
		w.mailbox.Post(Message{Kind: MsgTerminate})
	}
}

// Cleanup joins every worker goroutine, returning the first error any of
// them reported. A panic in a worker is not recovered here.
func (p *Pool) Cleanup() error {
	if p.group == nil {
		return nil
	}
	return p.group.Wait()
}
