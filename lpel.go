// Package lpel is the runtime's public surface: a fixed pool of worker
// threads running cooperatively scheduled tasks that communicate over
// bounded SPSC streams. See internal/core for the scheduler itself; this
// package validates configuration, owns the worker pool's lifecycle, and
// translates the internal scheduler's types into the public Task/Stream
// API.
package lpel

import (
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/automaxprocs/maxprocs"

	"lpel/affinity"
	"lpel/internal/core"
	"lpel/internal/coroutine"
	"lpel/lpellog"
	"lpel/monitor"
)

// The validated configuration and derived CPU sets are kept in one
// module-wide variable, following the original's global-config design:
// the contract is that cfg is immutable from the end of Init until
// Cleanup, not that every caller must thread a handle through every call.
var (
	initMu      sync.Mutex
	cfg         Config
	workersSet  cpuSet
	othersSet   cpuSet
	pool        *core.Pool
	monCtxs     []*monitor.Context
	initialized bool
	nextTaskUID atomic.Uint64

	// monitorPrefix/monitorPostfix name the per-worker trace files this
	// process writes, set by InitMonitoring before Init (or left empty to
	// disable monitoring entirely).
	monitorPrefix, monitorPostfix string
)

// GetNumCores reports the number of CPUs visible to this process.
func GetNumCores() (int, error) {
	return affinity.NumCores()
}

// CanSetExclusive reports whether this process holds the capability
// required to raise a worker thread into a real-time scheduling class.
func CanSetExclusive() bool {
	return affinity.CanSetExclusive()
}

// InitMonitoring enables the monitoring sidecar: each worker's trace file
// will be named prefix+<worker-name>+postfix. Call before Init; calling it
// after Init has no effect on already-created workers.
func InitMonitoring(prefix, postfix string) {
	monitorPrefix, monitorPostfix = prefix, postfix
}

func checkConfig(c Config) error {
	if c.NumWorkers <= 0 || c.ProcWorkers <= 0 {
		return wrap(ErrInval, "num_workers and proc_workers must be > 0")
	}
	if c.ProcOthers < 0 {
		return wrap(ErrInval, "proc_others must be >= 0")
	}
	if avail, err := GetNumCores(); err == nil {
		if c.ProcWorkers+c.ProcOthers > avail {
			return wrap(ErrInval, "proc_workers+proc_others exceeds available cores")
		}
	}
	if c.Flags&FlagExclusive != 0 {
		if c.Flags&FlagPinned == 0 {
			return wrap(ErrInval, "EXCLUSIVE requires PINNED")
		}
		if !CanSetExclusive() {
			return ErrExcl
		}
	}
	return nil
}

func createCPUSets(c Config) (workers, others cpuSet) {
	for i := 0; i < c.ProcWorkers; i++ {
		workers.cores = append(workers.cores, i)
	}
	if c.ProcOthers == 0 {
		others = workers
		return
	}
	for i := c.ProcWorkers; i < c.ProcWorkers+c.ProcOthers; i++ {
		others.cores = append(others.cores, i)
	}
	return
}

// Init validates c, builds the worker and "others" CPU sets, initializes
// the coroutine support layer, and allocates (but does not start) every
// worker.
func Init(c Config) error {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized {
		return wrap(ErrFail, "already initialized")
	}
	if err := checkConfig(c); err != nil {
		return err
	}

	// Align GOMAXPROCS with the process's real CPU quota (cgroup-aware).
	// This runs after validation; GetNumCores reports runtime.NumCPU,
	// which GOMAXPROCS does not change, so the core-count check above
	// does not see the quota.
	if _, err := maxprocs.Set(maxprocs.Logger(func(string, ...any) {})); err != nil {
		lpellog.AffinityFailed(-1, err)
	}

	if err := coroutine.Init(); err != nil {
		return wrap(ErrFail, err.Error())
	}

	cfg = c
	workersSet, othersSet = createCPUSets(c)

	workers := make([]*core.Worker, c.NumWorkers)
	monCtxs = make([]*monitor.Context, c.NumWorkers)
	for i := 0; i < c.NumWorkers; i++ {
		var mctx *monitor.Context
		if monitorPrefix != "" || monitorPostfix != "" {
			var err error
			mctx, err = monitor.NewContext(monitorPrefix, workerName(i), monitorPostfix, i)
			if err != nil {
				lpellog.AffinityFailed(i, err)
			}
		}
		monCtxs[i] = mctx
		workers[i] = core.NewWorker(i, workersSet.cores[i%len(workersSet.cores)],
			c.Flags&FlagPinned != 0, c.Flags&FlagExclusive != 0, mctx)
	}
	pool = core.NewPool(workers)
	initialized = true
	return nil
}

func workerName(i int) string {
	return "worker" + strconv.Itoa(i)
}

// Spawn starts every worker's thread.
func Spawn() error {
	initMu.Lock()
	defer initMu.Unlock()
	if !initialized {
		return wrap(ErrFail, "not initialized")
	}
	pool.Spawn()
	return nil
}

// Stop asks every worker to terminate once it drains its outstanding
// tasks; it does not block for them to finish (see Cleanup).
func Stop() error {
	initMu.Lock()
	defer initMu.Unlock()
	if !initialized {
		return wrap(ErrFail, "not initialized")
	}
	pool.Terminate()
	return nil
}

// Cleanup joins every worker thread, closes monitor files, and tears down
// the coroutine support layer.
func Cleanup() error {
	initMu.Lock()
	defer initMu.Unlock()
	if !initialized {
		return nil
	}
	err := pool.Cleanup()
	for _, m := range monCtxs {
		if m != nil {
			_ = m.Close()
		}
	}
	coroutine.Cleanup()
	initialized = false
	if err != nil {
		return wrap(ErrFail, err.Error())
	}
	return nil
}

// ThreadAssign pins the calling thread (via the OS-thread it is currently
// locked to, or will be once it calls runtime.LockOSThread) to the given
// worker core, or to the "others" set if core == -1. When FlagExclusive is
// set, a worker-core assignment additionally raises the thread into
// real-time FIFO scheduling; an "others" assignment does not.
//
// This reimplements the original's intent directly: "is EXCLUSIVE set",
// not the double-masked check present in the source this was distilled
// from (see DESIGN.md).
func ThreadAssign(core int) error {
	initMu.Lock()
	c := cfg
	initMu.Unlock()

	if core == -1 {
		if len(othersSet.cores) == 0 {
			return wrap(ErrAssign, "no others cpuset configured")
		}
		if err := affinity.PinCurrentThreadToSet(othersSet.cores); err != nil {
			return wrap(ErrAssign, err.Error())
		}
		return nil
	}

	if core < 0 || core >= c.NumWorkers {
		return wrap(ErrInval, "core out of range")
	}
	if c.Flags&FlagPinned != 0 {
		target := workersSet.cores[core%len(workersSet.cores)]
		if err := affinity.PinCurrentThread(target); err != nil {
			return wrap(ErrAssign, err.Error())
		}
	} else {
		if err := affinity.PinCurrentThreadToSet(workersSet.cores); err != nil {
			return wrap(ErrAssign, err.Error())
		}
	}

	if c.Flags&FlagExclusive != 0 {
		if err := affinity.SetExclusive(); err != nil {
			return wrap(ErrAssign, err.Error())
		}
	}
	return nil
}
