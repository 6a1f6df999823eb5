// Package lpellog carries the runtime's ambient diagnostic logging: worker
// lifecycle events, affinity failures, and non-fatal monitor I/O errors.
// It is deliberately separate from the monitor package's per-dispatch trace
// files, whose line format is part of the persisted contract and must not
// be mixed with free-form diagnostics.
package lpellog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu  sync.RWMutex
	log *zap.Logger = zap.NewNop()
)

// Configure installs l as the process-wide logger. Passing nil installs a
// no-op logger, silencing all diagnostics.
func Configure(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	log = l
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// WorkerStarted records that a worker's dispatch loop has entered service.
func WorkerStarted(wid, core int, pinned bool) {
	current().Info("worker started",
		zap.Int("worker", wid), zap.Int("core", core), zap.Bool("pinned", pinned))
}

// WorkerStopped records that a worker's dispatch loop has exited.
func WorkerStopped(wid int) {
	current().Info("worker stopped", zap.Int("worker", wid))
}

// AffinityFailed records a non-fatal failure to pin or elevate a worker
// thread; the worker continues running unpinned.
func AffinityFailed(wid int, err error) {
	current().Warn("affinity operation failed", zap.Int("worker", wid), zap.Error(err))
}

// MonitorWriteFailed records that a monitor trace record was dropped, per
// the spec's "monitor I/O failures are non-fatal" contract: the write
// itself must return success to its caller, but the failure is still worth
// surfacing to an operator running with debug logging enabled.
func MonitorWriteFailed(wid int, err error) {
	current().Debug("monitor trace write dropped", zap.Int("worker", wid), zap.Error(err))
}
