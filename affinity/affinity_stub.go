// affinity_stub.go - No-op CPU affinity for platforms without sched_setaffinity.

//go:build !linux || tinygo

package affinity

import (
	"errors"
	"runtime"
)

// errUnsupported is returned by every pinning operation on platforms where
// the underlying syscall does not exist, so callers can distinguish "not
// supported here" from "denied."
var errUnsupported = errors.New("affinity: not supported on this platform")

func PinCurrentThread(core int) error          { return errUnsupported }
func PinCurrentThreadToSet(cores []int) error  { return errUnsupported }
func NumCores() (int, error)                   { return runtime.NumCPU(), nil }
func CanSetExclusive() bool                    { return false }
func SetExclusive() error                      { return errUnsupported }
