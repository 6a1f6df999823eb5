// affinity_linux.go - CPU affinity and scheduling class control via Linux syscalls.

//go:build linux && !tinygo

package affinity

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// PinCurrentThread restricts the calling OS thread to the given core.
//
// Callers must have already called runtime.LockOSThread, since affinity is
// a per-thread Linux attribute and goroutines are not pinned to OS threads
// by default.
func PinCurrentThread(core int) error {
	if core < 0 {
		return fmt.Errorf("affinity: negative core %d", core)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity(core=%d): %w", core, err)
	}
	return nil
}

// PinCurrentThreadToSet restricts the calling OS thread to any core in cores.
func PinCurrentThreadToSet(cores []int) error {
	var set unix.CPUSet
	set.Zero()
	for _, c := range cores {
		if c < 0 {
			return fmt.Errorf("affinity: negative core %d", c)
		}
		set.Set(c)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity(set): %w", err)
	}
	return nil
}

// NumCores reports the number of CPUs the Go runtime sees online.
func NumCores() (int, error) {
	return runtime.NumCPU(), nil
}

// capSysNiceBit is CAP_SYS_NICE's bit position in the capability bitmasks
// reported by /proc/self/status.
const capSysNiceBit = 23

// CanSetExclusive reports whether the process holds CAP_SYS_NICE, required
// to raise a thread into a real-time scheduling class. Linux exposes no
// syscall to query the effective capability set directly; this reads the
// CapEff line of /proc/self/status instead. A failure to read is treated as
// "no capability" rather than an error, matching the spec's "best effort"
// characterization of exclusive scheduling.
func CanSetExclusive() bool {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "CapEff:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return false
		}
		mask, err := strconv.ParseUint(fields[1], 16, 64)
		if err != nil {
			return false
		}
		return mask&(1<<capSysNiceBit) != 0
	}
	return false
}

// SetExclusive raises the calling thread into SCHED_FIFO at the lowest
// real-time priority, best effort: a failure to set the scheduling class is
// reported to the caller but does not imply the thread is not pinned.
func SetExclusive() error {
	tid := unix.Gettid()
	param := unix.SchedParam{Priority: 1}
	if err := unix.SchedSetscheduler(tid, unix.SCHED_FIFO, &param); err != nil {
		return fmt.Errorf("affinity: sched_setscheduler(SCHED_FIFO): %w", err)
	}
	return nil
}
