package lpel

// Flags is a bitset of recognized configuration flags.
type Flags uint8

const (
	// FlagPinned pins each worker to a distinct core.
	FlagPinned Flags = 1 << 0
	// FlagExclusive raises each pinned worker's scheduling class to
	// real-time FIFO at the lowest priority. Requires FlagPinned and the
	// process holding the scheduling-elevation capability.
	FlagExclusive Flags = 1 << 1
)

// Config is the runtime's startup configuration. It is immutable after
// Init: Init copies the fields it needs rather than retaining the Config
// value itself.
type Config struct {
	NumWorkers  int
	ProcWorkers int
	ProcOthers  int
	Flags       Flags
	// Node is an opaque value passed through to workers unchanged; the
	// runtime never interprets it.
	Node int
}

// cpuSet is a set of core indices, built once at Init.
type cpuSet struct {
	cores []int
}

func (c cpuSet) contains(core int) bool {
	for _, x := range c.cores {
		if x == core {
			return true
		}
	}
	return false
}
