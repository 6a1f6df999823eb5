// relax_amd64.go - x86-64 spin-wait hint via the PAUSE instruction.
//
// Improves power efficiency and SMT sibling throughput when a worker is
// spinning on an empty ready queue and empty mailbox.

//go:build amd64 && !noasm && !nocgo

package relax

/*
#ifdef __x86_64__
static inline void cpu_pause() {
    __asm__ __volatile__("pause" ::: "memory");
}
#else
#error "this file requires x86-64"
#endif
*/
import "C"

//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func CPU() {
	C.cpu_pause()
}
