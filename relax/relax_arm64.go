// relax_arm64.go - ARM64 spin-wait hint via the YIELD instruction.

//go:build arm64 && !noasm && !nocgo

package relax

/*
#ifdef __aarch64__
static inline void cpu_yield() {
    __asm__ __volatile__("yield" ::: "memory");
}
#else
#error "this file requires arm64"
#endif
*/
import "C"

//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func CPU() {
	C.cpu_yield()
}
