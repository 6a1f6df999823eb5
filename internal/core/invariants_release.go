//go:build !lpel_debug_invariants

package core

// assertInvariant is a no-op in normal builds; see invariants_debug.go.
func assertInvariant(cond bool, format string, args ...any) {}
