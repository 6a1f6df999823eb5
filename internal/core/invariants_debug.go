//go:build lpel_debug_invariants

package core

import "fmt"

// assertInvariant panics if cond is false. Compiled in only under the
// lpel_debug_invariants build tag: these are developer-time safety nets
// for invariants the design otherwise simply relies on (spec.md §7: "the
// design assumes task bodies do not fault"), not always-on production
// checks.
func assertInvariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("lpel: invariant violated: "+format, args...))
	}
}
