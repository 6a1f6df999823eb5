// Package coroutine stands in for the portable stack-switching support
// library the original runtime initializes once at startup and tears down
// at shutdown. This module's coroutine contract — "save context of
// caller, restore context of callee, atomically from the caller's point
// of view" — is implemented per-task as a two-channel goroutine hand-off
// (see internal/core.Task.Dispatch/Yield), which needs no process-wide
// initialization. Init and Cleanup remain as explicit lifecycle calls
// purely for API fidelity with the runtime's own Init/Cleanup sequence.
package coroutine

// Init is a no-op: Go's goroutines require no global stack-switching
// library to be initialized before use.
func Init() error { return nil }

// Cleanup is a no-op, symmetric with Init.
func Cleanup() {}
