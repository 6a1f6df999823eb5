package core

// Error is a plain string error used for the one argument check this
// package makes directly (a non-positive stream capacity). Closing a
// descriptor twice is not detected. Lifecycle
// status codes (ERR_FAIL / ERR_INVAL / ERR_ASSIGN / ERR_EXCL) live in the
// root package, which wraps these where they surface through its API.
type Error string

func (e Error) Error() string { return string(e) }

// ErrInval constructs an Error for a rejected argument.
func ErrInval(msg string) error { return Error(msg) }
