package lock

import "errors"

// ErrLockTimeout is returned when a key stays held past the caller's bound.
var ErrLockTimeout = errors.New("lock acquisition timeout")
