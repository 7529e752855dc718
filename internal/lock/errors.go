package lock

import "errors"

// Error kinds for lock preconditions, per spec §4.2/§7.
var (
	ErrNodeNotFound     = errors.New("lock: node not found")
	ErrAlreadyLocked    = errors.New("lock: already locked")
	ErrParentDeepLocked = errors.New("lock: ancestor holds a deep lock")
	ErrChildLocked      = errors.New("lock: descendant is locked")
	ErrNotLocked        = errors.New("lock: not locked")
	ErrNotHolder        = errors.New("lock: session is not the holder")
	ErrOtherHolder      = errors.New("lock: token is held by another session")
	ErrLocked           = errors.New("lock: path is locked")
)
