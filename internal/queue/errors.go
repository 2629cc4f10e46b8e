package queue

// spawnFailedError wraps a Spawner failure for one destination.
type spawnFailedError struct {
	dest string
	err  error
}

func (e spawnFailedError) Error() string { return "spawn worker " + e.dest + ": " + e.err.Error() }
func (e spawnFailedError) Unwrap() error { return e.err }

// IsSpawnFailed reports whether err came from starting a worker process.
func IsSpawnFailed(err error) bool {
	_, ok := err.(spawnFailedError)
	return ok
}

// notFoundError signals a destination with no queue record.
type notFoundError struct{ dest string }

func (e notFoundError) Error() string { return "queue not found: " + e.dest }

// ErrNotFound returns an error for an unknown destination.
func ErrNotFound(dest string) error { return notFoundError{dest: dest} }

// IsNotFound reports whether err indicates an unknown destination.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// badOptionError signals an option or result that cannot be routed.
type badOptionError struct{ msg string }

func (e badOptionError) Error() string { return e.msg }

// ErrBadOption constructs a badOptionError.
func ErrBadOption(msg string) error { return badOptionError{msg: msg} }

// IsBadOption reports whether err indicates an unroutable option.
func IsBadOption(err error) bool {
	_, ok := err.(badOptionError)
	return ok
}
