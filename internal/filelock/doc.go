// Package filelock serializes read-modify-write cycles on a shared document
// across independent processes.
//
// A [Locker] hands out a [Lease] keyed by path. [FileLocker] implements the
// lease as a sibling "<path>.lock" file created with O_EXCL and holding the
// owner's pid. A lock file older than the stale threshold is assumed to
// belong to a crashed holder and is removed. Contended acquisitions back off
// exponentially with jitter until the maximum wait elapses, then fail with
// an *errors.LockError.
//
// # Basic Usage
//
//	locker := filelock.New(filelock.DefaultOptions())
//	err := filelock.WithLock(ctx, locker, statePath, func() error {
//	    // load, mutate, persist
//	    return nil
//	})
//
// Other lease backends (a database row lock, for example) only need to
// satisfy [Locker].
package filelock
