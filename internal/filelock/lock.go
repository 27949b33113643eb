package filelock

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/symphony/internal/backoff"
	"github.com/Iron-Ham/symphony/internal/errors"
	"github.com/Iron-Ham/symphony/internal/logging"
)

// LockSuffix is appended to a document path to form its lock file path.
const LockSuffix = ".lock"

// Lease is an acquired exclusive hold on a key.
type Lease interface {
	// Key returns the key the lease was acquired for.
	Key() string
	// Waited returns how long acquisition took.
	Waited() time.Duration
	// Release gives up the lease. Releasing twice is a no-op.
	Release() error
}

// Locker acquires leases. Acquire blocks until the lease is held, the
// locker's maximum wait elapses, or ctx is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Options tunes a FileLocker.
type Options struct {
	// MaxWait bounds the total time spent acquiring.
	MaxWait time.Duration
	// StaleAfter is the lock file age beyond which it is removed.
	StaleAfter time.Duration
	// InitialDelay is the first backoff wait; it doubles up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Jitter spreads each wait by ±Jitter of its base.
	Jitter float64
}

// DefaultOptions returns a 30s maximum wait, a 60s stale threshold and
// waits doubling from 50ms to 2s with ±25% jitter.
func DefaultOptions() Options {
	return Options{
		MaxWait:      30 * time.Second,
		StaleAfter:   60 * time.Second,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Jitter:       0.25,
	}
}

// Option configures a FileLocker.
type Option func(*FileLocker)

// WithLogger sets the logger used for contention and stale-lock messages.
func WithLogger(l *logging.Logger) Option {
	return func(f *FileLocker) {
		f.logger = l
	}
}

// WithClock replaces the wall clock used to age lock files.
func WithClock(now func() time.Time) Option {
	return func(f *FileLocker) {
		f.now = now
	}
}

// WithRand fixes the jitter source.
func WithRand(r backoff.Source) Option {
	return func(f *FileLocker) {
		f.rand = r
	}
}

// FileLocker is a Locker backed by exclusive-create lock files. It is safe
// for concurrent use; each Acquire is independent.
type FileLocker struct {
	opts   Options
	logger *logging.Logger
	now    func() time.Time
	rand   backoff.Source
	pid    int
}

// New creates a FileLocker. Zero fields of opts take their defaults.
func New(opts Options, options ...Option) *FileLocker {
	def := DefaultOptions()
	if opts.MaxWait <= 0 {
		opts.MaxWait = def.MaxWait
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = def.StaleAfter
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = def.InitialDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = def.MaxDelay
	}
	if opts.Jitter < 0 {
		opts.Jitter = 0
	}

	f := &FileLocker{
		opts:   opts,
		logger: logging.NopLogger(),
		now:    time.Now,
		pid:    os.Getpid(),
	}
	for _, o := range options {
		o(f)
	}
	return f
}

// LockPath returns the lock file path guarding path.
func LockPath(path string) string {
	return path + LockSuffix
}

// Acquire takes the lock guarding path.
func (f *FileLocker) Acquire(ctx context.Context, path string) (Lease, error) {
	lockPath := LockPath(path)
	start := time.Now()
	sched := backoff.Schedule{
		Initial: f.opts.InitialDelay,
		Max:     f.opts.MaxDelay,
		Jitter:  f.opts.Jitter,
		Rand:    f.rand,
	}

	for attempt := 0; ; attempt++ {
		fl, err := f.tryAcquire(path)
		if err != nil {
			return nil, err
		}
		if fl != nil {
			fl.waited = time.Since(start)
			if attempt > 0 {
				f.logger.Debug("lock acquired after contention", "lock", lockPath, "attempts", attempt+1, "waited_ms", fl.waited.Milliseconds())
			}
			return fl, nil
		}

		elapsed := time.Since(start)
		if elapsed >= f.opts.MaxWait {
			f.logger.Warn("lock wait exceeded", "lock", lockPath, "waited_ms", elapsed.Milliseconds())
			return nil, errors.NewLockError(lockPath, elapsed)
		}

		wait := min(sched.Next(), f.opts.MaxWait-elapsed)
		f.logger.Debug("lock busy", "lock", lockPath, "attempt", attempt+1, "wait_ms", wait.Milliseconds())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.NewLockError(lockPath, time.Since(start)).WithCause(ctx.Err())
		case <-timer.C:
		}
	}
}

// tryAcquire makes a single attempt, including stale-lock recovery. It
// returns a nil lease and no error when the lock is held elsewhere.
func (f *FileLocker) tryAcquire(path string) (*fileLease, error) {
	lockPath := LockPath(path)
	f.removeIfStale(lockPath)
	ok, err := f.tryCreate(lockPath)
	if err != nil || !ok {
		return nil, err
	}
	return &fileLease{key: path, lockPath: lockPath}, nil
}

func (f *FileLocker) tryCreate(lockPath string) (bool, error) {
	file, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create lock file: %w", err)
	}

	_, werr := file.WriteString(strconv.Itoa(f.pid))
	cerr := file.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(lockPath)
		return false, fmt.Errorf("write lock file: %w", errors.Join(werr, cerr))
	}
	return true, nil
}

// removeIfStale deletes lockPath when its mtime is older than StaleAfter.
// Any failure (including losing a race to another remover) is ignored.
func (f *FileLocker) removeIfStale(lockPath string) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return
	}
	age := f.now().Sub(info.ModTime())
	if age <= f.opts.StaleAfter {
		return
	}
	holder, _ := os.ReadFile(lockPath)
	if err := os.Remove(lockPath); err == nil {
		f.logger.Warn("removed stale lock", "lock", lockPath, "age_ms", age.Milliseconds(), "holder_pid", strings.TrimSpace(string(holder)))
	}
}

// Holder returns the pid recorded in the lock file guarding path, or 0 if
// the document is not locked.
func Holder(path string) (int, error) {
	data, err := os.ReadFile(LockPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read lock file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("lock file %s: invalid pid %q", LockPath(path), data)
	}
	return pid, nil
}

type fileLease struct {
	key      string
	lockPath string
	waited   time.Duration
	once     sync.Once
	err      error
}

func (l *fileLease) Key() string           { return l.key }
func (l *fileLease) Waited() time.Duration { return l.waited }

// Release deletes the lock file. A lock file that is already gone is not
// an error.
func (l *fileLease) Release() error {
	l.once.Do(func() {
		if err := os.Remove(l.lockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.err = fmt.Errorf("release lock %s: %w", l.lockPath, err)
		}
	})
	return l.err
}

// WithLock runs fn while holding the lease for key. The lease is released
// when fn returns or panics. A release failure is reported only when fn
// itself succeeded.
func WithLock(ctx context.Context, locker Locker, key string, fn func() error) (err error) {
	lease, err := locker.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lease.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}
