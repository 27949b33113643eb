package filelock

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/symphony/internal/errors"
)

func fastOptions() Options {
	return Options{
		MaxWait:      200 * time.Millisecond,
		StaleAfter:   time.Minute,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Jitter:       0.25,
	}
}

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	locker := New(fastOptions())

	lease, err := locker.Acquire(context.Background(), path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if lease.Key() != path {
		t.Errorf("Key() = %q, want %q", lease.Key(), path)
	}

	data, err := os.ReadFile(LockPath(path))
	if err != nil {
		t.Fatalf("lock file should exist: %v", err)
	}
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock file content = %q, want pid %d", data, os.Getpid())
	}
	if pid, _ := Holder(path); pid != os.Getpid() {
		t.Errorf("Holder() = %d, want %d", pid, os.Getpid())
	}

	if err := lease.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(LockPath(path)); !os.IsNotExist(err) {
		t.Errorf("lock file should be removed, stat err = %v", err)
	}
	if pid, err := Holder(path); pid != 0 || err != nil {
		t.Errorf("Holder() = %d, %v, want 0, nil", pid, err)
	}

	// Second release is a no-op.
	if err := lease.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}

func TestReleaseMissingLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	lease, err := New(fastOptions()).Acquire(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(LockPath(path)); err != nil {
		t.Fatal(err)
	}
	if err := lease.Release(); err != nil {
		t.Errorf("Release() error = %v, want nil", err)
	}
}

func TestAcquireTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(LockPath(path), []byte("99999"), 0o644); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	_, err := New(fastOptions()).Acquire(context.Background(), path)
	if !errors.Is(err, errors.ErrLockTimeout) {
		t.Fatalf("Acquire() error = %v, want ErrLockTimeout", err)
	}
	if !errors.IsRetryable(err) {
		t.Error("lock timeout should be retryable")
	}
	var lerr *errors.LockError
	if !errors.As(err, &lerr) || lerr.LockPath != LockPath(path) {
		t.Errorf("LockError = %+v", lerr)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("gave up after %v, want at least the max wait", elapsed)
	}

	// The foreign lock file is untouched.
	if _, err := os.Stat(LockPath(path)); err != nil {
		t.Errorf("foreign lock file removed: %v", err)
	}
}

func TestAcquireContextCanceled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(LockPath(path), []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := fastOptions()
	opts.MaxWait = 10 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(opts).Acquire(ctx, path)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() error = %v, want context.DeadlineExceeded", err)
	}
	if !errors.Is(err, errors.ErrLockTimeout) {
		t.Errorf("Acquire() error = %v, want ErrLockTimeout", err)
	}
}

func TestStaleLockRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(LockPath(path), []byte("4242"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Minute)
	if err := os.Chtimes(LockPath(path), old, old); err != nil {
		t.Fatal(err)
	}

	lease, err := New(fastOptions()).Acquire(context.Background(), path)
	if err != nil {
		t.Fatalf("Acquire() error = %v, want stale lock recovered", err)
	}
	defer lease.Release() //nolint:errcheck

	if pid, _ := Holder(path); pid != os.Getpid() {
		t.Errorf("Holder() = %d, want %d", pid, os.Getpid())
	}
}

func TestStaleThresholdUsesClock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(LockPath(path), []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}

	fresh := New(fastOptions())
	if lease, err := fresh.tryAcquire(path); err != nil || lease != nil {
		t.Fatalf("tryAcquire() = %v, %v, want busy", lease, err)
	}

	future := New(fastOptions(), WithClock(func() time.Time { return time.Now().Add(time.Hour) }))
	lease, err := future.tryAcquire(path)
	if err != nil || lease == nil {
		t.Fatalf("tryAcquire() = %v, %v, want acquired", lease, err)
	}
	_ = lease.Release()
}

func TestAcquireMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "state.json")
	_, err := New(fastOptions()).Acquire(context.Background(), path)
	if err == nil {
		t.Fatal("Acquire() error = nil, want error")
	}
	if errors.Is(err, errors.ErrLockTimeout) {
		t.Error("a missing directory should fail immediately, not time out")
	}
}

func TestWithLockReleasesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	locker := New(fastOptions())
	boom := errors.New("boom")

	err := WithLock(context.Background(), locker, path, func() error {
		if _, err := os.Stat(LockPath(path)); err != nil {
			t.Errorf("lock file missing inside critical section: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("WithLock() error = %v, want boom", err)
	}
	if _, err := os.Stat(LockPath(path)); !os.IsNotExist(err) {
		t.Error("lock file should be released after error")
	}
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	locker := New(fastOptions())

	func() {
		defer func() { _ = recover() }()
		_ = WithLock(context.Background(), locker, path, func() error {
			panic("crash")
		})
	}()

	if _, err := os.Stat(LockPath(path)); !os.IsNotExist(err) {
		t.Error("lock file should be released after panic")
	}
}

func TestWithLockSerializes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "counter")
	if err := os.WriteFile(path, []byte("0"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := fastOptions()
	opts.MaxWait = 10 * time.Second

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locker := New(opts)
			errs <- WithLock(context.Background(), locker, path, func() error {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				n, err := strconv.Atoi(string(data))
				if err != nil {
					return err
				}
				time.Sleep(time.Millisecond)
				return os.WriteFile(path, []byte(strconv.Itoa(n+1)), 0o644)
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("WithLock() error = %v", err)
		}
	}

	data, _ := os.ReadFile(path)
	if string(data) != strconv.Itoa(workers) {
		t.Errorf("counter = %s, want %d", data, workers)
	}
}
