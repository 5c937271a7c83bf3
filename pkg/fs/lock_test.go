package fs_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/calvinalkan/pageindex/pkg/fs"
)

func Test_Locker_TryLock_Returns_ErrWouldBlock_When_Path_Is_Locked(t *testing.T) {
	t.Parallel()

	locker := fs.NewLocker(fs.NewReal())
	path := filepath.Join(t.TempDir(), "index.db.lock")

	lock1, err := locker.TryLock(path)
	if err != nil {
		t.Fatalf("TryLock(%q): %v", path, err)
	}

	t.Cleanup(func() { _ = lock1.Close() })

	lock2, err := locker.TryLock(path)
	if !errors.Is(err, fs.ErrWouldBlock) {
		t.Fatalf("TryLock while locked: err=%v, want %v", err, fs.ErrWouldBlock)
	}

	if lock2 != nil {
		_ = lock2.Close()

		t.Fatal("TryLock while locked returned a lock")
	}

	err = lock1.Close()
	if err != nil {
		t.Fatalf("Close(): %v", err)
	}

	err = lock1.Close()
	if err != nil {
		t.Fatalf("second Close(): %v", err)
	}

	lock3, err := locker.TryLock(path)
	if err != nil {
		t.Fatalf("TryLock after release: %v", err)
	}

	err = lock3.Close()
	if err != nil {
		t.Fatalf("Close(): %v", err)
	}
}

func Test_Locker_Lock_Returns_ErrWouldBlock_When_Context_Expires(t *testing.T) {
	t.Parallel()

	locker := fs.NewLocker(fs.NewReal())
	path := filepath.Join(t.TempDir(), "nested", "dir", "lock")

	held, err := locker.Lock(t.Context(), path)
	if err != nil {
		t.Fatalf("Lock(%q): %v", path, err)
	}

	defer func() { _ = held.Close() }()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, path)
	if !errors.Is(err, fs.ErrWouldBlock) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Lock while held: err=%v, want ErrWouldBlock and DeadlineExceeded", err)
	}
}

func Test_Locker_Lock_Acquires_When_Holder_Releases(t *testing.T) {
	t.Parallel()

	locker := fs.NewLocker(fs.NewReal())
	path := filepath.Join(t.TempDir(), "lock")

	held, err := locker.Lock(t.Context(), path)
	if err != nil {
		t.Fatalf("Lock(%q): %v", path, err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)

		_ = held.Close()
	}()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	lock, err := locker.Lock(ctx, path)
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}

	err = lock.Close()
	if err != nil {
		t.Fatalf("Close(): %v", err)
	}
}
