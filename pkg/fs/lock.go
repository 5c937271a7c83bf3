package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrWouldBlock is returned when a lock is held elsewhere: immediately by
	// [Locker.TryLock], and after the context is done by [Locker.Lock].
	ErrWouldBlock = errors.New("lock would block")

	// errInodeMismatch means the lock file was replaced between open and
	// flock. Callers retry.
	errInodeMismatch = errors.New("inode mismatch")
)

// Locker takes advisory flock(2) locks on dedicated lock files.
//
// flock applies to an open file description, not a pathname: two opens of
// the same lock file conflict even within one process. After locking,
// Locker verifies that the locked descriptor still refers to the file at
// path, so a lock file replaced during acquisition is retried instead of
// silently guarding a dead inode.
//
// This implementation is Unix-only.
type Locker struct {
	fs    FS
	flock func(fd int, how int) error
}

// NewLocker creates a Locker that opens lock files through fs.
func NewLocker(fs FS) *Locker {
	return &Locker{fs: fs, flock: unix.Flock}
}

// Lock is a held file lock. Call [Lock.Close] to release it.
type Lock struct {
	mu    sync.Mutex
	file  File
	flock func(fd int, how int) error
}

// Close releases the lock and closes the descriptor. Idempotent.
func (lk *Lock) Close() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	if lk.file == nil {
		return nil
	}

	fd := int(lk.file.Fd())

	unlockErr := flockRetryEINTR(lk.flock, fd, unix.LOCK_UN)
	closeErr := lk.file.Close()
	lk.file = nil

	if unlockErr != nil {
		unlockErr = fmt.Errorf("unlocking lock: %w", unlockErr)
	}

	if closeErr != nil {
		closeErr = fmt.Errorf("closing lock fd: %w", closeErr)
	}

	return errors.Join(unlockErr, closeErr)
}

// TryLock takes an exclusive lock on path without waiting. Returns
// [ErrWouldBlock] when another descriptor holds it.
func (l *Locker) TryLock(path string) (*Lock, error) {
	lk, err := l.try(path)
	if errors.Is(err, errInodeMismatch) {
		return nil, fmt.Errorf("%w: lock file was replaced while acquiring lock", ErrWouldBlock)
	}

	return lk, err
}

// Lock takes an exclusive lock on path, polling with backoff (1ms up to
// 25ms) until it succeeds or ctx is done. A done context yields an error
// matching both [ErrWouldBlock] and the context's error.
//
// The lock file and its parent directories are created when missing.
func (l *Locker) Lock(ctx context.Context, path string) (*Lock, error) {
	backoff := time.Millisecond

	for {
		lk, err := l.try(path)
		if err == nil {
			return lk, nil
		}

		if !errors.Is(err, ErrWouldBlock) && !errors.Is(err, errInodeMismatch) {
			return nil, err
		}

		timer := time.NewTimer(backoff)

		select {
		case <-ctx.Done():
			timer.Stop()

			return nil, fmt.Errorf("%w: %s: %w", ErrWouldBlock, path, ctx.Err())
		case <-timer.C:
		}

		backoff = min(backoff*2, 25*time.Millisecond)
	}
}

func (l *Locker) try(path string) (*Lock, error) {
	file, err := l.openLockFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening lockfile: %w", err)
	}

	fd := int(file.Fd())

	err = flockRetryEINTR(l.flock, fd, unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		_ = file.Close()

		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return nil, ErrWouldBlock
		}

		return nil, fmt.Errorf("flock: %w", err)
	}

	match, err := sameInode(fd, path)
	if err != nil || !match {
		_ = flockRetryEINTR(l.flock, fd, unix.LOCK_UN)
		_ = file.Close()

		if err != nil && !errors.Is(err, unix.ENOENT) {
			return nil, fmt.Errorf("verifying inode match: %w", err)
		}

		return nil, errInodeMismatch
	}

	return &Lock{file: file, flock: l.flock}, nil
}

const (
	lockFilePerm = 0o600
	lockDirPerm  = 0o755
)

func (l *Locker) openLockFile(path string) (File, error) {
	f, err := l.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, lockFilePerm)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return f, err
	}

	err = l.fs.MkdirAll(filepath.Dir(path), lockDirPerm)
	if err != nil {
		return nil, err
	}

	return l.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, lockFilePerm)
}

// sameInode compares (dev, inode) of the locked descriptor with the file
// currently at path.
func sameInode(fd int, path string) (bool, error) {
	var open, current unix.Stat_t

	err := unix.Fstat(fd, &open)
	if err != nil {
		return false, err
	}

	err = unix.Stat(path, &current)
	if err != nil {
		return false, err
	}

	return open.Dev == current.Dev && open.Ino == current.Ino, nil
}

// flockRetryEINTR retries flock when a signal interrupted it. The cap only
// guards against pathological signal storms.
func flockRetryEINTR(flock func(fd int, how int) error, fd int, how int) error {
	const maxEINTRRetries = 10000

	var err error
	for range maxEINTRRetries {
		err = flock(fd, how)
		if err == nil || !errors.Is(err, unix.EINTR) {
			return err
		}
	}

	return err
}
