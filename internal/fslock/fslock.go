// Package fslock provides non-blocking advisory file locks via
// flock(2), used to keep two sessions from editing the same page file.
//
// flock is advisory and applies to an inode, not a pathname: all
// cooperating processes must take the lock for it to have effect, and
// the lock file must stay stable on disk (do not replace or unlink it
// while locks may be held).
//
// Unix-only.
package fslock

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock is returned by TryLock when another process holds the
// lock.
var ErrWouldBlock = errors.New("fslock: lock would block")

// Lock is a held file lock. Release it with [Lock.Close].
type Lock struct {
	mu   sync.Mutex
	file *os.File
}

// TryLock acquires an exclusive lock on the file at path without
// blocking, creating the file if needed. Returns ErrWouldBlock if the
// lock is held elsewhere.
func TryLock(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lockfile: %w", err)
	}

	err = flockRetryEINTR(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		_ = file.Close()

		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return nil, ErrWouldBlock
		}

		return nil, fmt.Errorf("flock: %w", err)
	}

	return &Lock{file: file}, nil
}

// Close releases the lock and closes the underlying descriptor. It is
// idempotent; subsequent calls return nil.
//
// Closing a descriptor releases its flock anyway, so an explicit
// unlock failure followed by a successful close still releases the
// lock in practice. If both fail, the returned error wraps both.
func (l *Lock) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	unlockErr := flockRetryEINTR(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil {
		unlockErr = fmt.Errorf("unlocking lock: %w", unlockErr)
	}

	if closeErr != nil {
		closeErr = fmt.Errorf("closing lock fd: %w", closeErr)
	}

	return errors.Join(unlockErr, closeErr)
}

// flockRetryEINTR wraps flock, retrying when a signal interrupts the
// call. Retries are capped so a pathological signal storm cannot spin
// forever.
func flockRetryEINTR(fd int, how int) error {
	const maxEINTRRetries = 10000

	var err error
	for range maxEINTRRetries {
		err = unix.Flock(fd, how)
		if err == nil || !errors.Is(err, unix.EINTR) {
			return err
		}
	}

	return err
}
