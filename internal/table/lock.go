// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package table

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// heldLock is an acquired advisory lock file.
type heldLock struct {
	path string
	info os.FileInfo

	stop chan struct{}
	done chan struct{}
}

// acquireLock creates the lock file exclusively, retrying every LockPoll
// until LockTimeout elapses or ctx is done. Locks older than StaleAfter are
// broken and the attempt is retried immediately.
func (s *Store) acquireLock(ctx context.Context) (*heldLock, error) {
	deadline := time.Now().Add(s.opts.LockTimeout)
	for {
		lock, err := s.tryLock()
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, ioErr("lock", s.lockPath, err)
		}
		if s.breakStaleLock() {
			continue
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: lock held longer than %s", ErrBusy, s.opts.LockTimeout)
		}

		timer := time.NewTimer(s.opts.LockPoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
		case <-timer.C:
		}
	}
}

func (s *Store) tryLock() (*heldLock, error) {
	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	host, _ := os.Hostname()
	_, _ = fmt.Fprintf(f, "pid=%d host=%s at=%s\n", os.Getpid(), host, time.Now().UTC().Format(time.RFC3339))
	info, statErr := f.Stat()
	if closeErr := f.Close(); closeErr != nil && statErr == nil {
		statErr = closeErr
	}
	if statErr != nil {
		_ = os.Remove(s.lockPath)
		return nil, statErr
	}
	return &heldLock{path: s.lockPath, info: info}, nil
}

// owned reports whether the lock file on disk is still the one this holder
// created.
func (l *heldLock) owned() bool {
	current, err := os.Stat(l.path)
	return err == nil && os.SameFile(current, l.info)
}

// keepAlive refreshes the lock mtime every interval until release, so that
// only the lock of a writer that died goes stale.
func (l *heldLock) keepAlive(interval time.Duration) {
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-l.stop:
				return
			case now := <-ticker.C:
				if l.owned() {
					_ = os.Chtimes(l.path, now, now)
				}
			}
		}
	}()
}

// release stops the heartbeat and removes the lock file if it is still the
// one this holder created. A lock taken over by another writer is left alone.
func (l *heldLock) release() error {
	if l.stop != nil {
		close(l.stop)
		<-l.done
		l.stop = nil
	}
	if !l.owned() {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// breakStaleLock removes a lock file whose mtime is older than StaleAfter.
// The file is examined twice and removed only if it is the same file with
// the same mtime both times; a refreshed or replaced lock is left in place.
func (s *Store) breakStaleLock() bool {
	if s.opts.StaleAfter <= 0 {
		return false
	}
	info, err := os.Stat(s.lockPath)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	age := time.Since(info.ModTime())
	if age < s.opts.StaleAfter {
		return false
	}

	current, err := os.Stat(s.lockPath)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	if !os.SameFile(info, current) || !current.ModTime().Equal(info.ModTime()) {
		return false
	}
	if err := os.Remove(s.lockPath); err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	s.logger.Warn("removed stale lock", "path", s.lockPath, "age", age.Round(time.Millisecond).String())
	return true
}

// heartbeatInterval is how often a held lock is touched.
func (s *Store) heartbeatInterval() time.Duration {
	return max(s.opts.StaleAfter/4, time.Millisecond)
}

// waitForWriter polls for the lock file for at most ReadWait. Readers proceed
// regardless afterwards since the commit rename keeps the table consistent.
func (s *Store) waitForWriter(ctx context.Context) {
	deadline := time.Now().Add(s.opts.ReadWait)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(s.lockPath); errors.Is(err, fs.ErrNotExist) {
			return
		}
		timer := time.NewTimer(s.opts.LockPoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
