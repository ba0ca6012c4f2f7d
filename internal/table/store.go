// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package table implements a concurrency-safe store for a single delimited
// text table. Writers serialize through an exclusive lock file, snapshot the
// previous contents and commit by renaming a fully written temporary file
// over the table, so readers only ever see complete files.
package table

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/olegiv/confreg/internal/clock"
)

// Row is one record keyed by column name.
type Row map[string]string

// Clone returns a copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Defaults for Options fields left at zero.
const (
	DefaultLockTimeout = 3 * time.Second
	DefaultLockPoll    = 20 * time.Millisecond
	DefaultReadWait    = time.Second
	DefaultKeepBackups = 10
)

// Options tune the locking protocol and snapshot retention.
type Options struct {
	LockTimeout time.Duration
	LockPoll    time.Duration
	ReadWait    time.Duration
	// StaleAfter is the age at which a lock file is considered abandoned.
	// Zero means LockTimeout; a negative value disables stale lock removal.
	StaleAfter time.Duration
	// KeepBackups is the number of snapshots retained after each commit.
	// Zero means DefaultKeepBackups; a negative value disables pruning.
	KeepBackups int
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Store owns a table file together with its lock, temporary and backup files.
type Store struct {
	path      string
	lockPath  string
	tmpPath   string
	backupDir string
	opts      Options
	logger    *slog.Logger

	// beforeCommit runs while the lock is held, after the temporary file is
	// written and before it is renamed over the table.
	beforeCommit func()
}

// New returns a Store for the table at path, creating the parent and backup
// directories when needed.
func New(path, backupDir string, opts Options) (*Store, error) {
	if path == "" {
		return nil, errors.New("table: empty path")
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.LockPoll <= 0 {
		opts.LockPoll = DefaultLockPoll
	}
	if opts.ReadWait <= 0 {
		opts.ReadWait = DefaultReadWait
	}
	if opts.StaleAfter == 0 {
		opts.StaleAfter = opts.LockTimeout
	}
	if opts.KeepBackups == 0 {
		opts.KeepBackups = DefaultKeepBackups
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, ioErr("mkdir", filepath.Dir(path), err)
	}
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(path), "backups")
	}
	if err := os.MkdirAll(backupDir, 0o750); err != nil {
		return nil, ioErr("mkdir", backupDir, err)
	}

	return &Store{
		path:      path,
		lockPath:  path + ".lock",
		tmpPath:   path + ".tmp",
		backupDir: backupDir,
		opts:      opts,
		logger:    logger.With("table", filepath.Base(path)),
	}, nil
}

// Path returns the table file path.
func (s *Store) Path() string { return s.path }

// BackupDir returns the snapshot directory.
func (s *Store) BackupDir() string { return s.backupDir }

// ReadAll returns every row of the table. A missing table reads as empty.
func (s *Store) ReadAll(ctx context.Context) ([]Row, error) {
	s.waitForWriter(ctx)
	_, rows, err := s.readFile(s.path)
	if errors.Is(err, ErrNotFound) {
		return []Row{}, nil
	}
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}

// Header returns the column names of the current table.
func (s *Store) Header(ctx context.Context) ([]string, error) {
	s.waitForWriter(ctx)
	header, _, err := s.readFile(s.path)
	return header, err
}

// WriteAll replaces the table with rows. When schema is nil the columns are
// the sorted union of row keys; otherwise schema is authoritative.
func (s *Store) WriteAll(ctx context.Context, rows []Row, schema []string) error {
	return s.commit(ctx, "", func() ([]Row, []string, error) {
		return rows, schema, nil
	})
}

// Update reads the table while holding the write lock, passes the rows to fn
// and writes back what fn returns. An error from fn aborts the write and is
// returned unchanged.
func (s *Store) Update(ctx context.Context, fn func(rows []Row) ([]Row, error), schema []string) error {
	return s.commit(ctx, "", func() ([]Row, []string, error) {
		_, rows, err := s.readFile(s.path)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, nil, err
		}
		if rows == nil {
			rows = []Row{}
		}
		next, err := fn(rows)
		if err != nil {
			return nil, nil, err
		}
		return next, schema, nil
	})
}

// commit runs the write protocol: lock, prepare, snapshot, write the
// temporary file, rename over the table, unlock.
func (s *Store) commit(ctx context.Context, snapshotName string, prepare func() ([]Row, []string, error)) (err error) {
	lock, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if s.opts.StaleAfter > 0 {
		lock.keepAlive(s.heartbeatInterval())
	}
	defer func() {
		if relErr := lock.release(); relErr != nil {
			s.logger.Error("failed to release lock", "path", s.lockPath, "error", relErr)
			if err == nil {
				err = ioErr("unlock", s.lockPath, relErr)
			}
		}
	}()

	rows, schema, err := prepare()
	if err != nil {
		return err
	}
	if schema == nil {
		schema = DeriveSchema(rows)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}

	snapshot, err := s.snapshot(snapshotName)
	if err != nil {
		return err
	}

	if !lock.owned() {
		return s.lostLock()
	}
	if err := s.writeTemp(schema, rows); err != nil {
		return err
	}
	if s.beforeCommit != nil {
		s.beforeCommit()
	}
	// The temporary file may now belong to the new holder, so it stays.
	if !lock.owned() {
		return s.lostLock()
	}
	if err := os.Rename(s.tmpPath, s.path); err != nil {
		_ = os.Remove(s.tmpPath)
		return ioErr("rename", s.path, err)
	}
	syncDir(filepath.Dir(s.path))

	s.logger.Debug("table committed", "rows", len(rows), "snapshot", snapshot)
	if s.opts.KeepBackups > 0 && snapshot != "" {
		if _, err := s.Prune(s.opts.KeepBackups); err != nil {
			s.logger.Warn("backup pruning failed", "error", err)
		}
	}
	return nil
}

func (s *Store) lostLock() error {
	s.logger.Warn("lock taken over by another writer, write abandoned", "path", s.lockPath)
	return fmt.Errorf("%w: lock on %s was taken over", ErrBusy, filepath.Base(s.path))
}

func (s *Store) writeTemp(schema []string, rows []Row) error {
	f, err := os.OpenFile(s.tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return ioErr("create", s.tmpPath, err)
	}
	if err := Encode(f, schema, rows); err != nil {
		_ = f.Close()
		_ = os.Remove(s.tmpPath)
		return ioErr("write", s.tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(s.tmpPath)
		return ioErr("sync", s.tmpPath, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(s.tmpPath)
		return ioErr("close", s.tmpPath, err)
	}
	return nil
}

func (s *Store) readFile(path string) ([]string, []Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return nil, nil, ioErr("open", path, err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
