// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package table

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupPrefix     = "backup_"
	preRestorePrefix = "pre_restore_"
	backupExt        = ".csv"
	stampLayout      = "20060102150405"
)

// Snapshot describes one file in the backup directory.
type Snapshot struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Backup copies the current table into the backup directory. An empty
// customName produces backup_<YYYYMMDDHHMMSS>.csv. It returns the snapshot
// name, or "" when there is no table to copy.
func (s *Store) Backup(customName string) (string, error) {
	if customName != "" {
		name, err := cleanSnapshotName(customName)
		if err != nil {
			return "", err
		}
		customName = name
	}
	return s.snapshot(customName)
}

// snapshot copies the table to name (or a timestamped name) without
// overwriting an existing snapshot. The copy keeps the table's mode and
// mtime, so a snapshot is dated by the commit that produced its contents.
func (s *Store) snapshot(name string) (string, error) {
	src, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", ioErr("open", s.path, err)
	}
	defer func() { _ = src.Close() }()
	info, err := src.Stat()
	if err != nil {
		return "", ioErr("stat", s.path, err)
	}

	if name == "" {
		name = backupPrefix + s.opts.Clock.Now().Format(stampLayout) + backupExt
	}
	dst, finalName, err := createUnique(s.backupDir, name)
	if err != nil {
		return "", ioErr("create", filepath.Join(s.backupDir, name), err)
	}
	dstPath := filepath.Join(s.backupDir, finalName)

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dstPath)
		return "", ioErr("copy", dstPath, err)
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		_ = os.Remove(dstPath)
		return "", ioErr("sync", dstPath, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dstPath)
		return "", ioErr("close", dstPath, err)
	}
	if err := os.Chmod(dstPath, info.Mode().Perm()); err != nil {
		s.logger.Warn("could not copy table mode to snapshot", "snapshot", finalName, "error", err)
	}
	if err := os.Chtimes(dstPath, info.ModTime(), info.ModTime()); err != nil {
		s.logger.Warn("could not copy table mtime to snapshot", "snapshot", finalName, "error", err)
	}
	return finalName, nil
}

// createUnique opens dir/name exclusively, appending _1, _2 and so on to the
// stem when the name is taken.
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) || i > 1000 {
			return nil, "", err
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
}

// ListBackups returns snapshots newest first by modification time.
func (s *Store) ListBackups() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ioErr("readdir", s.backupDir, err)
	}

	snapshots := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), backupExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, Snapshot{
			Name:    e.Name(),
			Path:    filepath.Join(s.backupDir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].ModTime.Equal(snapshots[j].ModTime) {
			return snapshots[i].Name > snapshots[j].Name
		}
		return snapshots[i].ModTime.After(snapshots[j].ModTime)
	})
	return snapshots, nil
}

// Prune keeps the keep most recent snapshots and removes the rest, returning
// the names removed. A keep of zero or less removes nothing.
func (s *Store) Prune(keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	snapshots, err := s.ListBackups()
	if err != nil {
		return nil, err
	}
	if len(snapshots) <= keep {
		return nil, nil
	}

	var removed []string
	var errs []error
	for _, snap := range snapshots[keep:] {
		if err := os.Remove(snap.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, ioErr("remove", snap.Path, err))
			continue
		}
		removed = append(removed, snap.Name)
	}
	if len(removed) > 0 {
		s.logger.Info("pruned backups", "removed", len(removed), "kept", keep)
	}
	return removed, errors.Join(errs...)
}

// Restore replaces the table with the contents of the named snapshot. The
// state being replaced is kept as pre_restore_<YYYYMMDDHHMMSS>.csv.
func (s *Store) Restore(ctx context.Context, name string) error {
	clean, err := cleanSnapshotName(name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(s.backupDir, clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: snapshot %s", ErrNotFound, clean)
		}
		return ioErr("read", filepath.Join(s.backupDir, clean), err)
	}
	header, rows, err := Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if header == nil {
		header = []string{}
	}

	preName := preRestorePrefix + s.opts.Clock.Now().Format(stampLayout) + backupExt
	err = s.commit(ctx, preName, func() ([]Row, []string, error) {
		return rows, header, nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("table restored", "snapshot", clean, "rows", len(rows))
	return nil
}

// cleanSnapshotName reduces name to a base name with the .csv extension.
func cleanSnapshotName(name string) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" || base == ".." {
		return "", fmt.Errorf("%w: invalid snapshot name %q", ErrNotFound, name)
	}
	if !strings.HasSuffix(base, backupExt) {
		base += backupExt
	}
	return base, nil
}
