package table

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/confreg/internal/clock"
)

func TestPruneKeepsMostRecent(t *testing.T) {
	s := newTestStore(t, Options{})
	base := time.Now().Add(-time.Hour)

	for i := range 13 {
		path := filepath.Join(s.BackupDir(), fmt.Sprintf("backup_%02d.csv", i))
		require.NoError(t, os.WriteFile(path, []byte("ID\n"), 0o640))
		mt := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(path, mt, mt))
	}

	removed, err := s.Prune(10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"backup_00.csv", "backup_01.csv", "backup_02.csv"}, removed)

	snaps, err := s.ListBackups()
	require.NoError(t, err)
	require.Len(t, snaps, 10)
	assert.Equal(t, "backup_12.csv", snaps[0].Name)
	assert.Equal(t, "backup_03.csv", snaps[9].Name)
}

func TestPruneAfterCommit(t *testing.T) {
	s := newTestStore(t, Options{KeepBackups: 3})
	ctx := context.Background()

	for i := range 6 {
		require.NoError(t, s.WriteAll(ctx, []Row{{"ID": fmt.Sprint(i)}}, testSchema))
	}
	assert.Equal(t, 3, countBackups(t, s))
}

func TestBackupCustomName(t *testing.T) {
	s := newTestStore(t, Options{})

	name, err := s.Backup("")
	require.NoError(t, err)
	assert.Empty(t, name, "no table, no snapshot")

	require.NoError(t, s.WriteAll(context.Background(), []Row{{"ID": "a"}}, testSchema))

	name, err = s.Backup("../../before-import")
	require.NoError(t, err)
	assert.Equal(t, "before-import.csv", name)
	assert.FileExists(t, filepath.Join(s.BackupDir(), "before-import.csv"))
}

func TestSnapshotKeepsMetadata(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	require.NoError(t, s.WriteAll(ctx, []Row{{"ID": "a"}}, testSchema))

	require.NoError(t, os.Chmod(s.Path(), 0o600))
	committed := time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(s.Path(), committed, committed))

	name, err := s.Backup("manual")
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(s.BackupDir(), name))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(committed), "mtime = %s", info.ModTime())
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// The pre-commit snapshot carries the previous commit's mtime.
	require.NoError(t, s.WriteAll(ctx, []Row{{"ID": "b"}}, testSchema))
	snaps, err := s.ListBackups()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	for _, snap := range snaps {
		assert.True(t, snap.ModTime.Equal(committed), snap.Name)
	}
}

func TestRestore(t *testing.T) {
	fc := clock.Fake(time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC))
	s := newTestStore(t, Options{Clock: fc})
	ctx := context.Background()

	require.NoError(t, s.WriteAll(ctx, []Row{{"ID": "a", "Name": "Ada"}}, testSchema))
	snap, err := s.Backup("known-good")
	require.NoError(t, err)

	fc.Advance(time.Minute)
	require.NoError(t, s.WriteAll(ctx, []Row{{"ID": "b"}, {"ID": "c"}}, testSchema))

	fc.Advance(time.Minute)
	require.NoError(t, s.Restore(ctx, snap))

	rows, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", rows[0]["Name"])
	assert.FileExists(t, filepath.Join(s.BackupDir(), "pre_restore_20260504120200.csv"))

	assert.ErrorIs(t, s.Restore(ctx, "missing.csv"), ErrNotFound)
}

func TestIOErrorClassification(t *testing.T) {
	err := ioErr("rename", "/x", os.ErrPermission)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.NotErrorIs(t, err, ErrBusy)
}
