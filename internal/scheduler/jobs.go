// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import "log/slog"

// Job names.
const (
	JobSnapshot     = "table-snapshot"
	JobPrune        = "backup-janitor"
	JobSessionSweep = "session-sweep"
)

// Snapshotter takes and prunes table snapshots.
type Snapshotter interface {
	Backup(customName string) (string, error)
	Prune(keep int) ([]string, error)
}

// Sweeper evicts expired sessions.
type Sweeper interface {
	Sweep() int
}

// SnapshotJob returns a job that snapshots the table and then applies the
// retention policy.
func SnapshotJob(store Snapshotter, keep int, logger *slog.Logger) func() {
	return func() {
		name, err := store.Backup("")
		if err != nil {
			logger.Error("scheduled backup failed", "error", err)
			return
		}
		if name != "" {
			logger.Info("scheduled backup created", "snapshot", name, "category", "admin")
		}
		PruneJob(store, keep, logger)()
	}
}

// PruneJob returns a job that keeps only the keep most recent snapshots.
func PruneJob(store Snapshotter, keep int, logger *slog.Logger) func() {
	return func() {
		removed, err := store.Prune(keep)
		if err != nil {
			logger.Error("backup pruning failed", "error", err)
			return
		}
		if len(removed) > 0 {
			logger.Debug("old backups removed", "count", len(removed))
		}
	}
}

// SweepJob returns a job that drops expired sessions.
func SweepJob(sessions Sweeper, logger *slog.Logger) func() {
	return func() {
		if n := sessions.Sweep(); n > 0 {
			logger.Debug("expired sessions evicted", "count", n)
		}
	}
}
