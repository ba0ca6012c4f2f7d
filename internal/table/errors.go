// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package table

import (
	"errors"
	"fmt"
)

// Error kinds returned by Store. Use errors.Is to test for them.
var (
	// ErrNotFound is returned when a named table or snapshot does not exist.
	ErrNotFound = errors.New("table: not found")
	// ErrBusy is returned when the write lock could not be acquired in time.
	ErrBusy = errors.New("table: busy")
	// ErrCorrupt is returned when the file cannot be parsed as a header plus rows.
	ErrCorrupt = errors.New("table: corrupt")
	// ErrIO matches every *IOError.
	ErrIO = errors.New("table: i/o failure")
)

// IOError describes a filesystem failure during a store operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("table: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is reports ErrIO as a match so callers can classify without errors.As.
func (e *IOError) Is(target error) bool { return target == ErrIO }

func ioErr(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}
