// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util holds small helpers shared by the HTTP and storage layers:
// filename hygiene, confined path joins and request metadata summaries.
package util

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a joined path would leave its base directory.
var ErrPathEscape = errors.New("path escapes base directory")

// BaseName reduces a client supplied filename to its final element.
// Both slash styles are treated as separators since browsers on Windows
// send full paths.
func BaseName(filename string) (string, error) {
	name := strings.TrimSpace(filename)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("invalid filename: %q", filename)
	}
	return name, nil
}

// WithinBase reports whether target resolves inside base. A target equal
// to base counts as inside.
func WithinBase(base, target string) error {
	absBase, err := filepath.Abs(filepath.Clean(base))
	if err != nil {
		return fmt.Errorf("invalid base path: %w", err)
	}
	absTarget, err := filepath.Abs(filepath.Clean(target))
	if err != nil {
		return fmt.Errorf("invalid target path: %w", err)
	}
	// Trailing separator so /uploads/ab does not match /uploads/abc.
	if absTarget != absBase && !strings.HasPrefix(absTarget, absBase+string(filepath.Separator)) {
		return ErrPathEscape
	}
	return nil
}

// JoinWithin joins parts onto base and fails with ErrPathEscape if the
// result is outside base.
func JoinWithin(base string, parts ...string) (string, error) {
	full := filepath.Join(append([]string{base}, parts...)...)
	if err := WithinBase(base, full); err != nil {
		return "", err
	}
	return full, nil
}
