// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package uploads stores files that guests attach to their registration,
// one directory per guest.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/olegiv/confreg/internal/util"
)

// DefaultMaxSize is the largest accepted upload.
const DefaultMaxSize int64 = 2 << 20

const tempPrefix = ".upload-"

var (
	// ErrNotFound is returned for missing files and for names outside the
	// principal's directory.
	ErrNotFound = errors.New("uploads: not found")
	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("uploads: file too large")
	// ErrInvalidName is returned for unusable file or principal names.
	ErrInvalidName = errors.New("uploads: invalid name")
)

var principalPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// File describes a stored upload.
type File struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Download is an opened upload ready to be served. Callers close it.
type Download struct {
	*os.File
	Info        File
	ContentType string
}

// Area is the uploads root with one subdirectory per principal.
type Area struct {
	root    string
	maxSize int64
}

// New returns an Area rooted at root, creating it if needed.
func New(root string, maxSize int64) (*Area, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating uploads root: %w", err)
	}
	return &Area{root: root, maxSize: maxSize}, nil
}

// Root returns the uploads root directory.
func (a *Area) Root() string { return a.root }

// MaxSize returns the per-file size limit in bytes.
func (a *Area) MaxSize() int64 { return a.maxSize }

// Save stores src as filename in principal's directory, replacing any file
// with the same name.
func (a *Area) Save(principal, filename string, src io.Reader) (File, error) {
	if !principalPattern.MatchString(principal) {
		return File{}, fmt.Errorf("%w: principal %q", ErrInvalidName, principal)
	}
	name, err := util.BaseName(filename)
	if err != nil || strings.HasPrefix(name, tempPrefix) {
		return File{}, fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}

	dir, err := util.JoinWithin(a.root, principal)
	if err != nil {
		return File{}, fmt.Errorf("%w: principal %q", ErrInvalidName, principal)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return File{}, fmt.Errorf("creating upload directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return File{}, fmt.Errorf("creating upload: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	n, err := io.Copy(tmp, io.LimitReader(src, a.maxSize+1))
	if err != nil {
		cleanup()
		return File{}, fmt.Errorf("writing upload: %w", err)
	}
	if n > a.maxSize {
		cleanup()
		return File{}, ErrTooLarge
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return File{}, fmt.Errorf("closing upload: %w", err)
	}

	dst := filepath.Join(dir, name)
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return File{}, fmt.Errorf("storing upload: %w", err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		return File{}, fmt.Errorf("checking upload: %w", err)
	}
	return File{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// List returns principal's files sorted by name. A principal without a
// directory has no files.
func (a *Area) List(principal string) ([]File, error) {
	if !principalPattern.MatchString(principal) {
		return nil, nil
	}
	entries, err := os.ReadDir(filepath.Join(a.root, principal))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing uploads: %w", err)
	}
	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Open returns principal's file name for reading. Any name that is not a
// plain file directly inside the principal's directory yields ErrNotFound.
func (a *Area) Open(principal, name string) (*Download, error) {
	if !principalPattern.MatchString(principal) {
		return nil, ErrNotFound
	}
	base, err := util.BaseName(name)
	if err != nil || base != name || strings.HasPrefix(base, tempPrefix) {
		return nil, ErrNotFound
	}
	path, err := util.JoinWithin(filepath.Join(a.root, principal), base)
	if err != nil {
		return nil, ErrNotFound
	}

	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, ErrNotFound
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	return &Download{
		File:        f,
		Info:        File{Name: base, Size: info.Size(), ModTime: info.ModTime()},
		ContentType: ContentType(base),
	}, nil
}

// ContentType guesses the media type from the extension, falling back to
// application/octet-stream.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
