// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package settings persists conference branding and feature flags in a
// JSON document.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrUnknownField is returned by Update for keys outside the closed key set.
var ErrUnknownField = errors.New("settings: unknown field")

// Settings is the conference configuration shown on every page.
type Settings struct {
	Name                     string `json:"name"`
	Dates                    string `json:"dates"`
	ContactName              string `json:"contact_name"`
	ContactEmail             string `json:"contact_email"`
	Location                 string `json:"location"`
	Tagline                  string `json:"tagline"`
	ChairpersonName          string `json:"chairperson_name"`
	ChairpersonPhone         string `json:"chairperson_phone"`
	SecretaryName            string `json:"secretary_name"`
	SecretaryPhone           string `json:"secretary_phone"`
	ScientificChairName      string `json:"scientific_chair_name"`
	ScientificChairPhone     string `json:"scientific_chair_phone"`
	ShowChairpersonPhone     bool   `json:"show_chairperson_phone"`
	ShowSecretaryPhone       bool   `json:"show_secretary_phone"`
	ShowScientificChairPhone bool   `json:"show_scientific_chair_phone"`
	RegistrationOpen         bool   `json:"registration_open"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{Name: "Conference", RegistrationOpen: true}
}

// field binds a JSON key to its struct member.
type field struct {
	key  string
	text func(*Settings) *string
	flag func(*Settings) *bool
}

var fields = []field{
	{key: "name", text: func(s *Settings) *string { return &s.Name }},
	{key: "dates", text: func(s *Settings) *string { return &s.Dates }},
	{key: "contact_name", text: func(s *Settings) *string { return &s.ContactName }},
	{key: "contact_email", text: func(s *Settings) *string { return &s.ContactEmail }},
	{key: "location", text: func(s *Settings) *string { return &s.Location }},
	{key: "tagline", text: func(s *Settings) *string { return &s.Tagline }},
	{key: "chairperson_name", text: func(s *Settings) *string { return &s.ChairpersonName }},
	{key: "chairperson_phone", text: func(s *Settings) *string { return &s.ChairpersonPhone }},
	{key: "secretary_name", text: func(s *Settings) *string { return &s.SecretaryName }},
	{key: "secretary_phone", text: func(s *Settings) *string { return &s.SecretaryPhone }},
	{key: "scientific_chair_name", text: func(s *Settings) *string { return &s.ScientificChairName }},
	{key: "scientific_chair_phone", text: func(s *Settings) *string { return &s.ScientificChairPhone }},
	{key: "show_chairperson_phone", flag: func(s *Settings) *bool { return &s.ShowChairpersonPhone }},
	{key: "show_secretary_phone", flag: func(s *Settings) *bool { return &s.ShowSecretaryPhone }},
	{key: "show_scientific_chair_phone", flag: func(s *Settings) *bool { return &s.ShowScientificChairPhone }},
	{key: "registration_open", flag: func(s *Settings) *bool { return &s.RegistrationOpen }},
}

func lookup(key string) (field, bool) {
	for _, f := range fields {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}

// Keys returns every settings key in display order.
func Keys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// IsFlag reports whether key holds a boolean.
func IsFlag(key string) bool {
	f, ok := lookup(key)
	return ok && f.flag != nil
}

// ParseBool accepts 1, true, yes and on in any case as true.
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Store reads and writes the settings file, caching the decoded document
// until the file's modification time or size changes.
type Store struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	cache *Settings
	mtime time.Time
	size  int64
}

// Open returns a Store for path, writing the defaults if the file is missing.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating settings directory: %w", err)
	}
	s := &Store{path: path, logger: logger}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := s.write(Defaults()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Get returns the defaults merged with the persisted values.
func (s *Store) Get() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Update sets the given keys and persists the result. Boolean keys are
// coerced with ParseBool. Unknown keys fail the whole update.
func (s *Store) Update(values map[string]string) (Settings, error) {
	for key := range values {
		if _, ok := lookup(key); !ok {
			return Settings{}, fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		return Settings{}, err
	}
	for key, value := range values {
		f, _ := lookup(key)
		if f.flag != nil {
			*f.flag(&current) = ParseBool(value)
		} else {
			*f.text(&current) = strings.TrimSpace(value)
		}
	}
	if err := s.write(current); err != nil {
		return Settings{}, err
	}
	s.logger.Info("settings updated", "keys", len(values), "category", "admin")
	return current, nil
}

// load returns the cached settings, re-reading the file when it changed.
// Callers hold s.mu.
func (s *Store) load() (Settings, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.write(Defaults()); err != nil {
			return Settings{}, err
		}
		return *s.cache, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("checking settings file: %w", err)
	}
	if s.cache != nil && info.ModTime().Equal(s.mtime) && info.Size() == s.size {
		return *s.cache, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}
	merged, err := decode(data)
	if err != nil {
		// Unreadable file: serve defaults without caching so a fixed file is picked up.
		s.logger.Error("failed reading settings", "path", s.path, "error", err)
		return Defaults(), nil
	}
	s.cache, s.mtime, s.size = &merged, info.ModTime(), info.Size()
	return merged, nil
}

// decode merges the persisted document onto Defaults. Booleans stored as
// strings are coerced and unknown keys are ignored.
func decode(data []byte) (Settings, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Settings{}, err
	}
	out := Defaults()
	for key, value := range raw {
		f, ok := lookup(key)
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case bool:
			if f.flag != nil {
				*f.flag(&out) = v
			} else {
				*f.text(&out) = fmt.Sprint(v)
			}
		case string:
			if f.flag != nil {
				*f.flag(&out) = ParseBool(v)
			} else {
				*f.text(&out) = v
			}
		case float64:
			if f.flag != nil {
				*f.flag(&out) = v != 0
			} else {
				*f.text(&out) = fmt.Sprint(v)
			}
		}
	}
	return out, nil
}

// write persists st via a temporary file and rename, then refreshes the cache.
func (s *Store) write(st Settings) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o640); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing settings: %w", err)
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("checking settings file: %w", err)
	}
	s.cache, s.mtime, s.size = &st, info.ModTime(), info.Size()
	return nil
}
