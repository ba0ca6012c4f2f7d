// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testPassword = "Conf-admin-2026!"

func minimalEnv() map[string]string {
	return map[string]string{"CONFREG_DEFAULT_ADMIN_PASSWORD": testPassword}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(minimalEnv())
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}

	if cfg.Database.CSVPath != "./data/guests.csv" {
		t.Errorf("CSVPath = %q, want %q", cfg.Database.CSVPath, "./data/guests.csv")
	}
	if cfg.Database.BackupDir != "./data/backups" {
		t.Errorf("BackupDir = %q, want %q", cfg.Database.BackupDir, "./data/backups")
	}
	if cfg.Database.KeepBackups != 10 {
		t.Errorf("KeepBackups = %d, want 10", cfg.Database.KeepBackups)
	}
	if cfg.Database.LockTimeout != 3*time.Second {
		t.Errorf("LockTimeout = %v, want 3s", cfg.Database.LockTimeout)
	}
	if cfg.SessionTTL() != 10*time.Minute {
		t.Errorf("SessionTTL() = %v, want 10m", cfg.SessionTTL())
	}
	if cfg.Security.CookieSecure {
		t.Error("CookieSecure should default to false")
	}
	if cfg.ServerAddr() != "localhost:8080" {
		t.Errorf("ServerAddr() = %q, want %q", cfg.ServerAddr(), "localhost:8080")
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development mode by default")
	}
	if cfg.UploadsDir() != filepath.Join("static", "uploads") {
		t.Errorf("UploadsDir() = %q", cfg.UploadsDir())
	}
	if cfg.SettingsPath() != filepath.Join("data", "settings.json") {
		t.Errorf("SettingsPath() = %q", cfg.SettingsPath())
	}
	if cfg.ActivityLogPath() != filepath.Join("logs", "activity.log") {
		t.Errorf("ActivityLogPath() = %q", cfg.ActivityLogPath())
	}
}

func TestLoadFrom_CustomValues(t *testing.T) {
	environ := minimalEnv()
	environ["CONFREG_DEFAULT_PORT"] = "3000"
	environ["CONFREG_DEFAULT_ENV"] = "production"
	environ["CONFREG_DATABASE_CSV_PATH"] = "/srv/confreg/guests.csv"
	environ["CONFREG_DATABASE_LOCK_TIMEOUT"] = "500ms"
	environ["CONFREG_SECURITY_SESSION_TIMEOUT"] = "1"
	environ["CONFREG_SECURITY_COOKIE_SECURE"] = "true"

	cfg, err := LoadFrom(environ)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.Default.ServerPort != 3000 {
		t.Errorf("ServerPort = %d, want 3000", cfg.Default.ServerPort)
	}
	if cfg.IsDevelopment() {
		t.Error("expected production mode")
	}
	if cfg.Database.CSVPath != "/srv/confreg/guests.csv" {
		t.Errorf("CSVPath = %q", cfg.Database.CSVPath)
	}
	if cfg.Database.LockTimeout != 500*time.Millisecond {
		t.Errorf("LockTimeout = %v, want 500ms", cfg.Database.LockTimeout)
	}
	if cfg.SessionTTL() != time.Minute {
		t.Errorf("SessionTTL() = %v, want 1m", cfg.SessionTTL())
	}
	if !cfg.Security.CookieSecure {
		t.Error("expected CookieSecure = true")
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"missing password", "CONFREG_DEFAULT_ADMIN_PASSWORD", "", "ADMIN_PASSWORD"},
		{"legacy default password", "CONFREG_DEFAULT_ADMIN_PASSWORD", "Magna_code@123", "known default"},
		{"broken hash", "CONFREG_DEFAULT_ADMIN_PASSWORD", "$argon2id$nope", "ADMIN_PASSWORD"},
		{"short secret key", "CONFREG_DEFAULT_SECRET_KEY", "short", "SECRET_KEY"},
		{"bad port", "CONFREG_DEFAULT_PORT", "70000", "PORT"},
		{"zero session timeout", "CONFREG_SECURITY_SESSION_TIMEOUT", "0", "SESSION_TIMEOUT"},
		{"bad country code", "CONFREG_DEFAULT_PHONE_COUNTRY_CODE", "+44", "COUNTRY_CODE"},
		{"negative retention", "CONFREG_DATABASE_KEEP_BACKUPS", "-1", "KEEP_BACKUPS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			environ := minimalEnv()
			if tt.value == "" {
				delete(environ, tt.key)
			} else {
				environ[tt.key] = tt.value
			}
			_, err := LoadFrom(environ)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "confreg.env")
	content := "CONFREG_DEFAULT_ADMIN_PASSWORD=" + testPassword + "\nCONFREG_PATHS_LOGS_DIR=/var/log/confreg\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFREG_DEFAULT_ADMIN_PASSWORD", "")
	t.Setenv("CONFREG_PATHS_LOGS_DIR", "")
	_ = os.Unsetenv("CONFREG_DEFAULT_ADMIN_PASSWORD")
	_ = os.Unsetenv("CONFREG_PATHS_LOGS_DIR")

	if err := LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Paths.LogsDir != "/var/log/confreg" {
		t.Errorf("LogsDir = %q, want /var/log/confreg", cfg.Paths.LogsDir)
	}

	if err := LoadFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	environ := minimalEnv()
	environ["CONFREG_PATHS_DATA_DIR"] = filepath.Join(root, "data")
	environ["CONFREG_PATHS_LOGS_DIR"] = filepath.Join(root, "logs")
	environ["CONFREG_PATHS_STATIC_DIR"] = filepath.Join(root, "static")
	environ["CONFREG_DATABASE_BACKUP_DIR"] = filepath.Join(root, "data", "backups")
	environ["CONFREG_DATABASE_CSV_PATH"] = filepath.Join(root, "db", "guests.csv")
	cfg, err := LoadFrom(environ)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error: %v", err)
	}
	for _, dir := range []string{"data", "logs", "static/uploads", "data/backups", "db"} {
		if info, err := os.Stat(filepath.Join(root, dir)); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s", dir)
		}
	}
}

func TestHasMinimumEntropy(t *testing.T) {
	if hasMinimumEntropy("aaaaaaaa") {
		t.Error("single class accepted")
	}
	if !hasMinimumEntropy("Abc123!x") {
		t.Error("four classes rejected")
	}
}
