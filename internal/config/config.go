// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads confreg settings from the environment, optionally
// seeded from a dotenv file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/olegiv/confreg/internal/auth"
)

// Prefix is prepended to every environment variable name.
const Prefix = "CONFREG_"

// knownWeakSecrets contains shipped example passwords that must never guard a deployment.
var knownWeakSecrets = []string{
	"Magna_code@123",
	"admin",
	"password",
	"changeme",
}

// MinSecretKeyLength is the minimum length for an explicitly configured secret key.
const MinSecretKeyLength = 32

// Config holds the application configuration, grouped by section.
type Config struct {
	Default  DefaultSection  `envPrefix:"DEFAULT_"`
	Database DatabaseSection `envPrefix:"DATABASE_"`
	Paths    PathsSection    `envPrefix:"PATHS_"`
	Security SecuritySection `envPrefix:"SECURITY_"`
}

// DefaultSection holds server and credential settings.
type DefaultSection struct {
	AdminPassword string `env:"ADMIN_PASSWORD,required"` // plain text or $argon2id$ hash
	SecretKey     string `env:"SECRET_KEY"`              // CSRF key; random per process when empty
	Env           string `env:"ENV" envDefault:"development"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	ServerHost    string `env:"HOST" envDefault:"localhost"`
	ServerPort    int    `env:"PORT" envDefault:"8080"`
	// PhoneCountryCode is the home country calling code used to fold
	// "+CC ..." numbers into national form. Empty disables folding.
	PhoneCountryCode string `env:"PHONE_COUNTRY_CODE" envDefault:"44"`
}

// DatabaseSection configures the guest table.
type DatabaseSection struct {
	CSVPath        string        `env:"CSV_PATH" envDefault:"./data/guests.csv"`
	BackupDir      string        `env:"BACKUP_DIR" envDefault:"./data/backups"`
	KeepBackups    int           `env:"KEEP_BACKUPS" envDefault:"10"`
	LockTimeout    time.Duration `env:"LOCK_TIMEOUT" envDefault:"3s"`
	BackupSchedule string        `env:"BACKUP_SCHEDULE" envDefault:"@hourly"` // cron spec, empty disables
}

// PathsSection configures on-disk locations.
type PathsSection struct {
	StaticDir string `env:"STATIC_DIR" envDefault:"./static"`
	LogsDir   string `env:"LOGS_DIR" envDefault:"./logs"`
	DataDir   string `env:"DATA_DIR" envDefault:"./data"`
}

// SecuritySection configures sessions and abuse limits.
type SecuritySection struct {
	SessionTimeout   int   `env:"SESSION_TIMEOUT" envDefault:"10"` // minutes
	CookieSecure     bool  `env:"COOKIE_SECURE" envDefault:"false"`
	MaxLoginAttempts int   `env:"MAX_LOGIN_ATTEMPTS" envDefault:"5"`
	MaxUploadBytes   int64 `env:"MAX_UPLOAD_BYTES" envDefault:"2097152"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Default.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Default.ServerHost, c.Default.ServerPort)
}

// SessionTTL returns the session lifetime.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Security.SessionTimeout) * time.Minute
}

// SettingsPath returns the location of the conference settings document.
func (c Config) SettingsPath() string {
	return filepath.Join(c.Paths.DataDir, "settings.json")
}

// UploadsDir returns the root of the per-guest upload directories.
func (c Config) UploadsDir() string {
	return filepath.Join(c.Paths.StaticDir, "uploads")
}

// ActivityLogPath returns the activity log file location.
func (c Config) ActivityLogPath() string {
	return filepath.Join(c.Paths.LogsDir, "activity.log")
}

// LoadFile seeds the process environment from a dotenv file. Variables that
// are already set win. A missing file is not an error.
func LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load parses the process environment and returns a validated Config.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses environ instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	pw := c.Default.AdminPassword
	for _, weak := range knownWeakSecrets {
		if pw == weak {
			return fmt.Errorf("%sDEFAULT_ADMIN_PASSWORD is a known default value and must not be used", Prefix)
		}
	}
	if auth.IsHash(pw) {
		if _, err := auth.NewAdminSecret(pw); err != nil {
			return fmt.Errorf("%sDEFAULT_ADMIN_PASSWORD: %w", Prefix, err)
		}
	} else if !hasMinimumEntropy(pw) {
		slog.Warn(Prefix + "DEFAULT_ADMIN_PASSWORD has low character diversity; " +
			"consider a longer passphrase or an argon2id hash (confreg -hash-password)")
	}

	if c.Default.SecretKey != "" && len(c.Default.SecretKey) < MinSecretKeyLength {
		return fmt.Errorf("%sDEFAULT_SECRET_KEY must be at least %d bytes long, got %d bytes; "+
			"generate one with: openssl rand -base64 32",
			Prefix, MinSecretKeyLength, len(c.Default.SecretKey))
	}
	if c.Default.ServerPort < 1 || c.Default.ServerPort > 65535 {
		return fmt.Errorf("%sDEFAULT_PORT out of range: %d", Prefix, c.Default.ServerPort)
	}
	if strings.Trim(c.Default.PhoneCountryCode, "0123456789") != "" {
		return fmt.Errorf("%sDEFAULT_PHONE_COUNTRY_CODE must contain digits only, got %q", Prefix, c.Default.PhoneCountryCode)
	}
	if c.Security.SessionTimeout < 1 {
		return fmt.Errorf("%sSECURITY_SESSION_TIMEOUT must be at least 1 minute", Prefix)
	}
	if c.Database.LockTimeout <= 0 {
		return fmt.Errorf("%sDATABASE_LOCK_TIMEOUT must be positive", Prefix)
	}
	if c.Database.KeepBackups < 0 {
		return fmt.Errorf("%sDATABASE_KEEP_BACKUPS must not be negative", Prefix)
	}
	if c.Security.MaxUploadBytes <= 0 {
		return fmt.Errorf("%sSECURITY_MAX_UPLOAD_BYTES must be positive", Prefix)
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}

// EnsureDirs creates every configured directory.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogsDir, c.UploadsDir(), c.Database.BackupDir, filepath.Dir(c.Database.CSVPath)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
