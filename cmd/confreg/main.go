// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olegiv/confreg/internal/auth"
	"github.com/olegiv/confreg/internal/clock"
	"github.com/olegiv/confreg/internal/config"
	"github.com/olegiv/confreg/internal/guest"
	"github.com/olegiv/confreg/internal/handler"
	"github.com/olegiv/confreg/internal/logging"
	"github.com/olegiv/confreg/internal/middleware"
	"github.com/olegiv/confreg/internal/render"
	"github.com/olegiv/confreg/internal/scheduler"
	"github.com/olegiv/confreg/internal/session"
	"github.com/olegiv/confreg/internal/settings"
	"github.com/olegiv/confreg/internal/table"
	"github.com/olegiv/confreg/internal/uploads"
	"github.com/olegiv/confreg/internal/version"
	"github.com/olegiv/confreg/web"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	configFile := flag.String("config", "confreg.env", "Dotenv file to seed the environment from")
	hashPassword := flag.Bool("hash-password", false, "Read a password from stdin and print its argon2id hash")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "confreg - conference registration server\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CONFREG_DEFAULT_ADMIN_PASSWORD   Admin password or argon2id hash (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CONFREG_DEFAULT_SECRET_KEY       CSRF key, min 32 bytes (random when unset)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CONFREG_DEFAULT_PORT             Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CONFREG_DATABASE_CSV_PATH        Guest table (default: ./data/guests.csv)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  CONFREG_DATABASE_BACKUP_SCHEDULE Cron spec for snapshots (default: @hourly)\n")
	}
	flag.Parse()

	if *showVersion {
		_, _ = fmt.Println(version.Get().String())
		os.Exit(0)
	}
	if *hashPassword {
		if err := printHash(); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(*configFile); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// printHash reads one line from stdin and writes its argon2id encoding.
func printHash() error {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("empty password")
	}
	encoded, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, _ = fmt.Println(encoded)
	return nil
}

func run(configFile string) error {
	if err := config.LoadFile(configFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	switch cfg.Default.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	activityLog, err := logging.OpenActivityLog(cfg.ActivityLogPath())
	if err != nil {
		return err
	}
	defer func() { _ = activityLog.Close() }()
	logger := slog.New(logging.NewActivityHandler(textHandler, activityLog))
	slog.SetDefault(logger)

	info := version.Get()
	slog.Info("starting confreg", "version", info.Version, "commit", info.GitCommit, "env", cfg.Default.Env)

	clk := clock.Real()
	store, err := table.New(cfg.Database.CSVPath, cfg.Database.BackupDir, table.Options{
		LockTimeout: cfg.Database.LockTimeout,
		KeepBackups: cfg.Database.KeepBackups,
		Clock:       clk,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("opening guest table: %w", err)
	}
	guests := guest.NewRepository(store, guest.Options{
		CountryCode: cfg.Default.PhoneCountryCode,
		Clock:       clk,
		Logger:      logger,
	})

	conf, err := settings.Open(cfg.SettingsPath(), logger)
	if err != nil {
		return fmt.Errorf("opening settings: %w", err)
	}
	area, err := uploads.New(cfg.UploadsDir(), cfg.Security.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("opening uploads: %w", err)
	}
	admin, err := auth.NewAdminSecret(cfg.Default.AdminPassword)
	if err != nil {
		return fmt.Errorf("admin password: %w", err)
	}

	sessions := session.NewRegistry(cfg.SessionTTL(), clk)
	flash := session.NewFlashManager(cfg.Security.CookieSecure)

	templates, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	renderer, err := render.New(render.Config{TemplatesFS: templates, Flash: flash})
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}
	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("loading static files: %w", err)
	}

	lpCfg := middleware.DefaultLoginProtectionConfig()
	lpCfg.MaxFailedAttempts = cfg.Security.MaxLoginAttempts
	loginProtection := middleware.NewLoginProtection(lpCfg)
	defer loginProtection.Stop()

	sched := scheduler.New(logger)
	if spec := cfg.Database.BackupSchedule; spec != "" {
		if err := sched.Add("snapshot", "Snapshot the guest table", spec,
			scheduler.SnapshotJob(store, cfg.Database.KeepBackups, logger)); err != nil {
			return err
		}
	}
	if err := sched.Add("prune", "Apply backup retention", "@daily",
		scheduler.PruneJob(store, cfg.Database.KeepBackups, logger)); err != nil {
		return err
	}
	if err := sched.Add("sweep", "Evict expired sessions", "* * * * *",
		scheduler.SweepJob(sessions, logger)); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	csrfKey, err := csrfKey(cfg.Default.SecretKey)
	if err != nil {
		return err
	}

	h := handler.NewRouter(handler.Deps{
		Guests:          guests,
		Settings:        conf,
		Sessions:        sessions,
		Cookie:          session.NewCookie(cfg.SessionTTL(), cfg.Security.CookieSecure),
		Uploads:         area,
		Admin:           admin,
		Renderer:        renderer,
		Flash:           flash,
		LoginProtection: loginProtection,
		Scheduler:       sched,
		KeepBackups:     cfg.Database.KeepBackups,
		Static:          static,
		Middleware: []func(http.Handler) http.Handler{
			middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.Security.CookieSecure)),
			middleware.CSRF(middleware.DefaultCSRFConfig(csrfKey, cfg.IsDevelopment(), cfg.ServerAddr())),
		},
		RequestTimeout: 30 * time.Second,
		AccessLog:      true,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // uploads
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Default.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// csrfKey returns the configured key, or a random one valid for this
// process only.
func csrfKey(configured string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating CSRF key: %w", err)
	}
	slog.Warn("no secret key configured, tokens will not survive a restart")
	return key, nil
}
