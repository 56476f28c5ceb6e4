package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/readyalert/internal/alert"
	"github.com/btouchard/readyalert/internal/api"
	"github.com/btouchard/readyalert/internal/config"
	"github.com/btouchard/readyalert/internal/maintenance"
	readymcp "github.com/btouchard/readyalert/internal/mcp"
	"github.com/btouchard/readyalert/internal/notify"
	"github.com/btouchard/readyalert/internal/pickup"
	"github.com/btouchard/readyalert/internal/push"
	"github.com/btouchard/readyalert/internal/sms"
	"github.com/btouchard/readyalert/internal/store"
	"github.com/btouchard/readyalert/internal/tunnel"
	"github.com/btouchard/readyalert/internal/watch"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "watch":
		cmdWatch(os.Args[2:])
	case "version":
		fmt.Printf("readyalert %s\n", version)
	case "check":
		cmdCheck(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: readyalert <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     Start the ReadyAlert server\n")
	fmt.Fprintf(os.Stderr, "  watch     Alert on new and ready pickups from a running server\n")
	fmt.Fprintf(os.Stderr, "  check     Validate configuration\n")
	fmt.Fprintf(os.Stderr, "  version   Print version\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting readyalert",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"sms_delivery", cfg.SMS.DeliveryMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func cmdWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	serverURL := fs.String("server", "", "readyalert server URL (overrides watch.server_url)")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.Watch.ServerURL = *serverURL
	}

	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	slog.Info("watching for pickups", "server", cfg.Watch.ServerURL)

	w := watch.NewWatcher(
		watch.NewRemoteFeed(cfg.Watch.ServerURL, cfg.Watch.ReconnectDelay),
		watch.NewRemoteSource(cfg.Watch.ServerURL, nil),
		newAlertService(cfg.Alert),
		watchOptions(cfg.Watch),
	)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("watch error", "error", err)
		os.Exit(1)
	}
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if _, err := maintenance.New(cfg.Maintenance, cfg.Server.Location(), nil, nil); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("configuration is valid")
	fmt.Printf("  sms:  configured=%t delivery_mode=%s\n", cfg.SMS.Configured(), cfg.SMS.DeliveryMode)
	fmt.Printf("  push: configured=%t\n", cfg.Push.Configured())
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.Server.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlers := []slog.Handler{
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	}

	if cfg.Server.LogFile != "" {
		f, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			slog.Warn("failed to open log file, using stdout only", "path", cfg.Server.LogFile, "error", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	logger := slog.New(slog.NewMultiHandler(handlers...))
	slog.SetDefault(logger)
}

func newAlertService(cfg config.AlertConfig) *alert.Service {
	return alert.New(alert.Options{
		Out:            os.Stderr,
		Toast:          cfg.Toast,
		Sound:          cfg.Sound,
		DesktopCommand: cfg.DesktopCommand,
		DesktopTimeout: cfg.DesktopTimeout,
	})
}

func watchOptions(cfg config.WatchConfig) watch.Options {
	return watch.Options{
		DedupeRetention:   cfg.DedupeRetention,
		TerminalRetention: cfg.TerminalRetention,
		SignalHold:        cfg.SignalHold,
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	loc := cfg.Server.Location()

	// --- SQLite Store ---
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	slog.Info("database opened", "path", cfg.Database.Path)

	if cfg.Database.SeedDemo {
		if _, err := store.SeedDemoResidents(ctx, db); err != nil {
			return fmt.Errorf("seeding demo residents: %w", err)
		}
	}

	// --- Channels ---
	smsGateway := sms.New(cfg.SMS)
	pushGateway := push.NewGateway(db, push.NewSender(cfg.Push), cfg.Push.Timeout)
	dispatcher := push.NewDispatcher(pushGateway, cfg.Push.MaxConcurrent)
	if !cfg.Push.Configured() {
		slog.Warn("web push disabled: VAPID keys not configured")
	}

	// --- Notifications ---
	hub := notify.NewHub(notify.LogNotifier{})

	// --- Pickup Service ---
	svc := pickup.NewService(db, smsGateway, dispatcher, hub, pickup.Options{
		DemoPhone: cfg.SMS.DemoPhone,
		Location:  loc,
	})

	// --- MCP Server ---
	var mcpHandler http.Handler
	if cfg.MCP.Enabled {
		mcpServer := readymcp.NewServer(&readymcp.Deps{Pickup: svc, Location: loc, Version: version})
		hub.Add(notify.NewMCPNotifier(mcpServer, 0))
		mcpHandler = server.NewStreamableHTTPServer(mcpServer)
	}

	// --- Maintenance ---
	sched, err := maintenance.New(cfg.Maintenance, loc, db, svc)
	if err != nil {
		return fmt.Errorf("maintenance: %w", err)
	}
	sched.Start()
	defer sched.Stop(context.Background())

	// --- HTTP Router ---
	r := api.NewRouter(&api.Deps{
		Pickup:    svc,
		Push:      pushGateway,
		Feed:      db,
		Store:     db,
		PushCfg:   cfg.Push,
		RateLimit: cfg.RateLimit,
		MCP:       mcpHandler,
	})

	// --- HTTP Server ---
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("readyalert is ready", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// --- Tunnel ---
	if cfg.Tunnel.Enabled {
		publicURL, err := tunnel.Serve(ctx, tunnel.NewNgrok(cfg.Tunnel), r)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		slog.Info("public URL available", "url", publicURL)
	}

	// --- Local Watcher ---
	if cfg.Watch.Enabled {
		w := watch.NewWatcher(db, svc, newAlertService(cfg.Alert), watchOptions(cfg.Watch))
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("watcher stopped", "error", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
