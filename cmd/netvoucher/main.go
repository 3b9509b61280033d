package main

//	@title						NetVoucher API
//	@version					0.1.0
//	@description				Hotspot voucher retail platform API.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/HerbHall/netvoucher/internal/auth"
	"github.com/HerbHall/netvoucher/internal/catalog"
	"github.com/HerbHall/netvoucher/internal/config"
	"github.com/HerbHall/netvoucher/internal/devices"
	"github.com/HerbHall/netvoucher/internal/event"
	"github.com/HerbHall/netvoucher/internal/orders"
	"github.com/HerbHall/netvoucher/internal/provision"
	"github.com/HerbHall/netvoucher/internal/registry"
	"github.com/HerbHall/netvoucher/internal/server"
	"github.com/HerbHall/netvoucher/internal/store"
	"github.com/HerbHall/netvoucher/internal/version"
	"github.com/HerbHall/netvoucher/internal/ws"
	"github.com/HerbHall/netvoucher/pkg/plugin"
	"go.uber.org/zap"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Println(version.Info())
			return
		case "hash-password":
			runHashPassword(os.Args[2:])
			return
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.New(viperCfg)

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("NetVoucher server starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	// Open database.
	dbPath := viperCfg.GetString("database.dsn")
	if dbPath == "" {
		dbPath = "./data/netvoucher.db"
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		logger.Fatal("failed to create data directory", zap.Error(err))
	}
	db, err := store.New(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		logger.Fatal("database schema version check failed", zap.Error(err))
	}
	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath),
	)

	// Shared services.
	bus := event.NewBus(logger.Named("event"))
	reg := registry.New(logger.Named("registry"))

	// Register all modules (compile-time composition).
	modules := []plugin.Plugin{
		devices.New(),
		catalog.New(),
		provision.New(),
		orders.New(),
	}
	for _, m := range modules {
		if err := reg.Register(m); err != nil {
			logger.Fatal("failed to register module", zap.Error(err))
		}
	}

	if err := reg.Validate(); err != nil {
		logger.Fatal("module validation failed", zap.Error(err))
	}

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.Sub("modules." + name),
			Logger:  logger.Named(name),
			Store:   db,
			Bus:     bus,
			Plugins: reg,
		}
	}); err != nil {
		logger.Fatal("failed to initialize modules", zap.Error(err))
	}

	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start modules", zap.Error(err))
	}

	// Auth service from config. Without configured operators the API runs
	// open, which is fine on a trusted LAN but gets a loud warning.
	var authRegistrar server.RouteRegistrar
	var tokens *auth.TokenService
	if viperCfg.GetBool("modules.auth.enabled") {
		var authCfg auth.Config
		if err := viperCfg.UnmarshalKey("modules.auth", &authCfg); err != nil {
			logger.Fatal("invalid auth configuration", zap.Error(err))
		}

		secret := authCfg.Secret
		if secret == "" {
			// Ephemeral secret -- tokens won't survive restarts.
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				logger.Fatal("failed to generate JWT secret", zap.Error(err))
			}
			secret = hex.EncodeToString(b)
			logger.Info("using auto-generated JWT secret (set modules.auth.secret in config to persist sessions across restarts)",
				zap.String("component", "auth"),
			)
		}
		ttl := viperCfg.GetDuration("modules.auth.token_ttl")
		if ttl == 0 {
			ttl = 12 * time.Hour
		}
		tokens = auth.NewTokenService([]byte(secret), ttl)

		svc, err := auth.NewService(authCfg, tokens, logger.Named("auth"))
		switch {
		case errors.Is(err, auth.ErrNotConfigured):
			logger.Warn("no operators configured, API authentication is DISABLED",
				zap.String("component", "auth"),
			)
			tokens = nil
		case err != nil:
			logger.Fatal("failed to initialize auth service", zap.Error(err))
		default:
			authRegistrar = auth.NewHandler(svc, logger.Named("auth"))
			logger.Info("auth service initialized",
				zap.String("component", "auth"),
				zap.Duration("token_ttl", ttl),
			)
		}
	}

	// WebSocket event stream for POS frontends and printing stations.
	wsHandler := ws.NewHandler(tokens, bus, logger.Named("ws"))

	// HTTP server.
	addr := viperCfg.GetString("server.host") + ":" + viperCfg.GetString("server.port")
	if addr == ":" {
		addr = "0.0.0.0:8080"
	}
	devMode := viperCfg.GetBool("server.dev_mode")
	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	srv := server.New(addr, reg, logger, readyCheck, authRegistrar, devMode, wsHandler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("NetVoucher server ready", zap.String("addr", addr))

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	reg.StopAll(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("NetVoucher server stopped")
}

// runHashPassword prints a bcrypt hash for an operator entry in the config
// file: netvoucher hash-password <password>
func runHashPassword(args []string) {
	if len(args) != 1 || args[0] == "" {
		fmt.Fprintln(os.Stderr, "usage: netvoucher hash-password <password>")
		os.Exit(2)
	}
	hash, err := auth.HashPassword(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
