package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"elclasico/auth"
	"elclasico/config"
	httpserver "elclasico/http"
	"elclasico/league"
	"elclasico/logger"
	"elclasico/site"
	"elclasico/store"
	"elclasico/ws"

	"github.com/go-kratos/kratos/v2/log"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	cfg := config.Load()
	l := logger.New(os.Stdout, "elclasico", cfg.Debug)
	helper := log.NewHelper(log.With(l, "module", "main"))

	if _, err := maxprocs.Set(maxprocs.Logger(helper.Debugf)); err != nil {
		helper.Warnf("failed to set GOMAXPROCS: %v", err)
	}

	helper.Infow("msg", "starting server", "port", cfg.ServerPort, "store", cfg.StoreDriver)

	db, label, err := openStore(cfg)
	if err != nil {
		helper.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()
	helper.Infof("store ready: %s", label)

	if cfg.JWTSecretRandom {
		helper.Warn("JWT_SECRET is not set; using a random secret, tokens will not survive a restart")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(db, tokens, l)
	if cfg.SuperadminPassword != "" {
		created, err := authService.EnsureSuperadmin(ctx, cfg.SuperadminUsername, cfg.SuperadminPassword)
		if err != nil {
			helper.Fatalf("failed to seed superadmin: %v", err)
		}
		if created {
			helper.Infof("seeded superadmin %q", cfg.SuperadminUsername)
		}
	} else {
		helper.Warn("SUPERADMIN_PASSWORD is not set; no superadmin account will be seeded")
	}

	hub := ws.NewHub(l)
	matches := league.NewMatches(db, hub, l)
	fans := league.NewFans(db, hub, l)
	siteService := site.NewService(db, label, cfg.CacheDir, l)

	server := httpserver.NewServer(ctx, authService, matches, fans, siteService, hub, cfg.CORSOrigins, l)
	srv := server.GetHTTPServer(cfg.ServerPort)

	go func() {
		helper.Infof("listening on http://localhost%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			helper.Fatalf("server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	helper.Info("shutting down gracefully")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		helper.Errorf("server forced to shutdown: %v", err)
	}

	helper.Info("server stopped")
}

// openStore returns the configured store and the label shown in the site
// settings.
func openStore(cfg *config.Config) (store.Store, string, error) {
	switch cfg.StoreDriver {
	case config.DriverJSON:
		s, err := store.NewJSONStore(cfg.DataPath)
		if err != nil {
			return nil, "", err
		}
		return s, fmt.Sprintf("JSON (%s)", cfg.DataPath), nil
	case config.DriverSQLite:
		s, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		return s, fmt.Sprintf("SQLite (%s)", cfg.SQLitePath), nil
	default:
		return nil, "", fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
