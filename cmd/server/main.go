// Package main initializes and starts the content API server,
// setting up configuration, logging, database connections, repositories,
// services, handlers, the notification hub and optional TLS.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/folio/internal/config"
	"github.com/atinyakov/folio/internal/db"
	"github.com/atinyakov/folio/internal/logger"
	"github.com/atinyakov/folio/internal/repository"
	"github.com/atinyakov/folio/internal/server/handler/http"
	"github.com/atinyakov/folio/internal/server/push"
	"github.com/atinyakov/folio/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	// Remove expired sessions.
	db.StartSessionCleaner(ctx, postgresDB, time.Hour, zapLogger)

	// Initialize repositories for accounts and content.
	authRepo := repository.NewPostgresAuthRepository(postgresDB)
	contentRepo := repository.NewPostgresContentRepository(postgresDB)

	// Initialize business-logic services.
	hub := push.NewHub(zapLogger)
	authService := service.NewAuthService(authRepo, options.SessionTTL.Duration)
	contentService := service.NewContentService(contentRepo, hub)

	if options.AdminEmail != "" && options.AdminPassword != "" {
		if err := authService.SeedAdmin(ctx, options.AdminEmail, options.AdminPassword, options.AdminName); err != nil {
			zapLogger.Fatal("cannot seed admin account", zap.Error(err))
		}
		zapLogger.Info("admin account ready", zap.String("email", options.AdminEmail))
	}

	// Create HTTP handlers and build the router.
	authHandler := http.NewAuthHandler(authService, zapLogger)
	contentHandler := &http.ContentHandler{
		Content: contentService,
		Uploads: &http.Uploads{Dir: options.UploadDir},
		Log:     zapLogger,
	}
	router := http.NewRouter(authHandler, contentHandler, hub, authService, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tls := options.TLSCert != ""
		zapLogger.Info("starting server", zap.String("addr", options.Port), zap.Bool("tls", tls))
		var err error
		if tls {
			err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		zapLogger.Info("shutting down server")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
}
