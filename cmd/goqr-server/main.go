// Command goqr-server runs the QR login handshake over HTTP.
//
// Configuration comes from GOQR_* environment variables, optionally loaded
// from a .env file. GOQR_QR_SALT and GOQR_JWT_SECRET are required. Without
// GOQR_REDIS_ADDR the server uses an embedded miniredis.
//
// Endpoints:
//
//	POST /login                       device password login, returns a bearer token
//	GET  /qr/generate                 QR for the default route
//	GET  /qr/confirm?code_hash=       confirm on the default route
//	GET  /qr/status?code_hash=        poll from the generating client
//	GET  /qr/{route}/generate|confirm|status
//	GET  /metrics                     Prometheus
//	GET  /healthz
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	rdb, closeRedis, err := connectRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	a, err := newApp(cfg, rdb, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", slog.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
