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
	"time"

	"github.com/spf13/cobra"

	"github.com/toitware/broker"
	"github.com/toitware/broker/config"
	brokerhttp "github.com/toitware/broker/http"
	"github.com/toitware/broker/local"
	"github.com/toitware/broker/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the broker HTTP server with the configured backend.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8000, "HTTP server port")
	serveCmd.Flags().String("path", "/", "command endpoint path")
	serveCmd.Flags().String("schema", broker.DefaultSchema, "schema qualifying procedure names")
	serveCmd.Flags().String("supabase-url", "", "Supabase project URL (env: SUPABASE_URL)")
	serveCmd.Flags().String("anon-key", "", "anonymous key used without Authorization header (env: SUPABASE_ANON_KEY)")
	serveCmd.Flags().String("public-url", "", "external base URL of this server for public objects")
	serveCmd.Flags().String("procedure-dsn", "", "PostgreSQL DSN holding the procedures (local backend)")
	serveCmd.Flags().String("metrics-addr", "", "metrics listen address (default: :9090)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	handlerConfig := brokerhttp.HandlerConfig{
		Path:        cfg.Server.Path,
		AnonKey:     cfg.Supabase.AnonKey,
		MaxBodySize: cfg.Server.MaxBodySize,
		CORS:        cfg.CORS,
		Health:      b.health,
	}
	if b.public != nil {
		handlerConfig.Public = b.public
		handlerConfig.PublicPrefix = local.PublicPrefix
	}

	if cfg.Metrics.Enabled {
		recorder := metrics.NewRecorder()
		handlerConfig.Observer = recorder
		handlerConfig.Middleware = append(handlerConfig.Middleware, recorder.Middleware)

		metricsServer := metrics.NewServer(cfg.Metrics.Addr, recorder, b.health)
		metricsServer.Start()
		defer metricsServer.Stop()
	}

	gateway := broker.NewGateway(broker.NewRouter(cfg.Gateway.Schema))
	handler := brokerhttp.NewHandler(&handlerConfig, gateway, b.connector)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server",
		"addr", addr,
		"path", cfg.Server.Path,
		"backend", cfg.Backend.Type,
		"schema", cfg.Gateway.Schema,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
