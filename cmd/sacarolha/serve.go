package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/sacarolha/sacarolha/internal/config"
	"github.com/sacarolha/sacarolha/internal/server"
	"github.com/sacarolha/sacarolha/pkg/identity"
	"github.com/sacarolha/sacarolha/pkg/labels"
	"github.com/sacarolha/sacarolha/pkg/middleware"
	"github.com/sacarolha/sacarolha/pkg/wine"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the application server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// Fail fast on a bad identity config instead of on the first visitor.
	if _, err := identity.New(cfg.Identity); err != nil {
		return err
	}

	// One identity client per live connection: the client's current-user
	// state is a single visitor's session and must never be shared.
	newProvider := func(ctx context.Context) (server.Provider, error) {
		client, err := identity.New(cfg.Identity, identity.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	wines, err := wine.NewMongoStore(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer wines.Close(context.Background())

	labelStore, err := newLabelStore(ctx, cfg.Labels)
	if err != nil {
		return err
	}

	metrics := middleware.NewMetrics()

	srv := server.New(cfg, newProvider, wines, labelStore,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithHealthcheck(wines.Healthcheck()),
	)

	err = srv.ListenAndServe(ctx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// newLabelStore picks S3 when a bucket is configured, local disk
// otherwise.
func newLabelStore(ctx context.Context, cfg config.Labels) (labels.Store, error) {
	if cfg.S3Bucket == "" {
		return labels.NewDiskStore(cfg.Dir, cfg.MaxSize)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg)

	store := labels.NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix, cfg.MaxSize)
	if cfg.S3BaseURL != "" {
		store = store.WithPublicBaseURL(cfg.S3BaseURL)
	}
	return store, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
