package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/runcap-labs/runcap-go/internal/platform/auditlog"
	"github.com/runcap-labs/runcap-go/internal/platform/auth"
	"github.com/runcap-labs/runcap-go/internal/platform/env"
	"github.com/runcap-labs/runcap-go/internal/platform/httpserver"
	"github.com/runcap-labs/runcap-go/internal/platform/objectstore"
	"github.com/runcap-labs/runcap-go/internal/platform/postgres"
	pgrepo "github.com/runcap-labs/runcap-go/internal/repo/postgres"
	"github.com/runcap-labs/runcap-go/internal/service/provenance"
	store "github.com/runcap-labs/runcap-go/internal/storage/objectstore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("PROVENANCE_HTTP_ADDR", ":8086")
	shutdownTimeout, err := env.Duration("PROVENANCE_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	minioClient, err := objectstore.NewMinIOClient(storeCfg)
	if err != nil {
		logger.Error("object store unavailable", "error", err)
		os.Exit(1)
	}
	if err := objectstore.EnsureBuckets(ctx, minioClient, storeCfg); err != nil {
		logger.Error("ensure buckets", "error", err)
		os.Exit(1)
	}
	recordStore, err := store.NewMinioStore(minioClient)
	if err != nil {
		logger.Error("object store init", "error", err)
		os.Exit(1)
	}

	runRepo := pgrepo.NewRunStore(db)
	invocationRepo := pgrepo.NewInvocationStore(db)
	svc, err := provenance.New(runRepo, invocationRepo, recordStore, storeCfg.BucketRecords)
	if err != nil {
		logger.Error("service init", "error", err)
		os.Exit(2)
	}

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	authenticator, err := buildAuthenticator(ctx, authCfg)
	if err != nil {
		logger.Error("auth init", "error", err)
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("provenance"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"provenance",
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
			httpserver.ReadinessCheck{
				Name: "records-bucket",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
					defer cancel()
					return objectstore.CheckBuckets(checkCtx, minioClient, storeCfg)
				},
			},
		),
	)

	api := newProvenanceAPI(logger, db, svc)
	api.register(mux)

	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: authenticator,
		Authorize:     auth.MethodRoleAuthorizer(),
		Audit: func(ctx context.Context, event auth.DenyEvent) error {
			auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return auditlog.InsertAuthDeny(auditCtx, db, "provenance", event)
		},
		SkipPrefixes: []string{"/healthz", "/readyz"},
	}.Wrap(mux)

	cfg := httpserver.Config{
		Service:         "provenance",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "provenance", handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func buildAuthenticator(ctx context.Context, cfg auth.Config) (auth.Authenticator, error) {
	switch cfg.Mode {
	case auth.ModeOIDC:
		return auth.NewOIDCAuthenticator(ctx, cfg)
	case auth.ModeHeaders:
		return auth.NewGatewayHeadersAuthenticator(cfg.InternalSecret)
	case auth.ModeDev, auth.ModeDisabled:
		return auth.NewDevAuthenticator(cfg), nil
	default:
		return nil, errors.New("unsupported auth mode")
	}
}
