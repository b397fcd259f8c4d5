package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"alliance.fr/admin/internal/area"
	"alliance.fr/admin/internal/auth"
	"alliance.fr/admin/internal/config"
	"alliance.fr/admin/internal/httpapi"
	"alliance.fr/admin/internal/obs"
)

var version = "0.1.0"

func main() {
	configPath := flag.String("config", os.Getenv("AF_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLogger(cfg.Log.Environment, cfg.Log.Level, httpapi.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	signer := auth.NewSigner(cfg.Auth.JWTSecret, auth.WithIssuer(cfg.Auth.Issuer))
	if !signer.Configured() {
		logger.Warn("AF_JWT_SECRET is not set: login and authenticated routes will answer 500")
	}

	// The account store is optional so that health checks and the service table stay
	// reachable while the database is being provisioned.
	var (
		db       *sql.DB
		verifier *auth.Verifier
	)
	if cfg.Database.DSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		verifier = auth.NewVerifier(auth.NewPGStore(db), auth.WithUnifiedErrors(cfg.Auth.UnifyLoginErrors))
	} else {
		logger.Warn("AF_PG_DSN is not set: login is unavailable")
	}

	resolver, err := area.NewResolver(area.DefaultServices)
	if err != nil {
		return fmt.Errorf("build service resolver: %w", err)
	}

	api := httpapi.New(httpapi.Options{
		Version:          version,
		Verifier:         verifier,
		Signer:           signer,
		Resolver:         resolver,
		Ready:            httpapi.ReadyProbe{DB: db},
		Logger:           logger,
		Metrics:          obs.NewMetrics(),
		UnifyLoginErrors: cfg.Auth.UnifyLoginErrors,
		RateBurst:        cfg.RateLimit.Burst,
		RatePerSecond:    cfg.RateLimit.PerSecond,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		MaxBodyBytes:     cfg.Server.MaxBodyBytes,
		TrustedProxies:   cfg.Server.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	ctx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()

	var grpcSrv *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcSrv = grpc.NewServer()
		healthSrv := httpapi.NewHealthServer(httpapi.ReadyProbe{DB: db}, logger)
		healthSrv.Register(grpcSrv)
		go healthSrv.Watch(ctx, 10*time.Second)
		go func() {
			logger.Info("starting grpc health service", zap.String("addr", cfg.Server.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				logger.Error("grpc server stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting alliance-admin-api", zap.String("version", version), zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if grpcSrv != nil {
			grpcSrv.Stop()
		}
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-stop:
	}

	logger.Info("shutting down")
	stopWatch()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}

