// authcenter serves the login and checkToken commands on its bus inbox and,
// when HTTP_ADDR is set, on an HTTP gateway.
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

	"github.com/MrEthical07/authcenter"
	"github.com/MrEthical07/authcenter/bus"
	"github.com/MrEthical07/authcenter/internal/gateway"
	"github.com/MrEthical07/authcenter/internal/settings"
	"github.com/MrEthical07/authcenter/internal/telemetry"
	"github.com/MrEthical07/authcenter/jwt"
	otelexport "github.com/MrEthical07/authcenter/metrics/export/otel"
	"github.com/MrEthical07/authcenter/metrics/export/prometheus"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

const (
	serviceName     = "authcenter"
	assertionTTL    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := settings.Flags(serviceName)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	s, err := settings.Load(flagSet)
	if err != nil {
		return err
	}
	level, _ := s.Level()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     s.RedisAddr,
		Password: s.RedisPassword,
		DB:       s.RedisDB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	var (
		signer   bus.Signer
		verifier bus.Verifier
	)
	if s.AssertionKey != "" {
		key, _ := s.AssertionKeyBytes()
		mgr, err := jwt.NewManager(jwt.Config{
			TTL:            assertionTTL,
			SigningMethod:  jwt.SigningMethod(s.AssertionMethod),
			PrivateKey:     key,
			Subject:        s.ServiceUUID,
			AllowedCallers: s.Callers(),
		})
		if err != nil {
			return fmt.Errorf("assertions: %w", err)
		}
		signer, verifier = mgr, mgr
	}

	callTimeout, _ := s.ParseCallTimeout()
	source := s.ServiceUUID
	if source == "" {
		source = s.Inbox
	}
	registryCaller, err := bus.NewClient(rdb, bus.ClientConfig{
		Prefix:      s.BusPrefix,
		Source:      source,
		CallTimeout: callTimeout,
		Signer:      signer,
	})
	if err != nil {
		return err
	}

	cfg, _ := s.EngineConfig()
	engine, err := authcenter.New().
		WithConfig(cfg).
		WithRegistry(registryCaller).
		WithEndpoints(s.Endpoints()...).
		WithLogger(logger).
		WithAuditSink(authcenter.NewLogSink(logger)).
		Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	tp, err := telemetry.NewProvider(ctx, telemetry.Options{
		Endpoint:    s.OTLPEndpoint,
		ServiceName: serviceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()
	if tp.Exporting {
		exp, err := otelexport.NewOTelExporter(tp.MeterProvider.Meter(serviceName), engine)
		if err != nil {
			return err
		}
		defer func() { _ = exp.Close() }()
	}

	srv, err := bus.NewServer(rdb, bus.ServerConfig{
		Prefix:         s.BusPrefix,
		Endpoint:       s.Inbox,
		Verifier:       verifier,
		Logger:         logger,
		HandlerTimeout: 2 * callTimeout, // login makes two registry calls
	}, engine)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	httpErr := make(chan error, 1)

	var httpSrv *http.Server
	if s.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		httpSrv = &http.Server{
			Addr: s.HTTPAddr,
			Handler: gateway.NewRouter(engine, gateway.Options{
				Metrics: prometheus.NewPrometheusExporter(engine).Handler(),
				Logger:  logger,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- fmt.Errorf("http gateway: %w", err)
			}
		}()
	}

	logger.Info("authcenter started",
		"inbox", s.Inbox,
		"registry", s.Endpoints(),
		"http", s.HTTPAddr,
		"assertions", verifier != nil,
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-httpErr:
		stop()
	}

	if httpSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := httpSrv.Shutdown(sctx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		cancel()
	}
	if err := <-serveErr; err != nil && runErr == nil {
		runErr = err
	}
	logger.Info("authcenter stopped")
	return runErr
}
