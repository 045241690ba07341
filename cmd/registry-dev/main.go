// registry-dev serves an in-memory device registry on the bus so authcenter
// can run without a real device manager.
//
// Records come from --seed-file (a JSON array of device documents). Without a
// seed file one demo user is stored:
//
//	uuid        5f0c1d2e-0000-4000-8000-0000000000aa
//	phoneNumber 13800000000
//	password    demo-password
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/authcenter/bus"
	"github.com/MrEthical07/authcenter/internal/settings"
	"github.com/MrEthical07/authcenter/registry/memregistry"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

const (
	demoUUID     = "5f0c1d2e-0000-4000-8000-0000000000aa"
	demoPhone    = "13800000000"
	demoPassword = "demo-password"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := settings.Flags("registry-dev")
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

	endpoints := s.Endpoints()
	if len(endpoints) == 0 {
		return errors.New("registry-dev: REGISTRY_ENDPOINTS must name at least one inbox")
	}

	reg := memregistry.New()
	if s.SeedFile != "" {
		f, err := os.Open(s.SeedFile)
		if err != nil {
			return err
		}
		n, err := reg.Load(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		logger.Info("seed loaded", "file", s.SeedFile, "records", n)
	} else {
		if err := reg.PutUser(demoUUID, s.UserTypeID, demoPhone, demoPassword); err != nil {
			return err
		}
		logger.Info("demo user stored", "uuid", demoUUID, "phoneNumber", demoPhone)
	}

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

	// every candidate inbox is served by the same store
	errCh := make(chan error, len(endpoints))
	for _, endpoint := range endpoints {
		srv, err := bus.NewServer(rdb, bus.ServerConfig{
			Prefix:   s.BusPrefix,
			Endpoint: endpoint,
			Logger:   logger,
		}, reg)
		if err != nil {
			return err
		}
		go func() { errCh <- srv.Serve(ctx) }()
	}

	var firstErr error
	for range endpoints {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			stop()
		}
	}
	return firstErr
}
