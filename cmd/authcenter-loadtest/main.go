// authcenter-loadtest drives concurrent login and checkToken calls through the
// bus against an in-process engine and in-memory registry.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcenter"
	"github.com/MrEthical07/authcenter/bus"
	"github.com/MrEthical07/authcenter/registry/memregistry"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

const (
	registryInbox = "loadtest-registry"
	engineInbox   = "loadtest-authcenter"
)

type userState struct {
	phone    string
	password string
	mu       sync.Mutex
	token    string
}

func main() {
	var (
		users       = pflag.Int("users", 1000, "number of users to seed")
		concurrency = pflag.Int("concurrency", 64, "number of concurrent workers")
		ops         = pflag.Int("ops", 20000, "operations per phase (login + checkToken)")
		redisAddr   = pflag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = pflag.String("prefix", "loadtest", "bus key prefix")
	)
	pflag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := memregistry.New()
	states := make([]userState, *users)
	for i := range states {
		states[i].phone = fmt.Sprintf("139%08d", i)
		states[i].password = fmt.Sprintf("pw-%d", i)
		uuid := fmt.Sprintf("00000000-0000-4000-8000-%012d", i)
		if err := reg.PutUser(uuid, authcenter.DefaultUserTypeID, states[i].phone, states[i].password); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}

	registryCaller, err := bus.NewClient(client, bus.ClientConfig{Prefix: *prefix, Source: engineInbox})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bus client: %v\n", err)
		os.Exit(1)
	}
	cfg := authcenter.DefaultConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	engine, err := authcenter.New().
		WithConfig(cfg).
		WithRegistry(registryCaller).
		WithEndpoints(registryInbox).
		WithLogger(quiet).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	var served sync.WaitGroup
	for endpoint, h := range map[string]bus.Handler{registryInbox: reg, engineInbox: engine} {
		srv, err := bus.NewServer(client, bus.ServerConfig{
			Prefix:       *prefix,
			Endpoint:     endpoint,
			PollInterval: 200 * time.Millisecond,
			Logger:       quiet,
		}, h)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bus server: %v\n", err)
			os.Exit(1)
		}
		served.Add(1)
		go func() {
			defer served.Done()
			_ = srv.Serve(ctx)
		}()
	}
	defer served.Wait()
	defer cancel()

	caller, err := bus.NewClient(client, bus.ClientConfig{Prefix: *prefix, Source: "loadtest"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bus client: %v\n", err)
		os.Exit(1)
	}

	loginStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		state := &states[r.Intn(len(states))]
		resp, err := caller.Call(ctx, engineInbox, bus.Payload{
			CmdName:    authcenter.CommandLogin,
			Parameters: map[string]any{"userName": state.phone, "password": state.password},
		})
		if err != nil {
			return err
		}
		if !resp.OK() {
			return fmt.Errorf("login: %d %s", resp.RetCode, resp.Description)
		}
		var data struct {
			Token string `cbor:"token"`
		}
		if err := resp.DecodeData(&data); err != nil {
			return err
		}
		state.mu.Lock()
		state.token = data.Token
		state.mu.Unlock()
		return nil
	})

	checkStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) error {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		token := state.token
		state.mu.Unlock()
		if token == "" {
			return nil
		}
		resp, err := caller.Call(ctx, engineInbox, bus.Payload{
			CmdName:    authcenter.CommandCheckToken,
			Parameters: map[string]any{"token": token},
		})
		if err != nil {
			return err
		}
		// a concurrent login may have replaced the stored token
		if !resp.OK() && resp.RetCode != authcenter.CodeInvalidToken {
			return fmt.Errorf("checkToken: %d %s", resp.RetCode, resp.Description)
		}
		return nil
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("checkToken", checkStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine: login_success=%d token_valid=%d token_invalid=%d\n",
		snap.Counters[authcenter.MetricLoginSuccess],
		snap.Counters[authcenter.MetricTokenValid],
		snap.Counters[authcenter.MetricTokenInvalid],
	)
}

func runPhase(ops, concurrency int, seed int64, op func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
