package authcenter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcenter/bus"
	"github.com/MrEthical07/authcenter/registry"
	"github.com/MrEthical07/authcenter/registry/memregistry"
)

const testUserType = DefaultUserTypeID

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.UnixMilli(1_760_000_000_000)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T, caller registry.Caller, clock *testClock) *Engine {
	t.Helper()

	engine, err := New().
		WithRegistry(caller).
		WithEndpoints("registry-a").
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func seededRegistry(t *testing.T) *memregistry.Registry {
	t.Helper()

	reg := memregistry.New()
	users := []struct{ uuid, phone, password string }{
		{"5f0c1d2e-0000-4000-8000-000000000001", "13800000001", "secret-1"},
		{"5f0c1d2e-0000-4000-8000-000000000002", "13800000002", "secret-2"},
	}
	for _, u := range users {
		if err := reg.PutUser(u.uuid, testUserType, u.phone, u.password); err != nil {
			t.Fatalf("PutUser failed: %v", err)
		}
	}
	// same phone number under a non-user category must never match
	if err := reg.Put(map[string]any{
		"uuid":  "5f0c1d2e-0000-4000-8000-0000000000ff",
		"type":  map[string]any{"id": "070B00000000"},
		"extra": map[string]any{"phoneNumber": "13800000009", "password": "secret-9"},
	}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	return reg
}

func call(t *testing.T, engine *Engine, cmd string, msg map[string]any) Result {
	t.Helper()

	var (
		replies int
		got     Result
	)
	engine.Handle(context.Background(), cmd, msg, func(r Result) {
		replies++
		got = r
	})
	if replies != 1 {
		t.Fatalf("expected exactly one reply, got %d", replies)
	}
	return got
}

func login(t *testing.T, engine *Engine, user, password string) string {
	t.Helper()

	res := call(t, engine, CommandLogin, map[string]any{"userName": user, "password": password})
	if res.RetCode != CodeSuccess {
		t.Fatalf("login failed: %d %s", res.RetCode, res.Description)
	}
	token, _ := res.Data["token"].(string)
	return token
}

func TestLoginIssuesTokenForMatchingRecord(t *testing.T) {
	reg := seededRegistry(t)
	clock := newTestClock()
	engine := newTestEngine(t, reg, clock)

	tests := []struct {
		phone, password, uuid string
	}{
		{"13800000001", "secret-1", "5f0c1d2e-0000-4000-8000-000000000001"},
		{"13800000002", "secret-2", "5f0c1d2e-0000-4000-8000-000000000002"},
	}

	for _, tc := range tests {
		t.Run(tc.phone, func(t *testing.T) {
			res := call(t, engine, CommandLogin, map[string]any{"userName": tc.phone, "password": tc.password})
			if res.RetCode != CodeSuccess || res.Description != "Success." {
				t.Fatalf("unexpected result %+v", res)
			}
			token, _ := res.Data["token"].(string)
			if !strings.HasPrefix(token, tc.uuid+"_") {
				t.Fatalf("token %q does not start with %s_", token, tc.uuid)
			}

			dev, _ := reg.Device(tc.uuid)
			if dev.Extra.AuthToken == nil {
				t.Fatal("expected stored authToken")
			}
			if tc.uuid+"_"+dev.Extra.AuthToken.Token != token {
				t.Fatalf("stored token %q does not match issued %q", dev.Extra.AuthToken.Token, token)
			}
			if dev.Extra.AuthToken.Timestamp != clock.Now().UnixMilli() {
				t.Fatalf("expected timestamp %d, got %d", clock.Now().UnixMilli(), dev.Extra.AuthToken.Timestamp)
			}
		})
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	reg := seededRegistry(t)
	if err := reg.Put(map[string]any{
		"uuid":  "5f0c1d2e-0000-4000-8000-000000000003",
		"type":  map[string]any{"id": testUserType},
		"extra": map[string]any{"phoneNumber": "13800000003"},
	}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := reg.Put(map[string]any{
		"uuid":  "5f0c1d2e-0000-4000-8000-000000000004",
		"type":  map[string]any{"id": testUserType},
		"extra": map[string]any{"phoneNumber": "13800000004", "password": 123456},
	}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	engine := newTestEngine(t, reg, newTestClock())

	tests := []struct {
		name, user, password string
	}{
		{"unknown user", "13899999999", "secret-1"},
		{"wrong password", "13800000001", "secret-2"},
		{"case differs", "13800000001", "SECRET-1"},
		{"record without password", "13800000003", ""},
		{"non-string stored password", "13800000004", "123456"},
		{"other category", "13800000009", "secret-9"},
		{"empty strings", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg.ResetCalls()
			res := call(t, engine, CommandLogin, map[string]any{"userName": tc.user, "password": tc.password})
			if res.RetCode != CodeInvalidCredentials {
				t.Fatalf("expected %d, got %d", CodeInvalidCredentials, res.RetCode)
			}
			if _, ok := res.Data["token"]; ok {
				t.Fatal("no token may be returned on failure")
			}
			if reg.Calls(registry.CmdDeviceUpdate) != 0 {
				t.Fatal("failed login must not update the registry")
			}
		})
	}
}

func TestFreshTokenPassesWithoutUpdate(t *testing.T) {
	reg := seededRegistry(t)
	clock := newTestClock()
	engine := newTestEngine(t, reg, clock)

	token := login(t, engine, "13800000001", "secret-1")
	reg.ResetCalls()

	res := call(t, engine, CommandCheckToken, map[string]any{"token": token})
	if res.RetCode != CodeSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Data["uuid"] != "5f0c1d2e-0000-4000-8000-000000000001" {
		t.Fatalf("unexpected data %+v", res.Data)
	}
	if reg.Calls(registry.CmdGetDevice) != 1 || reg.Calls(registry.CmdDeviceUpdate) != 0 {
		t.Fatalf("expected one lookup and no update, got %d/%d",
			reg.Calls(registry.CmdGetDevice), reg.Calls(registry.CmdDeviceUpdate))
	}
}

func TestExpiredTokenFails(t *testing.T) {
	reg := seededRegistry(t)
	clock := newTestClock()
	engine := newTestEngine(t, reg, clock)

	token := login(t, engine, "13800000001", "secret-1")
	clock.Advance(DefaultTokenTTL + time.Millisecond)

	tests := []struct {
		name, token string
	}{
		{"matching value", token},
		{"mismatching value", strings.SplitN(token, "_", 2)[0] + "_not-the-token"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg.ResetCalls()
			res := call(t, engine, CommandCheckToken, map[string]any{"token": tc.token})
			if res.RetCode != CodeInvalidToken {
				t.Fatalf("expected %d, got %d", CodeInvalidToken, res.RetCode)
			}
			if reg.Calls(registry.CmdDeviceUpdate) != 0 {
				t.Fatal("expired token must not be refreshed")
			}
		})
	}

	if _, err := engine.CheckToken(context.Background(), token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenPastThresholdIsRefreshed(t *testing.T) {
	reg := seededRegistry(t)
	clock := newTestClock()
	engine := newTestEngine(t, reg, clock)
	const uuid = "5f0c1d2e-0000-4000-8000-000000000001"

	token := login(t, engine, "13800000001", "secret-1")
	before, _ := reg.Device(uuid)
	clock.Advance(25 * 24 * time.Hour)
	reg.ResetCalls()

	res := call(t, engine, CommandCheckToken, map[string]any{"token": token})
	if res.RetCode != CodeSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if got := reg.Calls(registry.CmdDeviceUpdate); got != 1 {
		t.Fatalf("expected exactly one update, got %d", got)
	}

	after, _ := reg.Device(uuid)
	if after.Extra.AuthToken.Timestamp != clock.Now().UnixMilli() {
		t.Fatalf("expected timestamp %d, got %d", clock.Now().UnixMilli(), after.Extra.AuthToken.Timestamp)
	}
	if after.Extra.AuthToken.Token != before.Extra.AuthToken.Token {
		t.Fatal("refresh must keep the token value")
	}
	if after.Extra.Password == nil || *after.Extra.Password != "secret-1" {
		t.Fatal("refresh must not touch other fields")
	}

	// the slid timestamp keeps the token alive past the original TTL
	clock.Advance(10 * 24 * time.Hour)
	if res := call(t, engine, CommandCheckToken, map[string]any{"token": token}); res.RetCode != CodeSuccess {
		t.Fatalf("expected refreshed token to stay valid, got %d", res.RetCode)
	}
}

func TestRefreshFailureStillSucceeds(t *testing.T) {
	reg := seededRegistry(t)
	clock := newTestClock()
	engine := newTestEngine(t, reg, clock)
	const uuid = "5f0c1d2e-0000-4000-8000-000000000001"

	token := login(t, engine, "13800000001", "secret-1")
	before, _ := reg.Device(uuid)
	clock.Advance(21 * 24 * time.Hour)
	reg.ResetCalls()
	reg.FailNext(registry.CmdDeviceUpdate, 500, "Storage offline.")

	res := call(t, engine, CommandCheckToken, map[string]any{"token": token})
	if res.RetCode != CodeSuccess {
		t.Fatalf("refresh failure must not fail the check, got %+v", res)
	}
	if got := reg.Calls(registry.CmdDeviceUpdate); got != 1 {
		t.Fatalf("expected exactly one update attempt, got %d", got)
	}
	after, _ := reg.Device(uuid)
	if after.Extra.AuthToken.Timestamp != before.Extra.AuthToken.Timestamp {
		t.Fatal("failed refresh must leave the timestamp unchanged")
	}
	if engine.MetricsSnapshot().Counters[MetricTokenRefreshFailed] != 1 {
		t.Fatal("expected refresh failure to be counted")
	}
}

func TestMalformedAndUnknownTokens(t *testing.T) {
	reg := seededRegistry(t)
	engine := newTestEngine(t, reg, newTestClock())
	_ = login(t, engine, "13800000001", "secret-1")

	for uuid, authToken := range map[string]any{
		"5f0c1d2e-0000-4000-8000-0000000000a1": "garbage",
		"5f0c1d2e-0000-4000-8000-0000000000a2": map[string]any{"token": 7, "timestamp": int64(1_760_000_000_000)},
		"5f0c1d2e-0000-4000-8000-0000000000a3": map[string]any{"token": "abc", "timestamp": "yesterday"},
	} {
		if err := reg.Put(map[string]any{
			"uuid":  uuid,
			"type":  map[string]any{"id": testUserType},
			"extra": map[string]any{"phoneNumber": uuid, "password": "pw", "authToken": authToken},
		}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	tests := []struct {
		name        string
		token       string
		wantLookups int
	}{
		{"no separator", "5f0c1d2e00004000800000000000000001", 0},
		{"empty", "", 0},
		{"two separators", "a_b_c", 0},
		{"empty random part", "5f0c1d2e-0000-4000-8000-000000000001_", 0},
		{"value mismatch", "5f0c1d2e-0000-4000-8000-000000000001_00000000-0000-4000-8000-000000000000", 1},
		{"unknown record", "5f0c1d2e-0000-4000-8000-00000000dead_00000000-0000-4000-8000-000000000000", 1},
		{"record without token", "5f0c1d2e-0000-4000-8000-000000000002_00000000-0000-4000-8000-000000000000", 1},
		{"stored token is a string", "5f0c1d2e-0000-4000-8000-0000000000a1_garbage", 1},
		{"stored token value not a string", "5f0c1d2e-0000-4000-8000-0000000000a2_7", 1},
		{"stored timestamp not a number", "5f0c1d2e-0000-4000-8000-0000000000a3_abc", 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg.ResetCalls()
			res := call(t, engine, CommandCheckToken, map[string]any{"token": tc.token})
			if res.RetCode != CodeInvalidToken {
				t.Fatalf("expected %d, got %d", CodeInvalidToken, res.RetCode)
			}
			if got := reg.Calls(registry.CmdGetDevice); got != tc.wantLookups {
				t.Fatalf("expected %d lookups, got %d", tc.wantLookups, got)
			}
			if reg.Calls(registry.CmdDeviceUpdate) != 0 {
				t.Fatal("rejected token must not update the registry")
			}
		})
	}
}

func TestConcurrentLoginsLastWriteWins(t *testing.T) {
	reg := seededRegistry(t)
	engine := newTestEngine(t, reg, newTestClock())
	const uuid = "5f0c1d2e-0000-4000-8000-000000000001"

	const n = 8
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := engine.Login(context.Background(), "13800000001", "secret-1")
			if err != nil {
				t.Errorf("login %d failed: %v", i, err)
				return
			}
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, tok := range tokens {
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}

	dev, _ := reg.Device(uuid)
	stored := uuid + "_" + dev.Extra.AuthToken.Token
	if !seen[stored] {
		t.Fatalf("stored token %q was never issued", stored)
	}

	valid := 0
	for _, tok := range tokens {
		if _, err := engine.CheckToken(context.Background(), tok); err == nil {
			valid++
		}
	}
	if valid != 1 {
		t.Fatalf("expected exactly one surviving token, got %d", valid)
	}
}

func TestRegistryErrorsPassThrough(t *testing.T) {
	reg := seededRegistry(t)
	engine := newTestEngine(t, reg, newTestClock())
	token := login(t, engine, "13800000001", "secret-1")

	t.Run("login lookup reply", func(t *testing.T) {
		reg.FailNext(registry.CmdGetDevice, 503001, "Device manager busy.")
		res := call(t, engine, CommandLogin, map[string]any{"userName": "13800000001", "password": "secret-1"})
		if res.RetCode != 503001 || res.Description != "Device manager busy." {
			t.Fatalf("expected verbatim registry reply, got %+v", res)
		}
	})

	t.Run("login update reply", func(t *testing.T) {
		reg.FailNext(registry.CmdDeviceUpdate, 409002, "Write conflict.")
		res := call(t, engine, CommandLogin, map[string]any{"userName": "13800000001", "password": "secret-1"})
		if res.RetCode != 409002 || res.Description != "Write conflict." {
			t.Fatalf("expected verbatim registry reply, got %+v", res)
		}
		if _, ok := res.Data["token"]; ok {
			t.Fatal("no token may be returned when persisting fails")
		}
	})

	t.Run("check lookup reply", func(t *testing.T) {
		reg.FailNext(registry.CmdGetDevice, 503001, "Device manager busy.")
		res := call(t, engine, CommandCheckToken, map[string]any{"token": token})
		if res.RetCode != 503001 || res.Description != "Device manager busy." {
			t.Fatalf("expected verbatim registry reply, got %+v", res)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		reg.BreakNext(registry.CmdGetDevice, bus.ErrCallTimeout)
		res := call(t, engine, CommandCheckToken, map[string]any{"token": token})
		if res.RetCode != CodeRegistryUnavailable {
			t.Fatalf("expected %d, got %d", CodeRegistryUnavailable, res.RetCode)
		}
	})

	t.Run("no retries", func(t *testing.T) {
		reg.ResetCalls()
		reg.FailNext(registry.CmdGetDevice, 500, "boom")
		_ = call(t, engine, CommandLogin, map[string]any{"userName": "13800000001", "password": "secret-1"})
		if got := reg.Calls(registry.CmdGetDevice); got != 1 {
			t.Fatalf("expected a single attempt, got %d", got)
		}
	})
}

func TestLoginMintFailure(t *testing.T) {
	reg := seededRegistry(t)
	engine := newTestEngine(t, reg, newTestClock())
	engine.newRandomID = func() (string, error) { return "", errors.New("entropy exhausted") }
	engine.flows = engine.buildFlowDeps()

	res := call(t, engine, CommandLogin, map[string]any{"userName": "13800000001", "password": "secret-1"})
	if res.RetCode != CodeInternal {
		t.Fatalf("expected %d, got %d", CodeInternal, res.RetCode)
	}
	if reg.Calls(registry.CmdDeviceUpdate) != 0 {
		t.Fatal("nothing may be persisted when minting fails")
	}
}

func TestBuildValidation(t *testing.T) {
	reg := memregistry.New()

	if _, err := New().WithEndpoints("a").Build(); err == nil {
		t.Fatal("expected error without registry caller")
	}
	if _, err := New().WithRegistry(reg).Build(); err == nil {
		t.Fatal("expected error without resolver")
	}

	cfg := DefaultConfig()
	cfg.Token.RefreshThreshold = cfg.Token.TTL
	if _, err := New().WithConfig(cfg).WithRegistry(reg).WithEndpoints("a").Build(); err == nil {
		t.Fatal("expected config validation error")
	}

	b := New().WithRegistry(reg).WithEndpoints("a")
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}

func TestNilEngine(t *testing.T) {
	var engine *Engine
	if _, err := engine.Login(context.Background(), "a", "b"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.CheckToken(context.Background(), "a_b"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	res := engine.Execute(context.Background(), CommandLogin, nil)
	if res.RetCode != CodeInternal {
		t.Fatalf("expected %d, got %d", CodeInternal, res.RetCode)
	}
}
