package settings

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/authcenter"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q", s.RedisAddr)
	}
	if s.BusPrefix != "mesh" || s.Inbox != "authcenter" {
		t.Errorf("unexpected bus names %q %q", s.BusPrefix, s.Inbox)
	}
	if s.RegistryService != authcenter.DefaultRegistryService {
		t.Errorf("RegistryService = %q", s.RegistryService)
	}

	cfg, err := s.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}
	if cfg.Token.TTL != 30*24*time.Hour || cfg.Token.RefreshThreshold != 20*24*time.Hour {
		t.Errorf("unexpected token windows %v %v", cfg.Token.TTL, cfg.Token.RefreshThreshold)
	}
	if d, _ := s.ParseCallTimeout(); d != 5*time.Second {
		t.Errorf("CallTimeout = %v", d)
	}
	if level, _ := s.Level(); level != slog.LevelInfo {
		t.Errorf("Level = %v", level)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REGISTRY_ENDPOINTS", "dm-1, dm-2,,")
	t.Setenv("TOKEN_TTL", "48h")
	t.Setenv("REFRESH_THRESHOLD", "24h")
	t.Setenv("AUDIT_ENABLED", "true")

	s, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.RedisAddr != "redis:6380" {
		t.Errorf("RedisAddr = %q", s.RedisAddr)
	}
	if got := s.Endpoints(); len(got) != 2 || got[0] != "dm-1" || got[1] != "dm-2" {
		t.Errorf("Endpoints = %v", got)
	}
	cfg, err := s.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}
	if cfg.Token.TTL != 48*time.Hour || !cfg.Audit.Enabled {
		t.Errorf("unexpected engine config %+v", cfg)
	}
}

func TestFlagsOverrideEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "authcenter.env")
	if err := os.WriteFile(envFile, []byte("INBOX=from-file\nBUS_PREFIX=filemesh\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("INBOX", "from-env")

	fs := Flags("authcenter")
	if err := fs.Parse([]string{"--env-file", envFile, "--inbox", "from-flag", "--log-level", "debug"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	s, err := Load(fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Inbox != "from-flag" {
		t.Errorf("Inbox = %q, want flag value", s.Inbox)
	}
	if s.BusPrefix != "filemesh" {
		t.Errorf("BusPrefix = %q, want file value", s.BusPrefix)
	}
	if level, _ := s.Level(); level != slog.LevelDebug {
		t.Errorf("Level = %v", level)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad timeout", map[string]string{"CALL_TIMEOUT": "soon"}},
		{"zero timeout", map[string]string{"CALL_TIMEOUT": "0s"}},
		{"bad ttl", map[string]string{"TOKEN_TTL": "forever"}},
		{"threshold above ttl", map[string]string{"TOKEN_TTL": "1h", "REFRESH_THRESHOLD": "2h"}},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}},
		{"key without identity", map[string]string{"ASSERTION_KEY": "c2VjcmV0"}},
		{"key not base64", map[string]string{"ASSERTION_KEY": "%%%", "SERVICE_UUID": "svc"}},
		{"blank inbox", map[string]string{"INBOX": " "}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
