package authcenter

import (
	"testing"
	"time"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Token.TTL != 30*24*time.Hour {
		t.Fatalf("unexpected TTL %v", cfg.Token.TTL)
	}
	if cfg.Token.RefreshThreshold != 20*24*time.Hour {
		t.Fatalf("unexpected threshold %v", cfg.Token.RefreshThreshold)
	}
	if cfg.Token.Separator != "_" {
		t.Fatalf("unexpected separator %q", cfg.Token.Separator)
	}
	if cfg.Registry.Service != "services.device_manager" || cfg.Registry.UserTypeID != "060A08000000" {
		t.Fatalf("unexpected registry config %+v", cfg.Registry)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "ttl zero",
			mutate: func(c *Config) {
				c.Token.TTL = 0
			},
		},
		{
			name: "threshold zero",
			mutate: func(c *Config) {
				c.Token.RefreshThreshold = 0
			},
		},
		{
			name: "threshold equals ttl",
			mutate: func(c *Config) {
				c.Token.RefreshThreshold = c.Token.TTL
			},
		},
		{
			name: "short lifetimes",
			mutate: func(c *Config) {
				c.Token.TTL = time.Hour
				c.Token.RefreshThreshold = 40 * time.Minute
			},
			wantValid: true,
		},
		{
			name: "empty separator",
			mutate: func(c *Config) {
				c.Token.Separator = ""
			},
		},
		{
			name: "dash separator",
			mutate: func(c *Config) {
				c.Token.Separator = "-"
			},
		},
		{
			name: "hex separator",
			mutate: func(c *Config) {
				c.Token.Separator = "a"
			},
		},
		{
			name: "dot separator",
			mutate: func(c *Config) {
				c.Token.Separator = "."
			},
			wantValid: true,
		},
		{
			name: "blank service",
			mutate: func(c *Config) {
				c.Registry.Service = "  "
			},
		},
		{
			name: "blank user type",
			mutate: func(c *Config) {
				c.Registry.UserTypeID = ""
			},
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
		},
		{
			name: "latency without metrics",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
