package config

import (
	"os"
	"testing"
)

func TestConfigLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"VCONSTORE_BUILD_TARGET", "VCONSTORE_DB_DRIVER", "VCONSTORE_HTTP_PORT",
		"VCONSTORE_REDIS_URL", "VCONSTORE_CACHE_TTL", "VCONSTORE_SEARCH_ALPHA",
	} {
		_ = os.Unsetenv(k)
	}

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.BuildTarget != "local" || cfg.DBDriver != "sqlite" {
		t.Fatalf("unexpected default target/driver: %+v", cfg)
	}
	if cfg.CacheTTLSeconds != 3600 || cfg.SearchAlpha != 0.6 {
		t.Fatalf("unexpected cache/search defaults: %+v", cfg)
	}
	if cfg.DefaultSearchLimit != 20 || cfg.MaxSearchLimit != 200 {
		t.Fatalf("unexpected search limits: %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected default log level: %q", cfg.LogLevel)
	}
	if got := cfg.GetHTTPAddr(); got != ":8080" {
		t.Fatalf("unexpected http addr: %q", got)
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	t.Setenv("VCONSTORE_BUILD_TARGET", "cloud")
	t.Setenv("VCONSTORE_POSTGRES_DSN", "postgres://localhost/vcons")
	t.Setenv("VCONSTORE_CACHE_TTL", "120")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("expected postgres driver for cloud target, got %s", cfg.DBDriver)
	}
	if cfg.CacheTTLSeconds != 120 {
		t.Fatalf("expected CacheTTLSeconds=120, got %d", cfg.CacheTTLSeconds)
	}
}

func TestResolveDefaults_Rejections(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"bad target", Config{BuildTarget: "spaceship", DefaultSearchLimit: 20, MaxSearchLimit: 200}},
		{"bad driver", Config{BuildTarget: "local", DBDriver: "oracle", DefaultSearchLimit: 20, MaxSearchLimit: 200}},
		{"postgres without dsn", Config{BuildTarget: "cloud", DefaultSearchLimit: 20, MaxSearchLimit: 200}},
		{"zero max limit", Config{BuildTarget: "local", DefaultSearchLimit: 20}},
		{"default above max", Config{BuildTarget: "local", DefaultSearchLimit: 300, MaxSearchLimit: 200}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.ResolveDefaults(); err == nil {
				t.Fatalf("expected error for %+v", tc.cfg)
			}
		})
	}
}
