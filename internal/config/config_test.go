package config_test

import (
	"testing"

	"github.com/msomdec/logo-feedback/internal/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"BIND", "PORT", "UPLOAD_DIR", "LEDGER_PATH", "STATIC_DIR", "MAX_UPLOAD_MB", "STRICT_LEDGER", "OTEL_ENDPOINT", "SERVICE_NAME", "SUBMIT_RATE_PER_MIN", "SUBMIT_BURST"} {
		t.Setenv(key, "")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Addr() != "0.0.0.0:8000" {
		t.Fatalf("expected addr 0.0.0.0:8000, got %s", cfg.Addr())
	}
	if cfg.UploadDir != "uploads" || cfg.LedgerPath != "comments.json" || cfg.StaticDir != "static" {
		t.Fatalf("unexpected paths: %+v", cfg)
	}
	if cfg.MaxUploadBytes() != 10<<20 {
		t.Fatalf("expected 10MB limit, got %d", cfg.MaxUploadBytes())
	}
	if cfg.StrictLedger {
		t.Fatal("expected lenient ledger by default")
	}
	if cfg.SubmitPerMinute != 30 || cfg.SubmitBurst != 10 {
		t.Fatalf("unexpected submission limits: %d/min burst %d", cfg.SubmitPerMinute, cfg.SubmitBurst)
	}
	if cfg.OTelEndpoint != "" {
		t.Fatalf("expected tracing disabled, got %q", cfg.OTelEndpoint)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("BIND", "127.0.0.1")
	t.Setenv("PORT", "9090")
	t.Setenv("UPLOAD_DIR", "/srv/designs")
	t.Setenv("MAX_UPLOAD_MB", "2")
	t.Setenv("STRICT_LEDGER", "true")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("expected addr 127.0.0.1:9090, got %s", cfg.Addr())
	}
	if cfg.UploadDir != "/srv/designs" {
		t.Fatalf("expected upload dir from env, got %s", cfg.UploadDir)
	}
	if cfg.MaxUploadBytes() != 2<<20 {
		t.Fatalf("expected 2MB limit, got %d", cfg.MaxUploadBytes())
	}
	if !cfg.StrictLedger {
		t.Fatal("expected strict ledger")
	}
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("STRICT_LEDGER", "maybe")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 8000 {
		t.Fatalf("expected default port, got %d", cfg.Port)
	}
	if cfg.StrictLedger {
		t.Fatal("expected default strict ledger")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"port too large", config.Config{Port: 70000, MaxUploadMB: 1, UploadDir: "u", LedgerPath: "l"}},
		{"zero upload size", config.Config{Port: 80, MaxUploadMB: 0, UploadDir: "u", LedgerPath: "l"}},
		{"missing upload dir", config.Config{Port: 80, MaxUploadMB: 1, LedgerPath: "l"}},
		{"missing ledger", config.Config{Port: 80, MaxUploadMB: 1, UploadDir: "u"}},
		{"negative rate", config.Config{Port: 80, MaxUploadMB: 1, UploadDir: "u", LedgerPath: "l", SubmitPerMinute: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
