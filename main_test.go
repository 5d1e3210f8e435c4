package main

import (
	"testing"

	"github.com/msomdec/logo-feedback/internal/config"
)

func TestRootCmd_FlagsOverrideConfig(t *testing.T) {
	cfg := &config.Config{Bind: "0.0.0.0", Port: 8000, UploadDir: "uploads", LedgerPath: "comments.json", StaticDir: "static", MaxUploadMB: 10}
	cmd := newRootCmd(cfg)

	err := cmd.ParseFlags([]string{"--bind", "127.0.0.1", "--port", "9001", "--uploads", "/tmp/u", "--ledger", "/tmp/c.json", "--strict-ledger"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	if cfg.Addr() != "127.0.0.1:9001" {
		t.Fatalf("expected 127.0.0.1:9001, got %s", cfg.Addr())
	}
	if cfg.UploadDir != "/tmp/u" || cfg.LedgerPath != "/tmp/c.json" {
		t.Fatalf("unexpected paths: %+v", cfg)
	}
	if !cfg.StrictLedger {
		t.Fatal("expected strict ledger")
	}
	if cfg.StaticDir != "static" {
		t.Fatalf("expected static default kept, got %s", cfg.StaticDir)
	}
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	cmd := newRootCmd(&config.Config{Port: 8000, MaxUploadMB: 10, UploadDir: "u", LedgerPath: "l"})
	cmd.SetArgs([]string{"unexpected"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for positional argument")
	}
}
