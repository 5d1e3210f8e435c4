package disk_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/msomdec/logo-feedback/internal/domain"
	"github.com/msomdec/logo-feedback/internal/repository/disk"
)

// fakeClock returns strictly increasing times so ordering is deterministic.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T) (*disk.Store, string) {
	t.Helper()
	return newTestStoreWith(t, disk.Options{})
}

func newTestStoreWith(t *testing.T, opts disk.Options) (*disk.Store, string) {
	t.Helper()
	dir := t.TempDir()
	if opts.UploadDir == "" {
		opts.UploadDir = filepath.Join(dir, "uploads")
	}
	if opts.LedgerPath == "" {
		opts.LedgerPath = filepath.Join(dir, "comments.json")
	}
	if opts.Now == nil {
		clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
		opts.Now = clock.Now
	}
	store, err := disk.New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store, dir
}

func TestNew_CreatesUploadDir(t *testing.T) {
	_, dir := newTestStore(t)

	info, err := os.Stat(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("stat uploads: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected uploads to be a directory")
	}
}

func TestNew_UploadPathIsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uploads")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := disk.New(disk.Options{UploadDir: path, LedgerPath: filepath.Join(dir, "comments.json")})
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestNew_MissingOptions(t *testing.T) {
	if _, err := disk.New(disk.Options{LedgerPath: "comments.json"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without upload dir, got %v", err)
	}
	if _, err := disk.New(disk.Options{UploadDir: t.TempDir()}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without ledger path, got %v", err)
	}
}

func TestCheck_StrictCorruptLedger(t *testing.T) {
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "comments.json")
	if err := os.WriteFile(ledgerPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store, _ := newTestStoreWith(t, disk.Options{LedgerPath: ledgerPath, StrictLedger: true})
	if err := store.Check(context.Background()); !errors.Is(err, domain.ErrCorruptLedger) {
		t.Fatalf("expected ErrCorruptLedger, got %v", err)
	}
}
