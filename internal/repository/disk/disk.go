package disk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/msomdec/logo-feedback/internal/domain"
)

var tracer = otel.Tracer("logo-feedback/disk")

// Options configures where the store keeps its files.
type Options struct {
	UploadDir  string
	LedgerPath string
	// StrictLedger makes a corrupt ledger an error instead of moving it
	// aside and starting from an empty one.
	StrictLedger bool
	// Now stamps comments and uploads. Defaults to time.Now.
	Now func() time.Time
}

// Store is the flat-file backend: an uploads directory plus a JSON ledger.
type Store struct {
	designs *designStore
	ledger  *ledgerStore
}

// New prepares the uploads directory and the ledger's parent directory.
func New(opts Options) (*Store, error) {
	if opts.UploadDir == "" {
		return nil, fmt.Errorf("%w: upload directory is required", domain.ErrInvalidInput)
	}
	if opts.LedgerPath == "" {
		return nil, fmt.Errorf("%w: ledger path is required", domain.ErrInvalidInput)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := ensureDir(opts.UploadDir); err != nil {
		return nil, err
	}
	if err := ensureDir(filepath.Dir(opts.LedgerPath)); err != nil {
		return nil, err
	}

	return &Store{
		designs: &designStore{dir: opts.UploadDir, now: opts.Now},
		ledger:  &ledgerStore{path: opts.LedgerPath, strict: opts.StrictLedger, now: opts.Now},
	}, nil
}

// Designs returns the image store.
func (s *Store) Designs() domain.DesignStore { return s.designs }

// Comments returns the comment store.
func (s *Store) Comments() domain.CommentStore { return s.ledger }

// Check loads the ledger once so corruption surfaces at startup.
func (s *Store) Check(ctx context.Context) error {
	_, err := s.ledger.Load(ctx)
	return err
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create directory %s: %v", domain.ErrStorage, dir, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", domain.ErrStorage, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s exists but is not a directory", domain.ErrStorage, dir)
	}
	return nil
}
