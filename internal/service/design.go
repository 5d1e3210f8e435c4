package service

import (
	"context"
	"fmt"

	"github.com/msomdec/logo-feedback/internal/domain"
)

// DefaultMaxDesignSize bounds a single uploaded file.
const DefaultMaxDesignSize = 10 << 20 // 10MB

// Upload is one file from an upload request.
type Upload struct {
	Filename string
	Data     []byte
}

// DesignService orchestrates design uploads and listing.
type DesignService struct {
	designs domain.DesignStore
	maxSize int64
}

// NewDesignService creates a new DesignService. A non-positive maxSize
// selects DefaultMaxDesignSize.
func NewDesignService(designs domain.DesignStore, maxSize int64) *DesignService {
	if maxSize <= 0 {
		maxSize = DefaultMaxDesignSize
	}
	return &DesignService{designs: designs, maxSize: maxSize}
}

// MaxSize returns the per-file upload limit in bytes.
func (s *DesignService) MaxSize() int64 {
	return s.maxSize
}

// Upload validates every file before storing any of them, then saves them in
// order. On a storage failure the designs saved so far are returned with the error.
func (s *DesignService) Upload(ctx context.Context, files []Upload) ([]domain.Design, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: choose at least one file to upload", domain.ErrInvalidInput)
	}
	for _, f := range files {
		if len(f.Data) == 0 {
			return nil, fmt.Errorf("%w: %q is empty", domain.ErrInvalidInput, f.Filename)
		}
		if int64(len(f.Data)) > s.maxSize {
			return nil, fmt.Errorf("%w: %q exceeds the %s limit", domain.ErrInvalidInput, f.Filename, formatSize(s.maxSize))
		}
	}

	saved := make([]domain.Design, 0, len(files))
	for _, f := range files {
		d, err := s.designs.Save(ctx, f.Filename, f.Data)
		if err != nil {
			return saved, fmt.Errorf("save design: %w", err)
		}
		saved = append(saved, *d)
	}
	return saved, nil
}

// List returns all designs in upload order.
func (s *DesignService) List(ctx context.Context) ([]domain.Design, error) {
	designs, err := s.designs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list designs: %w", err)
	}
	return designs, nil
}

// GetFile returns a design's bytes and metadata.
func (s *DesignService) GetFile(ctx context.Context, filename string) ([]byte, *domain.Design, error) {
	data, d, err := s.designs.Get(ctx, filename)
	if err != nil {
		return nil, nil, fmt.Errorf("get design: %w", err)
	}
	return data, d, nil
}

// formatSize renders n in the largest whole unit: 10MB, 512KB, 300 bytes.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
