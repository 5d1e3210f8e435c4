package domain

import (
	"context"
	"time"
)

// Design is an uploaded logo image shown in the gallery.
type Design struct {
	Filename   string
	Seq        int64 // Upload sequence from the index; 0 when the file was added by hand
	Size       int64
	UploadedAt time.Time
}

// DesignStore owns the uploads directory.
type DesignStore interface {
	// Save writes data under a name derived from originalName, adding a
	// numeric suffix when the name is taken.
	Save(ctx context.Context, originalName string, data []byte) (*Design, error)
	// List returns every design in upload order.
	List(ctx context.Context) ([]Design, error)
	Exists(ctx context.Context, filename string) (bool, error)
	Get(ctx context.Context, filename string) ([]byte, *Design, error)
}
