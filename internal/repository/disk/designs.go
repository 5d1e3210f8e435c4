package disk

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/msomdec/logo-feedback/internal/domain"
)

const (
	indexFile       = ".index.json"
	defaultBaseName = "design"
	maxNameAttempts = 10000
)

// indexEntry records the upload order of one design. The directory listing
// alone is not a reliable ordering key across filesystems.
type indexEntry struct {
	Filename   string    `json:"filename"`
	Seq        int64     `json:"seq"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// designStore implements domain.DesignStore on a plain directory.
type designStore struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

func (s *designStore) Save(ctx context.Context, originalName string, data []byte) (*domain.Design, error) {
	ctx, span := tracer.Start(ctx, "disk.save_design",
		trace.WithAttributes(
			attribute.String("original_name", originalName),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: uploaded file %q is empty", domain.ErrInvalidInput, originalName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, ok := s.readIndex()
	if !ok {
		rebuilt, err := s.rebuildIndex()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("%w: rebuild design index: %v", domain.ErrStorage, err)
		}
		slog.Warn("design index rebuilt from the upload directory", "designs", len(rebuilt))
		index = rebuilt
	}

	filename, f, err := s.createUnique(cleanName(originalName))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: create design file: %v", domain.ErrStorage, err)
	}
	path := filepath.Join(s.dir, filename)

	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(path)
		span.RecordError(err)
		return nil, fmt.Errorf("%w: write design %s: %v", domain.ErrStorage, filename, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(path)
		span.RecordError(err)
		return nil, fmt.Errorf("%w: sync design %s: %v", domain.ErrStorage, filename, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		span.RecordError(err)
		return nil, fmt.Errorf("%w: close design %s: %v", domain.ErrStorage, filename, err)
	}

	entry := indexEntry{
		Filename:   filename,
		Seq:        nextSeq(index),
		Size:       int64(len(data)),
		UploadedAt: s.now().UTC(),
	}
	if err := s.writeIndex(append(index, entry)); err != nil {
		// Without an index entry the file would still list, just out of order;
		// roll back so the caller's error means nothing was stored.
		_ = os.Remove(path)
		span.RecordError(err)
		return nil, fmt.Errorf("%w: update design index: %v", domain.ErrStorage, err)
	}

	span.SetAttributes(attribute.String("filename", filename))
	return &domain.Design{
		Filename:   entry.Filename,
		Seq:        entry.Seq,
		Size:       entry.Size,
		UploadedAt: entry.UploadedAt,
	}, nil
}

func (s *designStore) List(ctx context.Context) ([]domain.Design, error) {
	_, span := tracer.Start(ctx, "disk.list_designs")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: read upload directory: %v", domain.ErrStorage, err)
	}

	index, _ := s.readIndex()
	byName := indexByName(index)
	designs := make([]domain.Design, 0, len(entries))
	for _, e := range entries {
		if !isDesignName(e.Name()) || !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		designs = append(designs, describe(e.Name(), info, byName))
	}

	slices.SortStableFunc(designs, compareDesigns)
	span.SetAttributes(attribute.Int("design_count", len(designs)))
	return designs, nil
}

func (s *designStore) Exists(ctx context.Context, filename string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !isDesignName(filename) {
		return false, nil
	}
	info, err := os.Stat(filepath.Join(s.dir, filename))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat design %s: %v", domain.ErrStorage, filename, err)
	}
	return info.Mode().IsRegular(), nil
}

func (s *designStore) Get(ctx context.Context, filename string) ([]byte, *domain.Design, error) {
	_, span := tracer.Start(ctx, "disk.get_design",
		trace.WithAttributes(attribute.String("filename", filename)),
	)
	defer span.End()

	if !isDesignName(filename) {
		return nil, nil, domain.ErrNotFound
	}
	path := filepath.Join(s.dir, filename)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("%w: stat design %s: %v", domain.ErrStorage, filename, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("%w: read design %s: %v", domain.ErrStorage, filename, err)
	}

	s.mu.Lock()
	index, _ := s.readIndex()
	s.mu.Unlock()
	byName := indexByName(index)

	d := describe(filename, info, byName)
	return data, &d, nil
}

// createUnique opens a new file for name, trying name_1.ext, name_2.ext, ...
// when the name is taken. O_EXCL makes the existence check and the create one step.
func (s *designStore) createUnique(name string) (string, *os.File, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base = defaultBaseName
	}

	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		f, err := os.OpenFile(filepath.Join(s.dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return candidate, f, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", nil, err
		}
	}
	return "", nil, fmt.Errorf("no free filename for %s after %d attempts", name, maxNameAttempts)
}

// readIndex returns the recorded upload order. ok is false when the index
// exists but cannot be used; a missing index is simply empty.
func (s *designStore) readIndex() (entries []indexEntry, ok bool) {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, true
	}
	if err != nil {
		slog.Warn("read design index, falling back to modification time order", "error", err)
		return nil, false
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("design index is not valid JSON, falling back to modification time order", "error", err)
		return nil, false
	}
	return entries, true
}

// rebuildIndex recovers an upload order from the directory itself: files
// sorted by modification time, then name.
func (s *designStore) rebuildIndex() ([]indexEntry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	designs := make([]domain.Design, 0, len(dirEntries))
	for _, e := range dirEntries {
		if !isDesignName(e.Name()) || !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		designs = append(designs, describe(e.Name(), info, nil))
	}
	slices.SortStableFunc(designs, compareDesigns)

	index := make([]indexEntry, len(designs))
	for i, d := range designs {
		index[i] = indexEntry{
			Filename:   d.Filename,
			Seq:        int64(i + 1),
			Size:       d.Size,
			UploadedAt: d.UploadedAt,
		}
	}
	return index, nil
}

func (s *designStore) writeIndex(entries []indexEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal design index: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.dir, indexFile), data)
}

func nextSeq(entries []indexEntry) int64 {
	var highest int64
	for _, e := range entries {
		highest = max(highest, e.Seq)
	}
	return highest + 1
}

func indexByName(entries []indexEntry) map[string]indexEntry {
	byName := make(map[string]indexEntry, len(entries))
	for _, e := range entries {
		byName[e.Filename] = e
	}
	return byName
}

func describe(name string, info fs.FileInfo, byName map[string]indexEntry) domain.Design {
	d := domain.Design{
		Filename:   name,
		Size:       info.Size(),
		UploadedAt: info.ModTime().UTC(),
	}
	if e, ok := byName[name]; ok {
		d.Seq = e.Seq
		d.UploadedAt = e.UploadedAt
	}
	return d
}

// compareDesigns orders indexed designs by sequence, then files added by hand
// by modification time and name.
func compareDesigns(a, b domain.Design) int {
	switch {
	case a.Seq > 0 && b.Seq > 0:
		return cmp.Compare(a.Seq, b.Seq)
	case a.Seq > 0:
		return -1
	case b.Seq > 0:
		return 1
	}
	if c := a.UploadedAt.Compare(b.UploadedAt); c != 0 {
		return c
	}
	return strings.Compare(a.Filename, b.Filename)
}

// cleanName reduces an uploaded filename to a safe base name.
func cleanName(original string) string {
	name := strings.ReplaceAll(original, `\`, "/")
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.TrimLeft(name, ".")
	name = strings.TrimSpace(name)
	if name == "" || name == "/" {
		return defaultBaseName
	}
	return name
}

// isDesignName reports whether name can refer to a design: a plain base name
// that is not hidden.
func isDesignName(name string) bool {
	return name != "" &&
		!strings.HasPrefix(name, ".") &&
		!strings.ContainsAny(name, `/\`) &&
		name == filepath.Base(name)
}
