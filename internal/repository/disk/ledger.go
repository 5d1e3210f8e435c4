package disk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/msomdec/logo-feedback/internal/domain"
)

// ledgerStore implements domain.CommentStore on a single JSON document.
// Every mutation holds mu across load, modify and write.
type ledgerStore struct {
	mu     sync.Mutex
	path   string
	strict bool
	now    func() time.Time
}

func (s *ledgerStore) Load(ctx context.Context) (domain.Ledger, error) {
	_, span := tracer.Start(ctx, "disk.load_ledger")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.load()
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrCorruptLedger) && !s.strict {
			// Could not move the file aside. Show an empty gallery, but writes
			// keep failing until someone repairs the file.
			slog.Error("comment ledger unreadable, serving empty comments", "path", s.path, "error", err)
			return domain.Ledger{}, nil
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int("comment_count", ledger.Count()))
	return ledger, nil
}

func (s *ledgerStore) CommentsFor(ctx context.Context, designFilename string) ([]domain.Comment, error) {
	ledger, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.CommentsFor(designFilename), nil
}

func (s *ledgerStore) Append(ctx context.Context, designFilename, text, author string) (*domain.Comment, error) {
	_, span := tracer.Start(ctx, "disk.append_comment",
		trace.WithAttributes(attribute.String("design", designFilename)),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if designFilename == "" {
		return nil, fmt.Errorf("%w: design is required", domain.ErrInvalidInput)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: comment text is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.load()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	c := domain.Comment{
		ID:             uuid.NewString(),
		DesignFilename: designFilename,
		Text:           text,
		Author:         strings.TrimSpace(author),
		Timestamp:      s.now().UTC(),
	}
	ledger[designFilename] = append(ledger[designFilename], c)

	if err := s.save(ledger); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &c, nil
}

func (s *ledgerStore) AppendReply(ctx context.Context, designFilename, commentID, text, author string) (*domain.Reply, error) {
	_, span := tracer.Start(ctx, "disk.append_reply",
		trace.WithAttributes(
			attribute.String("design", designFilename),
			attribute.String("comment_id", commentID),
		),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: reply text is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.load()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	comments := ledger[designFilename]
	idx := -1
	for i := range comments {
		if comments[i].ID == commentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: comment %s on %s", domain.ErrNotFound, commentID, designFilename)
	}

	r := domain.Reply{
		ID:        uuid.NewString(),
		Text:      text,
		Author:    strings.TrimSpace(author),
		Timestamp: s.now().UTC(),
	}
	comments[idx].Replies = append(comments[idx].Replies, r)

	if err := s.save(ledger); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &r, nil
}

// load reads the ledger. A document that fails validation is renamed to
// <path>.corrupt-<nanos> and replaced by an empty ledger, unless the store
// is strict.
func (s *ledgerStore) load() (domain.Ledger, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Ledger{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read ledger %s: %v", domain.ErrStorage, s.path, err)
	}

	ledger, decodeErr := decodeLedger(data)
	if decodeErr == nil {
		return ledger, nil
	}
	if s.strict {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptLedger, s.path, decodeErr)
	}

	quarantine := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().UnixNano())
	if err := os.Rename(s.path, quarantine); err != nil {
		return nil, fmt.Errorf("%w: %s: %v (moving it aside failed: %v)", domain.ErrCorruptLedger, s.path, decodeErr, err)
	}
	slog.Error("comment ledger is corrupt, moved aside and starting empty",
		"path", s.path, "quarantine", quarantine, "error", decodeErr)
	return domain.Ledger{}, nil
}

func (s *ledgerStore) save(ledger domain.Ledger) error {
	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal ledger: %v", domain.ErrStorage, err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: write ledger %s: %v", domain.ErrStorage, s.path, err)
	}
	return nil
}

// storedComment is the on-disk comment record. Replies stay raw because
// older ledgers hold them as plain strings.
type storedComment struct {
	ID        string            `json:"id"`
	Text      *string           `json:"text"`
	Author    string            `json:"author"`
	Timestamp time.Time         `json:"timestamp"`
	Replies   []json.RawMessage `json:"replies"`
}

type storedReply struct {
	ID        string    `json:"id"`
	Text      *string   `json:"text"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// decodeLedger validates data against the ledger schema: an object mapping
// filenames to arrays of comment records. Plain string entries are upgraded
// to records; records without an ID get one derived from their position so
// replies can address them before the next write persists it.
func decodeLedger(data []byte) (domain.Ledger, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.Ledger{}, nil
	}

	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}

	ledger := make(domain.Ledger, len(raw))
	for filename, entries := range raw {
		if filename == "" {
			return nil, errors.New("decode ledger: empty design filename")
		}
		comments := make([]domain.Comment, 0, len(entries))
		for i, entry := range entries {
			c, err := decodeComment(filename, i, entry)
			if err != nil {
				return nil, err
			}
			comments = append(comments, c)
		}
		ledger[filename] = comments
	}
	return ledger, nil
}

func decodeComment(filename string, i int, entry json.RawMessage) (domain.Comment, error) {
	c := domain.Comment{DesignFilename: filename}

	var legacy string
	if err := json.Unmarshal(entry, &legacy); err == nil {
		c.Text = legacy
	} else {
		var sc storedComment
		if err := json.Unmarshal(entry, &sc); err != nil {
			return c, fmt.Errorf("decode ledger: %s comment %d: %w", filename, i, err)
		}
		if sc.Text == nil {
			return c, fmt.Errorf("decode ledger: %s comment %d: missing text", filename, i)
		}
		c.ID = sc.ID
		c.Text = *sc.Text
		c.Author = sc.Author
		c.Timestamp = sc.Timestamp
		for j, rawReply := range sc.Replies {
			r, err := decodeReply(filename, i, j, rawReply)
			if err != nil {
				return c, err
			}
			c.Replies = append(c.Replies, r)
		}
	}

	if strings.TrimSpace(c.Text) == "" {
		return c, fmt.Errorf("decode ledger: %s comment %d: empty text", filename, i)
	}
	if c.ID == "" {
		c.ID = derivedID(filename, i, -1)
	}
	return c, nil
}

func decodeReply(filename string, i, j int, entry json.RawMessage) (domain.Reply, error) {
	var r domain.Reply

	var legacy string
	if err := json.Unmarshal(entry, &legacy); err == nil {
		r.Text = legacy
	} else {
		var sr storedReply
		if err := json.Unmarshal(entry, &sr); err != nil {
			return r, fmt.Errorf("decode ledger: %s comment %d reply %d: %w", filename, i, j, err)
		}
		if sr.Text == nil {
			return r, fmt.Errorf("decode ledger: %s comment %d reply %d: missing text", filename, i, j)
		}
		r = domain.Reply{ID: sr.ID, Text: *sr.Text, Author: sr.Author, Timestamp: sr.Timestamp}
	}

	if r.ID == "" {
		r.ID = derivedID(filename, i, j)
	}
	return r, nil
}

func derivedID(filename string, comment, reply int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s#%d.%d", filename, comment, reply)).String()
}
