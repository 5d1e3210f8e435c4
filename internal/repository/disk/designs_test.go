package disk_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/msomdec/logo-feedback/internal/domain"
)

func TestDesignStore_SaveAndList(t *testing.T) {
	store, dir := newTestStore(t)
	designs := store.Designs()
	ctx := context.Background()

	data := []byte("0123456789")
	d, err := designs.Save(ctx, "logo1.png", data)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if d.Filename != "logo1.png" {
		t.Fatalf("expected filename logo1.png, got %s", d.Filename)
	}
	if d.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", d.Seq)
	}
	if d.Size != 10 {
		t.Fatalf("expected size 10, got %d", d.Size)
	}

	onDisk, err := os.ReadFile(filepath.Join(dir, "uploads", "logo1.png"))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if !bytes.Equal(onDisk, data) {
		t.Fatalf("expected stored bytes %q, got %q", data, onDisk)
	}

	list, err := designs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Filename != "logo1.png" {
		t.Fatalf("expected [logo1.png], got %+v", list)
	}
}

func TestDesignStore_SaveCollisionGetsSuffix(t *testing.T) {
	store, _ := newTestStore(t)
	designs := store.Designs()
	ctx := context.Background()

	first, err := designs.Save(ctx, "logo.png", []byte("first"))
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}
	second, err := designs.Save(ctx, "logo.png", []byte("second"))
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	third, err := designs.Save(ctx, "logo.png", []byte("third"))
	if err != nil {
		t.Fatalf("third Save: %v", err)
	}

	if first.Filename != "logo.png" {
		t.Fatalf("expected logo.png, got %s", first.Filename)
	}
	if second.Filename != "logo_1.png" {
		t.Fatalf("expected logo_1.png, got %s", second.Filename)
	}
	if third.Filename != "logo_2.png" {
		t.Fatalf("expected logo_2.png, got %s", third.Filename)
	}

	list, err := designs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	seen := make(map[string]int)
	for _, d := range list {
		seen[d.Filename]++
	}
	for _, name := range []string{"logo.png", "logo_1.png", "logo_2.png"} {
		if seen[name] != 1 {
			t.Fatalf("expected %s listed exactly once, got %d", name, seen[name])
		}
	}

	data, _, err := designs.Get(ctx, "logo.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "first" {
		t.Fatalf("expected original bytes to survive, got %q", data)
	}
}

func TestDesignStore_SaveEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	designs := store.Designs()
	ctx := context.Background()

	_, err := designs.Save(ctx, "empty.png", nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	list, err := designs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no designs, got %d", len(list))
	}
}

func TestDesignStore_SaveSanitizesName(t *testing.T) {
	store, dir := newTestStore(t)
	designs := store.Designs()
	ctx := context.Background()

	tests := []struct {
		original string
		expected string
	}{
		{"../../etc/passwd.png", "passwd.png"},
		{`C:\Users\me\logo.png`, "logo.png"},
		{".hidden.png", "hidden.png"},
		{"", "design"},
	}

	for _, tc := range tests {
		d, err := designs.Save(ctx, tc.original, []byte("x"))
		if err != nil {
			t.Fatalf("Save(%q): %v", tc.original, err)
		}
		if d.Filename != tc.expected {
			t.Fatalf("Save(%q): expected %q, got %q", tc.original, tc.expected, d.Filename)
		}
		if _, err := os.Stat(filepath.Join(dir, "uploads", d.Filename)); err != nil {
			t.Fatalf("expected %s inside uploads: %v", d.Filename, err)
		}
	}
}

func TestDesignStore_ListUploadOrder(t *testing.T) {
	store, _ := newTestStore(t)
	designs := store.Designs()
	ctx := context.Background()

	// Names deliberately sort differently from upload order.
	for _, name := range []string{"zebra.png", "apple.png", "mango.png"} {
		if _, err := designs.Save(ctx, name, []byte(name)); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}

	list, err := designs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	expected := []string{"zebra.png", "apple.png", "mango.png"}
	if len(list) != len(expected) {
		t.Fatalf("expected %d designs, got %d", len(expected), len(list))
	}
	for i, name := range expected {
		if list[i].Filename != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, list[i].Filename)
		}
	}
}

func TestDesignStore_ListSkipsHiddenAndDirs(t *testing.T) {
	store, dir := newTestStore(t)
	designs := store.Designs()
	ctx := context.Background()

	uploads := filepath.Join(dir, "uploads")
	if err := os.WriteFile(filepath.Join(uploads, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatalf("write .gitkeep: %v", err)
	}
	if err := os.Mkdir(filepath.Join(uploads, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := designs.Save(ctx, "logo.png", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	list, err := designs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Filename != "logo.png" {
		t.Fatalf("expected only logo.png, got %+v", list)
	}
}

func TestDesignStore_ListIncludesUnindexedFiles(t *testing.T) {
	store, dir := newTestStore(t)
	designs := store.Designs()
	ctx := context.Background()

	if _, err := designs.Save(ctx, "uploaded.png", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	uploads := filepath.Join(dir, "uploads")
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"b-manual.png", "a-manual.png"} {
		path := filepath.Join(uploads, name)
		if err := os.WriteFile(path, []byte("m"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		mtime := old.Add(time.Duration(i) * time.Hour)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("chtimes %s: %v", name, err)
		}
	}

	list, err := designs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	expected := []string{"uploaded.png", "b-manual.png", "a-manual.png"}
	if len(list) != len(expected) {
		t.Fatalf("expected %d designs, got %d", len(expected), len(list))
	}
	for i, name := range expected {
		if list[i].Filename != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, list[i].Filename)
		}
	}
	if list[1].Seq != 0 {
		t.Fatalf("expected unindexed design to have seq 0, got %d", list[1].Seq)
	}
}

func TestDesignStore_CorruptIndexFallsBack(t *testing.T) {
	store, dir := newTestStore(t)
	designs := store.Designs()
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(dir, "uploads", ".index.json"), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if _, err := designs.Save(ctx, "logo.png", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	list, err := designs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Seq != 1 {
		t.Fatalf("expected one design with a rebuilt index, got %+v", list)
	}
}

func TestDesignStore_CorruptIndexKeepsUploadOrder(t *testing.T) {
	store, dir := newTestStore(t)
	designs := store.Designs()
	ctx := context.Background()
	uploads := filepath.Join(dir, "uploads")

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.png", "b.png"} {
		if _, err := designs.Save(ctx, name, []byte("x")); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
		mtime := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(filepath.Join(uploads, name), mtime, mtime); err != nil {
			t.Fatalf("chtimes %s: %v", name, err)
		}
	}

	if err := os.WriteFile(filepath.Join(uploads, ".index.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if _, err := designs.Save(ctx, "c.png", []byte("x")); err != nil {
		t.Fatalf("Save c.png: %v", err)
	}

	list, err := designs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	expected := []string{"a.png", "b.png", "c.png"}
	if len(list) != len(expected) {
		t.Fatalf("expected %d designs, got %+v", len(expected), list)
	}
	for i, name := range expected {
		if list[i].Filename != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, list[i].Filename)
		}
		if list[i].Seq != int64(i+1) {
			t.Fatalf("%s: expected seq %d, got %d", name, i+1, list[i].Seq)
		}
	}
}

func TestDesignStore_Exists(t *testing.T) {
	store, _ := newTestStore(t)
	designs := store.Designs()
	ctx := context.Background()

	if _, err := designs.Save(ctx, "logo.png", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	tests := []struct {
		name   string
		exists bool
	}{
		{"logo.png", true},
		{"missing.png", false},
		{".index.json", false},
		{"../comments.json", false},
		{"", false},
	}
	for _, tc := range tests {
		ok, err := designs.Exists(ctx, tc.name)
		if err != nil {
			t.Fatalf("Exists(%q): %v", tc.name, err)
		}
		if ok != tc.exists {
			t.Fatalf("Exists(%q): expected %v, got %v", tc.name, tc.exists, ok)
		}
	}
}

func TestDesignStore_GetNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"missing.png", ".index.json", "../comments.json"} {
		_, _, err := store.Designs().Get(ctx, name)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Get(%q): expected ErrNotFound, got %v", name, err)
		}
	}
}
