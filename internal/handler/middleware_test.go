package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/msomdec/logo-feedback/internal/handler"
	"github.com/msomdec/logo-feedback/internal/repository/disk"
	"github.com/msomdec/logo-feedback/internal/service"
)

type testEnv struct {
	designs    *service.DesignService
	comments   *service.CommentService
	uploadDir  string
	ledgerPath string
	staticDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		uploadDir:  filepath.Join(dir, "uploads"),
		ledgerPath: filepath.Join(dir, "comments.json"),
		staticDir:  filepath.Join(dir, "static"),
	}
	store, err := disk.New(disk.Options{UploadDir: env.uploadDir, LedgerPath: env.ledgerPath})
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	env.designs = service.NewDesignService(store.Designs(), 1<<20)
	env.comments = service.NewCommentService(store.Comments(), store.Designs())
	return env
}

func (e *testEnv) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, e.designs, e.comments, nil, e.staticDir)
	srv := httptest.NewServer(handler.RequestLogger(handler.SecurityHeaders(mux)))
	t.Cleanup(srv.Close)
	return srv
}

// noRedirectClient reports redirects instead of following them.
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type uploadFile struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, files ...uploadFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write(f.data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func postUpload(t *testing.T, client *http.Client, url string, files ...uploadFile) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, files...)
	resp, err := client.Post(url+"/upload", contentType, body)
	if err != nil {
		t.Fatalf("POST /upload: %v", err)
	}
	return resp
}

func TestSecurityHeaders(t *testing.T) {
	h := handler.SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", w.Code)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff, got %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected DENY, got %q", got)
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	h := handler.RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Flusher); !ok {
			t.Error("expected wrapped writer to support flushing")
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("done"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/thing", nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if w.Body.String() != "done" {
		t.Fatalf("expected body done, got %q", w.Body.String())
	}
}

func TestThrottle(t *testing.T) {
	limiter := service.NewSubmissionLimiter(1, 2, nil)
	h := handler.Throttle(limiter, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	}))

	submit := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/comment", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := submit("192.0.2.1:5000"); w.Code != http.StatusSeeOther {
			t.Fatalf("submission %d: expected 303, got %d", i+1, w.Code)
		}
	}

	w := submit("192.0.2.1:5001")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	if w := submit("198.51.100.7:5000"); w.Code != http.StatusSeeOther {
		t.Fatalf("other client: expected 303, got %d", w.Code)
	}
}
