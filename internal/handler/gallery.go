package handler

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"
	"golang.org/x/crypto/blake2b"

	"github.com/msomdec/logo-feedback/internal/domain"
	"github.com/msomdec/logo-feedback/internal/service"
	"github.com/msomdec/logo-feedback/internal/view"
)

// maxUploadFiles bounds how many files one upload request may carry.
const maxUploadFiles = 20

// GalleryHandler serves the gallery page and accepts uploads, comments and replies.
type GalleryHandler struct {
	designs  *service.DesignService
	comments *service.CommentService
}

// NewGalleryHandler creates a new GalleryHandler.
func NewGalleryHandler(designs *service.DesignService, comments *service.CommentService) *GalleryHandler {
	return &GalleryHandler{designs: designs, comments: comments}
}

// HandleGallery renders every design with its feedback.
// GET / and GET /index.html
func (h *GalleryHandler) HandleGallery(w http.ResponseWriter, r *http.Request) {
	h.renderGallery(w, r, http.StatusOK, view.FormState{})
}

// HandleUpload stores one or more designs from a multipart form.
// Files are read from the "file" field, with "design" accepted as an alias.
// POST /upload
func (h *GalleryHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.designs.MaxSize()*maxUploadFiles + 1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.renderGallery(w, r, http.StatusBadRequest, view.FormState{Error: "upload is too large"})
			return
		}
		h.renderGallery(w, r, http.StatusBadRequest, view.FormState{Error: "choose at least one file to upload"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File["file"]...)
	headers = append(headers, r.MultipartForm.File["design"]...)
	if len(headers) > maxUploadFiles {
		h.renderGallery(w, r, http.StatusBadRequest, view.FormState{Error: "too many files in one upload"})
		return
	}

	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			slog.Error("open upload", "filename", fh.Filename, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			slog.Error("read upload", "filename", fh.Filename, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		uploads = append(uploads, service.Upload{Filename: fh.Filename, Data: data})
	}

	saved, err := h.designs.Upload(r.Context(), uploads)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			h.renderGallery(w, r, http.StatusBadRequest, view.FormState{Error: validationMessage(err)})
			return
		}
		slog.Error("upload designs", "saved", len(saved), "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	for _, d := range saved {
		slog.Info("design uploaded", "filename", d.Filename, "size", d.Size)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleComment records feedback on a design.
// POST /comment
func (h *GalleryHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	form := view.FormState{
		Feedback: true,
		Design:   formValue(r, "design", "image"),
		Text:     formValue(r, "text", "comment"),
		Author:   r.FormValue("author"),
	}

	_, err := h.comments.Add(r.Context(), form.Design, form.Text, form.Author)
	h.respondFeedback(w, r, "add comment", form, err)
}

// HandleReply records a reply to an existing comment.
// POST /reply
func (h *GalleryHandler) HandleReply(w http.ResponseWriter, r *http.Request) {
	form := view.FormState{
		Feedback:  true,
		Design:    formValue(r, "design", "image"),
		CommentID: r.FormValue("comment_id"),
		Text:      formValue(r, "text", "comment"),
		Author:    r.FormValue("author"),
	}

	_, err := h.comments.Reply(r.Context(), form.Design, form.CommentID, form.Text, form.Author)
	h.respondFeedback(w, r, "add reply", form, err)
}

// HandleServeUpload serves a design's bytes. Conditional requests are
// answered from a content digest.
// GET /uploads/{filename}
func (h *GalleryHandler) HandleServeUpload(w http.ResponseWriter, r *http.Request) {
	data, d, err := h.designs.GetFile(r.Context(), r.PathValue("filename"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		slog.Error("serve design", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sum := blake2b.Sum256(data)
	w.Header().Set("ETag", `"`+hex.EncodeToString(sum[:])+`"`)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, d.Filename, d.UploadedAt, bytes.NewReader(data))
}

// respondFeedback finishes a comment or reply submission. Datastar requests
// get the design card patched in place; plain form posts are redirected on
// success and shown the page again with the error otherwise.
func (h *GalleryHandler) respondFeedback(w http.ResponseWriter, r *http.Request, op string, form view.FormState, err error) {
	if err != nil && !errors.Is(err, domain.ErrInvalidInput) {
		slog.Error(op, "design", form.Design, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err != nil {
		form.Error = validationMessage(err)
	} else {
		slog.Info(op, "design", form.Design)
	}

	if isDatastar(r) {
		if err == nil {
			form = view.FormState{Feedback: true, Design: form.Design}
		}
		h.patchCard(w, r, form)
		return
	}

	if err != nil {
		h.renderGallery(w, r, http.StatusBadRequest, form)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *GalleryHandler) patchCard(w http.ResponseWriter, r *http.Request, form view.FormState) {
	designs, err := h.designs.List(r.Context())
	if err != nil {
		slog.Error("list designs", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var design *domain.Design
	for i := range designs {
		if designs[i].Filename == form.Design {
			design = &designs[i]
			break
		}
	}
	if design == nil {
		// No card to patch: the design was never uploaded.
		http.Error(w, form.Error, http.StatusBadRequest)
		return
	}

	comments, err := h.comments.ForDesign(r.Context(), design.Filename)
	if err != nil {
		slog.Error("load comments", "design", design.Filename, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElementTempl(
		view.DesignBody(*design, comments, form),
		datastar.WithSelectorID(view.Anchor(design.Filename)),
		datastar.WithModeInner(),
	); err != nil {
		slog.Error("patch design card", "design", design.Filename, "error", err)
	}
}

func (h *GalleryHandler) renderGallery(w http.ResponseWriter, r *http.Request, status int, form view.FormState) {
	designs, err := h.designs.List(r.Context())
	if err != nil {
		slog.Error("list designs", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ledger, err := h.comments.Ledger(r.Context())
	if err != nil {
		slog.Error("load ledger", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := view.GalleryPage(designs, ledger.CommentsFor, form).Render(r.Context(), w); err != nil {
		slog.Error("render gallery", "error", err)
	}
}

// formValue returns the first non-empty value among the given field names.
func formValue(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := r.FormValue(name); v != "" {
			return v
		}
	}
	return ""
}

func isDatastar(r *http.Request) bool {
	return r.Header.Get("Datastar-Request") == "true"
}

// validationMessage strips wrapping context from a validation error so only
// the part meant for the visitor remains.
func validationMessage(err error) string {
	msg := err.Error()
	prefix := domain.ErrInvalidInput.Error() + ": "
	if i := strings.LastIndex(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}
