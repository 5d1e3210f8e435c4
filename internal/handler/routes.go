package handler

import (
	"net/http"

	"github.com/msomdec/logo-feedback/internal/service"
)

// RegisterRoutes sets up all HTTP routes on the given mux. Submissions pass
// through limiter, which may be nil. Static files are only served when
// staticDir is set.
func RegisterRoutes(mux *http.ServeMux, designs *service.DesignService, comments *service.CommentService, limiter *service.SubmissionLimiter, staticDir string) {
	gallery := NewGalleryHandler(designs, comments)
	health := NewHealthHandler(comments)

	mux.HandleFunc("GET /healthz", health.HandleHealthz)

	mux.HandleFunc("GET /{$}", gallery.HandleGallery)
	mux.HandleFunc("GET /index.html", gallery.HandleGallery)
	mux.Handle("POST /upload", Throttle(limiter, http.HandlerFunc(gallery.HandleUpload)))
	mux.Handle("POST /comment", Throttle(limiter, http.HandlerFunc(gallery.HandleComment)))
	mux.Handle("POST /reply", Throttle(limiter, http.HandlerFunc(gallery.HandleReply)))
	mux.HandleFunc("GET /uploads/{filename}", gallery.HandleServeUpload)

	if staticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}
}
