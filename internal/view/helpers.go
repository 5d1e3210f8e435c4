package view

import (
	"encoding/hex"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/msomdec/logo-feedback/internal/domain"
)

// DatastarScriptURL is the client bundle matching datastar-go v1.
const DatastarScriptURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// FormState carries a rejected submission back to the page so the visitor
// sees the error next to the form they used, with their input intact.
// Feedback marks comment and reply submissions; otherwise the state belongs
// to the upload form. CommentID != "" targets a reply form.
type FormState struct {
	Error     string
	Feedback  bool
	Design    string
	CommentID string
	Text      string
	Author    string
}

// Anchor returns a stable element ID for a design card. Filenames may hold
// characters that are not valid in CSS selectors, so the ID is a digest.
func Anchor(filename string) string {
	sum := blake2b.Sum256([]byte(filename))
	return "design-" + hex.EncodeToString(sum[:6])
}

// UploadURL is where a design's bytes are served.
func UploadURL(filename string) string {
	return "/uploads/" + url.PathEscape(filename)
}

func commentCount(n int) string {
	if n == 1 {
		return "1 comment"
	}
	return strconv.Itoa(n) + " comments"
}

func authorLabel(author string) string {
	if author == "" {
		return "Anonymous"
	}
	return author
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2 Jan 2006, 15:04 UTC")
}

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func uploadError(form FormState) string {
	if form.Feedback {
		return ""
	}
	return form.Error
}

// pageError returns a feedback error that has no card to sit next to, such
// as a comment without a design or on a design that does not exist.
func pageError(designs []domain.Design, form FormState) string {
	if form.Error == "" || !form.Feedback {
		return ""
	}
	for _, d := range designs {
		if d.Filename == form.Design {
			return ""
		}
	}
	return form.Error
}

// commentFormFor returns the state for a card's comment form. A reply to a
// comment that is no longer on the card lands here so its error is shown.
func commentFormFor(form FormState, design string, comments []domain.Comment) FormState {
	if !form.Feedback || form.Design != design {
		return FormState{}
	}
	if form.CommentID == "" || !hasComment(comments, form.CommentID) {
		form.CommentID = ""
		return form
	}
	return FormState{}
}

func replyFormFor(form FormState, design, commentID string) FormState {
	if form.Feedback && form.Design == design && form.CommentID == commentID && commentID != "" {
		return form
	}
	return FormState{}
}

func hasComment(comments []domain.Comment, id string) bool {
	for _, c := range comments {
		if c.ID == id {
			return true
		}
	}
	return false
}
