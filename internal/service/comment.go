package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/msomdec/logo-feedback/internal/domain"
)

const (
	maxCommentLength = 2000
	maxAuthorLength  = 80
)

// CommentService validates and records feedback on designs.
type CommentService struct {
	comments domain.CommentStore
	designs  domain.DesignStore
}

// NewCommentService creates a new CommentService.
func NewCommentService(comments domain.CommentStore, designs domain.DesignStore) *CommentService {
	return &CommentService{comments: comments, designs: designs}
}

// Add appends a comment to an existing design.
func (s *CommentService) Add(ctx context.Context, design, text, author string) (*domain.Comment, error) {
	text, author, err := s.validate(ctx, design, text, author)
	if err != nil {
		return nil, err
	}

	c, err := s.comments.Append(ctx, design, text, author)
	if err != nil {
		return nil, fmt.Errorf("append comment: %w", err)
	}
	return c, nil
}

// Reply answers an existing comment on an existing design.
func (s *CommentService) Reply(ctx context.Context, design, commentID, text, author string) (*domain.Reply, error) {
	text, author, err := s.validate(ctx, design, text, author)
	if err != nil {
		return nil, err
	}
	if commentID == "" {
		return nil, fmt.Errorf("%w: choose a comment to reply to", domain.ErrInvalidInput)
	}

	r, err := s.comments.AppendReply(ctx, design, commentID, text, author)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: that comment no longer exists", domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("append reply: %w", err)
	}
	return r, nil
}

// Ledger returns every design's comments.
func (s *CommentService) Ledger(ctx context.Context) (domain.Ledger, error) {
	ledger, err := s.comments.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return ledger, nil
}

// ForDesign returns the comments on one design, oldest first.
func (s *CommentService) ForDesign(ctx context.Context, design string) ([]domain.Comment, error) {
	comments, err := s.comments.CommentsFor(ctx, design)
	if err != nil {
		return nil, fmt.Errorf("comments for %s: %w", design, err)
	}
	return comments, nil
}

func (s *CommentService) validate(ctx context.Context, design, text, author string) (string, string, error) {
	text = strings.TrimSpace(text)
	author = strings.TrimSpace(author)

	if design == "" {
		return "", "", fmt.Errorf("%w: choose a design to comment on", domain.ErrInvalidInput)
	}
	if text == "" {
		return "", "", fmt.Errorf("%w: feedback text is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return "", "", fmt.Errorf("%w: feedback must be at most %d characters", domain.ErrInvalidInput, maxCommentLength)
	}
	if utf8.RuneCountInString(author) > maxAuthorLength {
		return "", "", fmt.Errorf("%w: name must be at most %d characters", domain.ErrInvalidInput, maxAuthorLength)
	}

	ok, err := s.designs.Exists(ctx, design)
	if err != nil {
		return "", "", fmt.Errorf("check design: %w", err)
	}
	if !ok {
		return "", "", fmt.Errorf("%w: unknown design %q", domain.ErrInvalidInput, design)
	}
	return text, author, nil
}
