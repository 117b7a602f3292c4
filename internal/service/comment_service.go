package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"festival-booking/internal/model"
	"festival-booking/internal/repository"
	apperrors "festival-booking/pkg/app_errors"

	"github.com/google/uuid"
)

const anonymousAuthor = "Anonymous"

type CommentService interface {
	Post(ctx context.Context, eventID, userRef, authorName, text string) (*model.Comment, error)
	ListForEvent(ctx context.Context, eventID string) ([]*model.Comment, error)
}

type CommentServiceImpl struct {
	store repository.Store
	now   Clock
}

func NewCommentService(store repository.Store) CommentService {
	return &CommentServiceImpl{store: store, now: systemClock}
}

func (s *CommentServiceImpl) Post(ctx context.Context, eventID, userRef, authorName, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.ErrCommentEmpty
	}
	if n := utf8.RuneCountInString(text); n > model.MaxCommentLength {
		return nil, fmt.Errorf("%w: comment is %d characters, limit is %d", apperrors.ErrInvalidInput, n, model.MaxCommentLength)
	}

	if _, err := s.store.FindEvent(ctx, eventID); err != nil {
		return nil, err
	}

	authorName = strings.TrimSpace(authorName)
	if authorName == "" {
		authorName = anonymousAuthor
	}

	return s.store.CreateComment(ctx, &model.Comment{
		ID:         uuid.New().String(),
		EventID:    eventID,
		UserRef:    strings.TrimSpace(userRef),
		AuthorName: authorName,
		Text:       text,
		CreatedAt:  stamp(s.now()),
	})
}

func (s *CommentServiceImpl) ListForEvent(ctx context.Context, eventID string) ([]*model.Comment, error) {
	if _, err := s.store.FindEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListCommentsForEvent(ctx, eventID)
}
