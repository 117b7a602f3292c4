package repository

import (
	"context"
	"fmt"

	"festival-booking/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) (*model.Comment, error)
	FindByEventID(ctx context.Context, eventID string) ([]*model.Comment, error)

	// Transaction methods
	DeleteByEventID(ctx context.Context, tx pgx.Tx, eventID string) error
}

type CommentRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &CommentRepositoryImpl{
		pool: pool,
	}
}

func (r *CommentRepositoryImpl) Create(ctx context.Context, comment *model.Comment) (*model.Comment, error) {
	query := `
		INSERT INTO comments (id, event_id, user_ref, author_name, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, event_id, user_ref, author_name, text, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		comment.ID, comment.EventID, comment.UserRef, comment.AuthorName, comment.Text, comment.CreatedAt,
	).Scan(
		&comment.ID,
		&comment.EventID,
		&comment.UserRef,
		&comment.AuthorName,
		&comment.Text,
		&comment.CreatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	return comment, nil
}

func (r *CommentRepositoryImpl) FindByEventID(ctx context.Context, eventID string) ([]*model.Comment, error) {
	query := `
		SELECT id, event_id, user_ref, author_name, text, created_at
		FROM comments
		WHERE event_id = $1
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]*model.Comment, 0)
	for rows.Next() {
		var comment model.Comment
		err := rows.Scan(
			&comment.ID,
			&comment.EventID,
			&comment.UserRef,
			&comment.AuthorName,
			&comment.Text,
			&comment.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		comments = append(comments, &comment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return comments, nil
}

func (r *CommentRepositoryImpl) DeleteByEventID(ctx context.Context, tx pgx.Tx, eventID string) error {
	_, err := tx.Exec(ctx, `DELETE FROM comments WHERE event_id = $1`, eventID)
	return err
}
