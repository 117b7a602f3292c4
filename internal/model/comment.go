package model

import "time"

const MaxCommentLength = 1000

// Comment 活動留言
type Comment struct {
	ID         string    `json:"id" db:"id"`
	EventID    string    `json:"event_id" db:"event_id"`
	UserRef    string    `json:"user_ref" db:"user_ref"`
	AuthorName string    `json:"author_name" db:"author_name"`
	Text       string    `json:"text" db:"text"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type CreateCommentRequest struct {
	AuthorName string `json:"author_name"`
	Text       string `json:"text" binding:"required"`
}
