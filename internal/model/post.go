package model

import (
	"time"
)

const (
	PostStatusActive  = "active"
	PostStatusDeleted = "deleted"
)

type Post struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	// Computed fields (not in database)
	ImageID  *int64 `db:"-"`
	ImageURL string `db:"-"`
}

// PostImage is the bridge row linking a post slot to an image.
type PostImage struct {
	PostID       int64     `db:"post_id"`
	ImageID      int64     `db:"image_id"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
}
