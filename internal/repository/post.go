package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ktb-community/board/internal/model"
)

var ErrPostNotFound = errors.New("post not found")

const postColumns = `id, user_id, title, content, status, created_at, updated_at`

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	ByID(ctx context.Context, id int64) (*model.Post, error)
	Update(ctx context.Context, post *model.Post) error
	SoftDelete(ctx context.Context, id int64) error
}

type postRepository struct {
	db sqlx.ExtContext
}

func NewPostRepository(db sqlx.ExtContext) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	post.CreatedAt = post.CreatedAt.UTC()
	post.UpdatedAt = post.CreatedAt
	if post.Status == "" {
		post.Status = model.PostStatusActive
	}

	query := `INSERT INTO posts (user_id, title, content, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id`

	return sqlx.GetContext(ctx, r.db, &post.ID, query,
		post.UserID,
		post.Title,
		post.Content,
		post.Status,
		post.CreatedAt,
		post.UpdatedAt,
	)
}

// ByID returns active posts only; soft-deleted posts read as not found.
func (r *postRepository) ByID(ctx context.Context, id int64) (*model.Post, error) {
	post := &model.Post{}
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1 AND status = $2`

	err := sqlx.GetContext(ctx, r.db, post, query, id, model.PostStatusActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}

	return post, nil
}

func (r *postRepository) Update(ctx context.Context, post *model.Post) error {
	post.UpdatedAt = time.Now().UTC()

	query := `UPDATE posts SET title = $1, content = $2, updated_at = $3 WHERE id = $4 AND status = $5`

	result, err := r.db.ExecContext(ctx, query, post.Title, post.Content, post.UpdatedAt, post.ID, model.PostStatusActive)
	if err != nil {
		return err
	}

	return expectRow(result, ErrPostNotFound)
}

func (r *postRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `UPDATE posts SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, model.PostStatusDeleted, time.Now().UTC(), id, model.PostStatusActive)
	if err != nil {
		return err
	}

	return expectRow(result, ErrPostNotFound)
}
