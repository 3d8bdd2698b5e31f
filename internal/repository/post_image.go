package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ktb-community/board/internal/model"
)

var ErrPostImageNotFound = errors.New("post image not found")

// PostImageRepository manages the ordered bridge between posts and images.
type PostImageRepository interface {
	Create(ctx context.Context, bridge *model.PostImage) error
	ByPost(ctx context.Context, postID int64) ([]*model.PostImage, error)
	BySlot(ctx context.Context, postID int64, slot int) (*model.PostImage, error)
	DeleteSlot(ctx context.Context, postID int64, slot int) error
	DeleteByPost(ctx context.Context, postID int64) (int64, error)
}

type postImageRepository struct {
	db sqlx.ExtContext
}

func NewPostImageRepository(db sqlx.ExtContext) PostImageRepository {
	return &postImageRepository{db: db}
}

func (r *postImageRepository) Create(ctx context.Context, bridge *model.PostImage) error {
	if bridge.CreatedAt.IsZero() {
		bridge.CreatedAt = time.Now()
	}
	bridge.CreatedAt = bridge.CreatedAt.UTC()
	if bridge.DisplayOrder < 1 {
		bridge.DisplayOrder = 1
	}

	query := `INSERT INTO post_images (post_id, image_id, display_order, created_at) VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, bridge.PostID, bridge.ImageID, bridge.DisplayOrder, bridge.CreatedAt)
	if uniqueViolationOn(err, "image_id") {
		return ErrImageAlreadyLinked
	}
	return err
}

func (r *postImageRepository) ByPost(ctx context.Context, postID int64) ([]*model.PostImage, error) {
	bridges := []*model.PostImage{}
	query := `SELECT post_id, image_id, display_order, created_at FROM post_images
	          WHERE post_id = $1 ORDER BY display_order`

	err := sqlx.SelectContext(ctx, r.db, &bridges, query, postID)
	if err != nil {
		return nil, err
	}
	return bridges, nil
}

// DeleteByPost removes every bridge row of a post and reports how many went.
func (r *postImageRepository) DeleteByPost(ctx context.Context, postID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM post_images WHERE post_id = $1`, postID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *postImageRepository) BySlot(ctx context.Context, postID int64, slot int) (*model.PostImage, error) {
	bridge := &model.PostImage{}
	query := `SELECT post_id, image_id, display_order, created_at FROM post_images
	          WHERE post_id = $1 AND display_order = $2`

	err := sqlx.GetContext(ctx, r.db, bridge, query, postID, slot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostImageNotFound
	}
	if err != nil {
		return nil, err
	}
	return bridge, nil
}

func (r *postImageRepository) DeleteSlot(ctx context.Context, postID int64, slot int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM post_images WHERE post_id = $1 AND display_order = $2`, postID, slot)
	if err != nil {
		return err
	}
	return expectRow(result, ErrPostImageNotFound)
}
