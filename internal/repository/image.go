package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ktb-community/board/internal/model"
)

var (
	ErrImageNotFound      = errors.New("image not found")
	ErrDuplicateImageURL  = errors.New("image url already registered")
	ErrImageAlreadyLinked = errors.New("image already linked to an owner")
)

const imageColumns = `id, url, size, original_filename, provisional_until, created_at`

// ImageRepository stores image metadata. It holds no lifecycle rules; those
// live in the service layer.
type ImageRepository interface {
	Create(ctx context.Context, image *model.Image) error
	ByID(ctx context.Context, id int64) (*model.Image, error)
	ExistsByURL(ctx context.Context, url string) (bool, error)
	FindExpiredProvisional(ctx context.Context, now time.Time) ([]*model.Image, error)
	FindPermanentUnreferenced(ctx context.Context, createdBefore time.Time) ([]*model.Image, error)
	ClearProvisional(ctx context.Context, id int64) error
	SetProvisionalUntil(ctx context.Context, id int64, until time.Time) error
	References(ctx context.Context, id int64) ([]model.OwnerRef, error)
	Delete(ctx context.Context, id int64) error
}

type imageRepository struct {
	db sqlx.ExtContext
}

// NewImageRepository binds the repository to a pool or a transaction.
func NewImageRepository(db sqlx.ExtContext) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(ctx context.Context, image *model.Image) error {
	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now()
	}
	image.CreatedAt = image.CreatedAt.UTC()

	query := `INSERT INTO images (url, size, original_filename, provisional_until, created_at)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id`

	err := sqlx.GetContext(ctx, r.db, &image.ID, query,
		image.URL,
		image.Size,
		image.OriginalFilename,
		utcPtr(image.ProvisionalUntil),
		image.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateImageURL
		}
		return err
	}

	return nil
}

func (r *imageRepository) ByID(ctx context.Context, id int64) (*model.Image, error) {
	image := &model.Image{}
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`

	err := sqlx.GetContext(ctx, r.db, image, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, err
	}

	return image, nil
}

func (r *imageRepository) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var exists int
	err := sqlx.GetContext(ctx, r.db, &exists, `SELECT 1 FROM images WHERE url = $1 LIMIT 1`, url)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindExpiredProvisional returns provisional images whose TTL ended before now.
func (r *imageRepository) FindExpiredProvisional(ctx context.Context, now time.Time) ([]*model.Image, error) {
	images := []*model.Image{}
	query := `SELECT ` + imageColumns + ` FROM images
	          WHERE provisional_until IS NOT NULL AND provisional_until < $1
	          ORDER BY id`

	err := sqlx.SelectContext(ctx, r.db, &images, query, now.UTC())
	if err != nil {
		return nil, err
	}
	return images, nil
}

// FindPermanentUnreferenced returns permanent images created before the
// threshold that neither a post bridge row nor a user profile points at.
// These are images that lost their owner without going through detach.
func (r *imageRepository) FindPermanentUnreferenced(ctx context.Context, createdBefore time.Time) ([]*model.Image, error) {
	images := []*model.Image{}
	query := `SELECT ` + imageColumns + ` FROM images i
	          WHERE i.provisional_until IS NULL
	            AND i.created_at < $1
	            AND NOT EXISTS (SELECT 1 FROM users u WHERE u.profile_image_id = i.id)
	            AND NOT EXISTS (SELECT 1 FROM post_images pi WHERE pi.image_id = i.id)
	          ORDER BY i.id`

	err := sqlx.SelectContext(ctx, r.db, &images, query, createdBefore.UTC())
	if err != nil {
		return nil, err
	}
	return images, nil
}

func (r *imageRepository) ClearProvisional(ctx context.Context, id int64) error {
	return r.execOne(ctx, `UPDATE images SET provisional_until = NULL WHERE id = $1`, id)
}

func (r *imageRepository) SetProvisionalUntil(ctx context.Context, id int64, until time.Time) error {
	return r.execOne(ctx, `UPDATE images SET provisional_until = $1 WHERE id = $2`, until.UTC(), id)
}

// References lists every owner slot currently pointing at the image.
func (r *imageRepository) References(ctx context.Context, id int64) ([]model.OwnerRef, error) {
	var refs []model.OwnerRef

	var userIDs []int64
	err := sqlx.SelectContext(ctx, r.db, &userIDs,
		`SELECT id FROM users WHERE profile_image_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	for _, userID := range userIDs {
		refs = append(refs, model.ProfileOwner(userID))
	}

	var bridges []model.PostImage
	err = sqlx.SelectContext(ctx, r.db, &bridges,
		`SELECT post_id, image_id, display_order, created_at FROM post_images WHERE image_id = $1 ORDER BY post_id, display_order`, id)
	if err != nil {
		return nil, err
	}
	for _, b := range bridges {
		refs = append(refs, model.PostOwner(b.PostID, b.DisplayOrder))
	}

	return refs, nil
}

func (r *imageRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM images WHERE id = $1`, id)
}

func (r *imageRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return expectRow(result, ErrImageNotFound)
}
