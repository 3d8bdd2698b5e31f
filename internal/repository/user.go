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
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateNickname = errors.New("nickname already exists")
)

const userColumns = `id, email, password_hash, nickname, profile_image_id, status, created_at, updated_at`

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id int64) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	ProfileImageID(ctx context.Context, userID int64) (*int64, error)
	SetProfileImage(ctx context.Context, userID int64, imageID *int64) error
}

type userRepository struct {
	db sqlx.ExtContext
}

func NewUserRepository(db sqlx.ExtContext) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt
	if user.Status == "" {
		user.Status = model.UserStatusActive
	}

	query := `INSERT INTO users (email, password_hash, nickname, profile_image_id, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`

	err := sqlx.GetContext(ctx, r.db, &user.ID, query,
		user.Email,
		user.PasswordHash,
		user.Nickname,
		user.ProfileImageID,
		user.Status,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapUserConstraint(err)
	}

	return nil
}

func (r *userRepository) ByID(ctx context.Context, id int64) (*model.User, error) {
	user := &model.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	err := sqlx.GetContext(ctx, r.db, user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	err := sqlx.GetContext(ctx, r.db, user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Update writes the mutable profile fields. The profile image reference is
// owned by SetProfileImage so it only moves through the lifecycle manager.
func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	query := `UPDATE users SET nickname = $1, status = $2, updated_at = $3 WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, user.Nickname, user.Status, user.UpdatedAt, user.ID)
	if err != nil {
		return mapUserConstraint(err)
	}

	return expectRow(result, ErrUserNotFound)
}

func (r *userRepository) ProfileImageID(ctx context.Context, userID int64) (*int64, error) {
	var imageID *int64
	err := sqlx.GetContext(ctx, r.db, &imageID, `SELECT profile_image_id FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return imageID, nil
}

func (r *userRepository) SetProfileImage(ctx context.Context, userID int64, imageID *int64) error {
	query := `UPDATE users SET profile_image_id = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, imageID, time.Now().UTC(), userID)
	if err != nil {
		return mapUserConstraint(err)
	}

	return expectRow(result, ErrUserNotFound)
}

func mapUserConstraint(err error) error {
	switch {
	case uniqueViolationOn(err, "email"):
		return ErrDuplicateEmail
	case uniqueViolationOn(err, "nickname"):
		return ErrDuplicateNickname
	case uniqueViolationOn(err, "profile_image_id"):
		return ErrImageAlreadyLinked
	}
	return err
}

func expectRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
