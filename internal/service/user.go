package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/ktb-community/board/internal/db"
	"github.com/ktb-community/board/internal/model"
	"github.com/ktb-community/board/internal/repository"
	"github.com/ktb-community/board/internal/validation"
)

type UserService struct {
	log       *slog.Logger
	db        *sqlx.DB
	users     repository.UserRepository
	images    repository.ImageRepository
	lifecycle *LifecycleManager
}

func NewUserService(log *slog.Logger, database *sqlx.DB, lifecycle *LifecycleManager) *UserService {
	return &UserService{
		log:       log,
		db:        database,
		users:     repository.NewUserRepository(database),
		images:    repository.NewImageRepository(database),
		lifecycle: lifecycle,
	}
}

type SignupInput struct {
	Email    string
	Password string
	Nickname string
	ImageID  *int64
}

// ProfileUpdate carries a partial profile edit. ImageID wins over RemoveImage.
type ProfileUpdate struct {
	Nickname    *string
	ImageID     *int64
	RemoveImage bool
}

// Signup creates an account and attaches the optional profile image in the
// same transaction.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	email := validation.NormalizeEmail(in.Email)

	err := validation.ValidateEmail(email)
	if err != nil {
		return nil, ValidationError.Wrap(err)
	}
	err = validation.ValidatePassword(in.Password)
	if err != nil {
		return nil, ValidationError.Wrap(err)
	}
	err = validation.ValidateNickname(in.Nickname)
	if err != nil {
		return nil, ValidationError.Wrap(err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hashed),
		Nickname:     in.Nickname,
		Status:       model.UserStatusActive,
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := repository.NewUserRepository(tx).Create(ctx, user)
		if err != nil {
			return userConflict(err)
		}
		if in.ImageID != nil {
			return s.lifecycle.Attach(ctx, tx, *in.ImageID, model.ProfileOwner(user.ID))
		}
		return nil
	})
	if err != nil {
		return nil, persistence(err)
	}

	s.log.Info("user signed up", "user_id", user.ID)
	return s.ByID(ctx, user.ID)
}

// ByID loads a user with the profile image URL filled in.
func (s *UserService) ByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.ByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, NotFoundError.New("user %d", id)
	}
	if err != nil {
		return nil, PersistenceError.Wrap(err)
	}

	if user.ProfileImageID != nil {
		image, err := s.images.ByID(ctx, *user.ProfileImageID)
		if err == nil {
			user.ProfileImageURL = image.URL
		} else {
			s.log.Warn("profile image lookup failed", "user_id", id, "image_id", *user.ProfileImageID, "error", err)
		}
	}

	return user, nil
}

// UpdateProfile applies a partial edit for the account owner.
func (s *UserService) UpdateProfile(ctx context.Context, userID, actorID int64, in ProfileUpdate) (*model.User, error) {
	if userID != actorID {
		return nil, ForbiddenError.New("user %d cannot edit user %d", actorID, userID)
	}
	if in.Nickname != nil {
		err := validation.ValidateNickname(*in.Nickname)
		if err != nil {
			return nil, ValidationError.Wrap(err)
		}
	}

	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		users := repository.NewUserRepository(tx)

		user, err := users.ByID(ctx, userID)
		if errors.Is(err, repository.ErrUserNotFound) {
			return NotFoundError.New("user %d", userID)
		}
		if err != nil {
			return err
		}

		if in.Nickname != nil && *in.Nickname != user.Nickname {
			user.Nickname = *in.Nickname
			err = users.Update(ctx, user)
			if err != nil {
				return userConflict(err)
			}
		}

		return s.lifecycle.Apply(ctx, tx, model.ProfileOwner(userID), in.ImageID, in.RemoveImage)
	})
	if err != nil {
		return nil, persistence(err)
	}

	s.log.Info("profile updated", "user_id", userID)
	return s.ByID(ctx, userID)
}

func userConflict(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail):
		return ConflictError.New("email already exists")
	case errors.Is(err, repository.ErrDuplicateNickname):
		return ConflictError.New("nickname already exists")
	}
	return err
}
