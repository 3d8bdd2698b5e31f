package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"github.com/ktb-community/board/internal/db"
	"github.com/ktb-community/board/internal/model"
	"github.com/ktb-community/board/internal/repository"
)

const maxTitleLength = 26

// postImageSlot is the single image slot posts use today.
const postImageSlot = 1

type PostService struct {
	log       *slog.Logger
	db        *sqlx.DB
	posts     repository.PostRepository
	bridges   repository.PostImageRepository
	images    repository.ImageRepository
	users     repository.UserRepository
	lifecycle *LifecycleManager
}

func NewPostService(log *slog.Logger, database *sqlx.DB, lifecycle *LifecycleManager) *PostService {
	return &PostService{
		log:       log,
		db:        database,
		posts:     repository.NewPostRepository(database),
		bridges:   repository.NewPostImageRepository(database),
		images:    repository.NewImageRepository(database),
		users:     repository.NewUserRepository(database),
		lifecycle: lifecycle,
	}
}

type PostInput struct {
	Title   string
	Content string
	ImageID *int64
}

// PostUpdate carries a partial post edit. ImageID wins over RemoveImage.
type PostUpdate struct {
	Title       *string
	Content     *string
	ImageID     *int64
	RemoveImage bool
}

func (s *PostService) Create(ctx context.Context, userID int64, in PostInput) (*model.Post, error) {
	err := validatePost(in.Title, in.Content)
	if err != nil {
		return nil, err
	}

	author, err := s.users.ByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) || (err == nil && !author.IsActive()) {
		return nil, NotFoundError.New("user %d", userID)
	}
	if err != nil {
		return nil, PersistenceError.Wrap(err)
	}

	post := &model.Post{
		UserID:  userID,
		Title:   strings.TrimSpace(in.Title),
		Content: in.Content,
		Status:  model.PostStatusActive,
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := repository.NewPostRepository(tx).Create(ctx, post)
		if err != nil {
			return err
		}
		if in.ImageID != nil {
			return s.lifecycle.Attach(ctx, tx, *in.ImageID, model.PostOwner(post.ID, postImageSlot))
		}
		return nil
	})
	if err != nil {
		return nil, persistence(err)
	}

	s.log.Info("post created", "post_id", post.ID, "user_id", userID)
	return s.ByID(ctx, post.ID)
}

// ByID loads an active post with its image filled in.
func (s *PostService) ByID(ctx context.Context, id int64) (*model.Post, error) {
	post, err := s.posts.ByID(ctx, id)
	if errors.Is(err, repository.ErrPostNotFound) {
		return nil, NotFoundError.New("post %d", id)
	}
	if err != nil {
		return nil, PersistenceError.Wrap(err)
	}

	bridge, err := s.bridges.BySlot(ctx, id, postImageSlot)
	switch {
	case err == nil:
		post.ImageID = &bridge.ImageID
		image, err := s.images.ByID(ctx, bridge.ImageID)
		if err == nil {
			post.ImageURL = image.URL
		}
	case !errors.Is(err, repository.ErrPostImageNotFound):
		return nil, PersistenceError.Wrap(err)
	}

	return post, nil
}

func (s *PostService) Update(ctx context.Context, postID, actorID int64, in PostUpdate) (*model.Post, error) {
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		posts := repository.NewPostRepository(tx)

		post, err := s.ownedPost(ctx, posts, postID, actorID)
		if err != nil {
			return err
		}

		if in.Title != nil {
			post.Title = strings.TrimSpace(*in.Title)
		}
		if in.Content != nil {
			post.Content = *in.Content
		}
		err = validatePost(post.Title, post.Content)
		if err != nil {
			return err
		}

		err = posts.Update(ctx, post)
		if err != nil {
			return err
		}

		return s.lifecycle.Apply(ctx, tx, model.PostOwner(postID, postImageSlot), in.ImageID, in.RemoveImage)
	})
	if err != nil {
		return nil, persistence(err)
	}

	s.log.Info("post updated", "post_id", postID)
	return s.ByID(ctx, postID)
}

// Delete soft-deletes the post and releases every image it held back to
// provisional so the reaper can collect them.
func (s *PostService) Delete(ctx context.Context, postID, actorID int64) error {
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		posts := repository.NewPostRepository(tx)

		_, err := s.ownedPost(ctx, posts, postID, actorID)
		if err != nil {
			return err
		}

		bridgeRepo := repository.NewPostImageRepository(tx)
		bridges, err := bridgeRepo.ByPost(ctx, postID)
		if err != nil {
			return err
		}
		for _, bridge := range bridges {
			_, err = s.lifecycle.Detach(ctx, tx, model.PostOwner(postID, bridge.DisplayOrder))
			if err != nil {
				return err
			}
		}

		// a soft-deleted post keeps no bridge rows
		leftover, err := bridgeRepo.DeleteByPost(ctx, postID)
		if err != nil {
			return err
		}
		if leftover > 0 {
			s.log.Warn("post bridges left after detach", "post_id", postID, "count", leftover)
		}

		return posts.SoftDelete(ctx, postID)
	})
	if err != nil {
		return persistence(err)
	}

	s.log.Info("post deleted", "post_id", postID)
	return nil
}

func (s *PostService) ownedPost(ctx context.Context, posts repository.PostRepository, postID, actorID int64) (*model.Post, error) {
	post, err := posts.ByID(ctx, postID)
	if errors.Is(err, repository.ErrPostNotFound) {
		return nil, NotFoundError.New("post %d", postID)
	}
	if err != nil {
		return nil, err
	}
	if post.UserID != actorID {
		return nil, ForbiddenError.New("user %d cannot modify post %d", actorID, postID)
	}
	return post, nil
}

func validatePost(title, content string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ValidationError.New("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return ValidationError.New("title is too long (max %d characters)", maxTitleLength)
	}
	if strings.TrimSpace(content) == "" {
		return ValidationError.New("content is required")
	}
	return nil
}
