package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ktb-community/board/internal/model"
	"github.com/ktb-community/board/internal/repository"
)

// LifecycleManager moves images between provisional and permanent as owners
// attach and detach them. Every method runs on the caller's transaction so the
// image state changes commit together with the owner row.
type LifecycleManager struct {
	log   *slog.Logger
	ttl   time.Duration
	nowFn func() time.Time
}

func NewLifecycleManager(log *slog.Logger, provisionalTTL time.Duration) *LifecycleManager {
	return &LifecycleManager{
		log:   log,
		ttl:   provisionalTTL,
		nowFn: time.Now,
	}
}

// TestingSetNow overrides the clock used for restored TTLs.
func (m *LifecycleManager) TestingSetNow(nowFn func() time.Time) {
	m.nowFn = nowFn
}

// ownerSlot is the per-kind adapter behind an OwnerRef.
type ownerSlot interface {
	current(ctx context.Context) (*int64, error)
	link(ctx context.Context, imageID int64) error
	unlink(ctx context.Context) error
}

func (m *LifecycleManager) slot(tx sqlx.ExtContext, owner model.OwnerRef) (ownerSlot, error) {
	switch owner.Kind {
	case model.OwnerKindProfile:
		return &profileSlot{users: repository.NewUserRepository(tx), userID: owner.ID}, nil
	case model.OwnerKindPost:
		return &postSlot{bridges: repository.NewPostImageRepository(tx), postID: owner.ID, order: owner.Slot}, nil
	}
	return nil, ValidationError.New("unknown owner kind %q", owner.Kind)
}

// Attach makes the image permanent and points owner at it.
//
// It fails with NotFoundError when the image does not exist and with
// ConflictError when another owner already holds it or the owner's slot is
// taken by a different image. Attaching an image the owner already holds is a
// no-op apart from clearing any stale provisional deadline. On error the
// caller must roll back the transaction.
func (m *LifecycleManager) Attach(ctx context.Context, tx sqlx.ExtContext, imageID int64, owner model.OwnerRef) error {
	images := repository.NewImageRepository(tx)

	slot, err := m.slot(tx, owner)
	if err != nil {
		return err
	}

	// The update takes the image row lock, so concurrent attaches of one
	// image serialize here and the reference check below sees the winner.
	err = images.ClearProvisional(ctx, imageID)
	if errors.Is(err, repository.ErrImageNotFound) {
		return NotFoundError.New("image %d", imageID)
	}
	if err != nil {
		return PersistenceError.Wrap(err)
	}

	refs, err := images.References(ctx, imageID)
	if err != nil {
		return PersistenceError.Wrap(err)
	}
	held := false
	for _, ref := range refs {
		if ref != owner {
			return ConflictError.New("image %d is already attached to %s", imageID, ref)
		}
		held = true
	}
	if held {
		m.log.Debug("image already attached", "image_id", imageID, "owner", owner.String())
		return nil
	}

	current, err := slot.current(ctx)
	if err != nil {
		return persistence(err)
	}
	if current != nil {
		return ConflictError.New("%s already holds image %d", owner, *current)
	}

	err = slot.link(ctx, imageID)
	if errors.Is(err, repository.ErrImageAlreadyLinked) {
		return ConflictError.New("image %d is already attached", imageID)
	}
	if err != nil {
		return persistence(err)
	}

	m.log.Debug("image attached", "image_id", imageID, "owner", owner.String())
	return nil
}

// Detach releases the owner's image, if any, and restores its provisional
// deadline to now plus the TTL. It returns the released image id or nil.
func (m *LifecycleManager) Detach(ctx context.Context, tx sqlx.ExtContext, owner model.OwnerRef) (*int64, error) {
	slot, err := m.slot(tx, owner)
	if err != nil {
		return nil, err
	}

	current, err := slot.current(ctx)
	if err != nil {
		return nil, persistence(err)
	}
	if current == nil {
		return nil, nil
	}

	until := m.nowFn().Add(m.ttl)
	err = repository.NewImageRepository(tx).SetProvisionalUntil(ctx, *current, until)
	if err != nil && !errors.Is(err, repository.ErrImageNotFound) {
		return nil, PersistenceError.Wrap(err)
	}

	err = slot.unlink(ctx)
	if err != nil {
		return nil, persistence(err)
	}

	m.log.Debug("image detached", "image_id", *current, "owner", owner.String(), "provisional_until", until.UTC())
	return current, nil
}

// Replace detaches the owner's current image and attaches newImageID in the
// same transaction. Replacing an image with itself keeps it attached.
func (m *LifecycleManager) Replace(ctx context.Context, tx sqlx.ExtContext, owner model.OwnerRef, newImageID int64) error {
	slot, err := m.slot(tx, owner)
	if err != nil {
		return err
	}

	current, err := slot.current(ctx)
	if err != nil {
		return persistence(err)
	}
	if current != nil && *current == newImageID {
		return m.Attach(ctx, tx, newImageID, owner)
	}

	_, err = m.Detach(ctx, tx, owner)
	if err != nil {
		return err
	}

	return m.Attach(ctx, tx, newImageID, owner)
}

// Apply resolves an owner's image edit. A new image id wins over the remove
// flag; remove alone detaches; neither leaves the owner untouched.
func (m *LifecycleManager) Apply(ctx context.Context, tx sqlx.ExtContext, owner model.OwnerRef, imageID *int64, remove bool) error {
	switch {
	case imageID != nil:
		return m.Replace(ctx, tx, owner, *imageID)
	case remove:
		_, err := m.Detach(ctx, tx, owner)
		return err
	}
	return nil
}

type profileSlot struct {
	users  repository.UserRepository
	userID int64
}

func (s *profileSlot) current(ctx context.Context) (*int64, error) {
	id, err := s.users.ProfileImageID(ctx, s.userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, NotFoundError.New("user %d", s.userID)
	}
	return id, err
}

func (s *profileSlot) link(ctx context.Context, imageID int64) error {
	err := s.users.SetProfileImage(ctx, s.userID, &imageID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return NotFoundError.New("user %d", s.userID)
	}
	return err
}

func (s *profileSlot) unlink(ctx context.Context) error {
	err := s.users.SetProfileImage(ctx, s.userID, nil)
	if errors.Is(err, repository.ErrUserNotFound) {
		return NotFoundError.New("user %d", s.userID)
	}
	return err
}

type postSlot struct {
	bridges repository.PostImageRepository
	postID  int64
	order   int
}

func (s *postSlot) current(ctx context.Context) (*int64, error) {
	bridge, err := s.bridges.BySlot(ctx, s.postID, s.order)
	if errors.Is(err, repository.ErrPostImageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bridge.ImageID, nil
}

func (s *postSlot) link(ctx context.Context, imageID int64) error {
	return s.bridges.Create(ctx, &model.PostImage{
		PostID:       s.postID,
		ImageID:      imageID,
		DisplayOrder: s.order,
	})
}

func (s *postSlot) unlink(ctx context.Context) error {
	err := s.bridges.DeleteSlot(ctx, s.postID, s.order)
	if errors.Is(err, repository.ErrPostImageNotFound) {
		return nil
	}
	return err
}
