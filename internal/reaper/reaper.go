// Package reaper deletes images nobody owns from object storage and the
// metadata store.
package reaper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/zeebo/errs"

	"github.com/ktb-community/board/internal/db"
	"github.com/ktb-community/board/internal/model"
	"github.com/ktb-community/board/internal/repository"
	"github.com/ktb-community/board/internal/storage"
)

// Error is the reaper error class.
var Error = errs.Class("reaper")

// errIneligible aborts a per-image unit of work without counting a failure.
var errIneligible = errors.New("image no longer eligible")

// Config contains configurable values for the reaper.
type Config struct {
	Enabled      bool
	Interval     time.Duration
	SafetyMargin time.Duration // minimum age of an unreferenced permanent image before it is swept
}

type Phase string

const (
	PhaseTTL    Phase = "ttl"
	PhaseOrphan Phase = "orphan"
)

// PhaseStats summarizes one sweep phase.
type PhaseStats struct {
	Phase      Phase
	Candidates int
	Deleted    int
	Skipped    int
	Failed     int
	Duration   time.Duration
	Err        error // candidate enumeration failure, if any
}

// RunStats summarizes one run. Overlapped is set when another run held the
// lock and this one did nothing.
type RunStats struct {
	TTL        PhaseStats
	Orphan     PhaseStats
	Overlapped bool
}

// Reaper runs the two-phase orphan sweep on a fixed interval.
type Reaper struct {
	log     *slog.Logger
	config  Config
	db      *sqlx.DB
	storage storage.Gateway

	nowFn     func() time.Time
	running   sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

func New(log *slog.Logger, config Config, database *sqlx.DB, gateway storage.Gateway) *Reaper {
	return &Reaper{
		log:     log,
		config:  config,
		db:      database,
		storage: gateway,

		nowFn:  time.Now,
		closed: make(chan struct{}),
	}
}

// Run sweeps immediately and then once per interval until ctx is cancelled
// or Close is called. Failures inside a run never stop the loop.
func (r *Reaper) Run(ctx context.Context) error {
	if !r.config.Enabled {
		r.log.Info("reaper disabled")
		return nil
	}
	if r.config.Interval <= 0 {
		return Error.New("interval must be positive, got %s", r.config.Interval)
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.log.Info("reaper started", "interval", r.config.Interval.String(), "safety_margin", r.config.SafetyMargin.String())
	r.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-r.closed:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// Close stops the loop started by Run.
func (r *Reaper) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}

// TestingSetNow allows tests to have the reaper act as if the current time is whatever they want.
func (r *Reaper) TestingSetNow(nowFn func() time.Time) {
	r.nowFn = nowFn
}

// RunOnce executes the TTL phase and then the orphan phase. The phases are
// independent: an enumeration failure in one does not skip the other.
func (r *Reaper) RunOnce(ctx context.Context) RunStats {
	if !r.running.TryLock() {
		r.log.Warn("reaper run skipped, previous run still active")
		return RunStats{Overlapped: true}
	}
	defer r.running.Unlock()

	now := r.nowFn().UTC()
	threshold := now.Add(-r.config.SafetyMargin)
	images := repository.NewImageRepository(r.db)

	var stats RunStats

	stats.TTL = r.sweep(ctx, PhaseTTL, func() ([]*model.Image, error) {
		return images.FindExpiredProvisional(ctx, now)
	}, expiredAt(now))

	stats.Orphan = r.sweep(ctx, PhaseOrphan, func() ([]*model.Image, error) {
		return images.FindPermanentUnreferenced(ctx, threshold)
	}, unreferencedBefore(threshold))

	return stats
}

// eligibleFunc re-checks a candidate inside its deletion transaction.
type eligibleFunc func(ctx context.Context, images repository.ImageRepository, img *model.Image) (bool, error)

// expiredAt matches provisional images past their deadline that no owner
// points at.
func expiredAt(now time.Time) eligibleFunc {
	return func(ctx context.Context, images repository.ImageRepository, img *model.Image) (bool, error) {
		if !img.IsExpired(now) {
			return false, nil
		}
		return unreferenced(ctx, images, img)
	}
}

// unreferencedBefore matches permanent images older than threshold that no
// owner points at.
func unreferencedBefore(threshold time.Time) eligibleFunc {
	return func(ctx context.Context, images repository.ImageRepository, img *model.Image) (bool, error) {
		if !img.IsPermanent() || !img.CreatedAt.Before(threshold) {
			return false, nil
		}
		return unreferenced(ctx, images, img)
	}
}

func unreferenced(ctx context.Context, images repository.ImageRepository, img *model.Image) (bool, error) {
	refs, err := images.References(ctx, img.ID)
	if err != nil {
		return false, err
	}
	return len(refs) == 0, nil
}

func (r *Reaper) sweep(ctx context.Context, phase Phase, find func() ([]*model.Image, error), eligible eligibleFunc) PhaseStats {
	start := time.Now()
	stats := PhaseStats{Phase: phase}
	log := r.log.With("phase", string(phase))

	candidates, err := find()
	if err != nil {
		stats.Err = Error.Wrap(err)
		stats.Duration = time.Since(start)
		log.Error("failed to list candidates", "error", err)
		return stats
	}

	stats.Candidates = len(candidates)
	if len(candidates) == 0 {
		stats.Duration = time.Since(start)
		log.Info("no candidates")
		return stats
	}

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			log.Warn("sweep interrupted", "remaining", stats.Candidates-stats.Deleted-stats.Skipped-stats.Failed)
			break
		}

		err := r.deleteImage(ctx, candidate.ID, eligible)
		switch {
		case err == nil:
			stats.Deleted++
			log.Debug("image deleted", "image_id", candidate.ID, "url", candidate.URL)
		case errors.Is(err, errIneligible):
			stats.Skipped++
			log.Info("image skipped", "image_id", candidate.ID)
		default:
			stats.Failed++
			log.Error("failed to delete image", "image_id", candidate.ID, "url", candidate.URL, "error", err)
		}
	}

	stats.Duration = time.Since(start)
	log.Info("phase finished",
		"candidates", stats.Candidates,
		"deleted", stats.Deleted,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return stats
}

// deleteImage is the per-image unit of work. It runs in its own transaction,
// re-reads the image, and removes the object before the row. A missing
// object counts as already removed.
func (r *Reaper) deleteImage(ctx context.Context, id int64, eligible eligibleFunc) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		images := repository.NewImageRepository(tx)

		img, err := images.ByID(ctx, id)
		if errors.Is(err, repository.ErrImageNotFound) {
			return errIneligible
		}
		if err != nil {
			return err
		}

		ok, err := eligible(ctx, images, img)
		if err != nil {
			return err
		}
		if !ok {
			return errIneligible
		}

		key, err := r.storage.KeyFromURL(img.URL)
		if err != nil {
			return Error.Wrap(err)
		}

		err = r.storage.Delete(ctx, key)
		if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			return Error.Wrap(err)
		}
		if errors.Is(err, storage.ErrObjectNotFound) {
			r.log.Debug("object already gone", "image_id", id, "key", key)
		}

		return images.Delete(ctx, id)
	})
}
