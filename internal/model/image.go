package model

import (
	"time"
)

// Image is the metadata record for one uploaded object.
//
// ProvisionalUntil nil means the image is permanent (attached to an owner).
// A non-nil value is the deadline after which the reaper may reclaim it.
type Image struct {
	ID               int64      `db:"id"`
	URL              string     `db:"url"`
	Size             int64      `db:"size"`
	OriginalFilename string     `db:"original_filename"`
	ProvisionalUntil *time.Time `db:"provisional_until"`
	CreatedAt        time.Time  `db:"created_at"`
}

func (i *Image) IsPermanent() bool {
	return i.ProvisionalUntil == nil
}

// IsExpired reports whether a provisional image has outlived its TTL at now.
func (i *Image) IsExpired(now time.Time) bool {
	return i.ProvisionalUntil != nil && i.ProvisionalUntil.Before(now)
}
