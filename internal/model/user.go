package model

import (
	"time"
)

const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

type User struct {
	ID             int64     `db:"id"`
	Email          string    `db:"email"`
	PasswordHash   string    `db:"password_hash"`
	Nickname       string    `db:"nickname"`
	ProfileImageID *int64    `db:"profile_image_id"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`

	// Computed fields (not in database)
	ProfileImageURL string `db:"-"`
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
