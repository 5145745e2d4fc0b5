package models

import "time"

// UserStatus tells whether a user currently belongs to a couple.
type UserStatus string

const (
	UserStatusSingle  UserStatus = "SINGLE"
	UserStatusCoupled UserStatus = "COUPLED"
)

// User represents an account that can join a couple
type User struct {
	ID        int64
	Email     string
	Name      string
	Status    UserStatus
	CoupleID  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsSingle reports whether the user is free to redeem an invitation
func (u *User) IsSingle() bool {
	return u.Status == UserStatusSingle
}

// Actor is the authenticated user acting on a request together with the
// couple they belong to (nil when single).
type Actor struct {
	UserID   int64
	CoupleID *int64
}
