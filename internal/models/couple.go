package models

import "time"

// MaxCoupleMembers is the size limit of a couple's member set
const MaxCoupleMembers = 2

// CoupleStatus is the lifecycle state of a couple relationship
type CoupleStatus string

const (
	CoupleStatusActive   CoupleStatus = "ACTIVE"
	CoupleStatusInactive CoupleStatus = "INACTIVE"
)

// Couple represents the relationship shared by two users
type Couple struct {
	ID            int64
	Status        CoupleStatus
	StartDate     *time.Time // calendar date, midnight UTC
	SharedMessage *string
	MemberIDs     []int64
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasMember checks if a user is part of the couple
func (c *Couple) HasMember(userID int64) bool {
	for _, id := range c.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// RemoveMember drops userID from the member set and reports whether it was present
func (c *Couple) RemoveMember(userID int64) bool {
	for i, id := range c.MemberIDs {
		if id == userID {
			c.MemberIDs = append(c.MemberIDs[:i:i], c.MemberIDs[i+1:]...)
			return true
		}
	}
	return false
}

// CoupleWithMembers combines a couple with its member details
type CoupleWithMembers struct {
	Couple
	Members []User
}
