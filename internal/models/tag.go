package models

import "time"

// Tag is a couple-scoped label. Tags are immutable apart from deletion.
type Tag struct {
	ID        int64
	CoupleID  int64
	Label     string
	Deleted   bool
	DeletedAt *time.Time
	CreatedAt time.Time
}

// TagAssignment links a tag to a content item. Removal soft-deletes the row;
// re-adding the tag creates a new row.
type TagAssignment struct {
	ID        int64
	TagID     int64
	ContentID int64
	Deleted   bool
	DeletedAt *time.Time
	CreatedAt time.Time
}
