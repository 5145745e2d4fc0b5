package models

import (
	"strings"
	"time"
)

// ContentType is derived from whether a content item has a live schedule
type ContentType string

const (
	ContentTypeMemo     ContentType = "MEMO"
	ContentTypeSchedule ContentType = "SCHEDULE"
)

// ContentDetail is the user-authored part of a content item
type ContentDetail struct {
	Title       *string
	Description *string
	Completed   bool
}

// HasText reports whether at least one of title and description is non-blank
func (d ContentDetail) HasText() bool {
	return !isBlank(d.Title) || !isBlank(d.Description)
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// Content is a memo or scheduled item written by one member of a couple
type Content struct {
	ID        int64
	OwnerID   int64
	CoupleID  int64
	Detail    ContentDetail
	Assignee  Assignee // relative to OwnerID
	Version   int64
	Deleted   bool
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TypeFor derives the content type from the presence of a live schedule
func TypeFor(schedule *Schedule) ContentType {
	if schedule != nil && !schedule.Deleted {
		return ContentTypeSchedule
	}
	return ContentTypeMemo
}

// ContentSummary is returned by content mutations
type ContentSummary struct {
	ID   int64
	Type ContentType
}

// ContentView is a content item as seen by a particular viewer
type ContentView struct {
	ID        int64
	OwnerID   int64
	Type      ContentType
	Detail    ContentDetail
	Assignee  Assignee // relative to the viewer
	TagIDs    []int64
	Schedule  *Schedule
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
