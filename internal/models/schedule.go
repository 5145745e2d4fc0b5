package models

import "time"

// Schedule is the dated part of a SCHEDULE content item. A content item has
// at most one live schedule.
type Schedule struct {
	ID            int64
	ContentID     int64
	ExternalID    string
	StartAt       time.Time
	StartTimezone string
	EndAt         time.Time
	EndTimezone   string
	Version       int64
	Deleted       bool
	DeletedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DateTimeInfo is the requested schedule timing. Start and End carry
// wall-clock values interpreted in StartTimezone and EndTimezone. A nil Start
// requests that the item be a memo.
type DateTimeInfo struct {
	Start         *time.Time
	StartTimezone string
	End           *time.Time
	EndTimezone   *string
}
