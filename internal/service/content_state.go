package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"duet/internal/apperr"
	"duet/internal/models"
	"duet/internal/occ"
	"duet/internal/repository"
	"duet/internal/validation"
)

// scheduleAction is what an update does to a content item's occurrence
type scheduleAction int

const (
	scheduleNone   scheduleAction = iota // MEMO stays MEMO
	scheduleCreate                       // MEMO -> SCHEDULE
	scheduleUpdate                       // SCHEDULE -> SCHEDULE
	scheduleRemove                       // SCHEDULE -> MEMO
)

func (a scheduleAction) String() string {
	switch a {
	case scheduleCreate:
		return "create"
	case scheduleUpdate:
		return "update"
	case scheduleRemove:
		return "remove"
	default:
		return "none"
	}
}

// scheduleTimes is a validated occurrence timing, as instants
type scheduleTimes struct {
	StartAt       time.Time
	StartTimezone string
	EndAt         time.Time
	EndTimezone   string
}

// planTransition picks the occurrence action for a requested timing. A nil
// timing or a nil start asks for a memo.
func planTransition(current *models.Schedule, dt *models.DateTimeInfo) (scheduleAction, scheduleTimes, error) {
	live := current != nil && !current.Deleted
	if dt == nil || dt.Start == nil {
		if live {
			return scheduleRemove, scheduleTimes{}, nil
		}
		return scheduleNone, scheduleTimes{}, nil
	}

	times, err := resolveTimes(*dt)
	if err != nil {
		return scheduleNone, scheduleTimes{}, err
	}
	if live {
		return scheduleUpdate, times, nil
	}
	return scheduleCreate, times, nil
}

// resolveTimes interprets the wall-clock start and end in their timezones.
// A missing end is the last second of the start date in the start timezone,
// or the start itself when that falls inside the last second; a missing end
// timezone is the start timezone.
func resolveTimes(dt models.DateTimeInfo) (scheduleTimes, error) {
	startLoc, err := validation.LoadTimezone(dt.StartTimezone)
	if err != nil {
		return scheduleTimes{}, err
	}
	endTZ := strings.TrimSpace(dt.StartTimezone)
	if dt.EndTimezone != nil && strings.TrimSpace(*dt.EndTimezone) != "" {
		endTZ = strings.TrimSpace(*dt.EndTimezone)
	}
	endLoc, err := validation.LoadTimezone(endTZ)
	if err != nil {
		return scheduleTimes{}, err
	}

	start := wallClock(*dt.Start, startLoc)
	var end time.Time
	if dt.End == nil {
		y, m, d := start.Date()
		end = time.Date(y, m, d, 23, 59, 59, 0, startLoc)
		if end.Before(start) {
			end = start
		}
	} else {
		end = wallClock(*dt.End, endLoc)
		if err := validation.ValidateDuration(start, end); err != nil {
			return scheduleTimes{}, err
		}
	}

	return scheduleTimes{
		StartAt:       start.UTC(),
		StartTimezone: strings.TrimSpace(dt.StartTimezone),
		EndAt:         end.UTC(),
		EndTimezone:   endTZ,
	}, nil
}

func wallClock(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// contentMutation is the state read, changed and committed by a content or
// schedule update
type contentMutation struct {
	content  *models.Content
	schedule *models.Schedule // live occurrence, nil for a memo
	action   scheduleAction
	times    scheduleTimes
}

func (m *contentMutation) resultType() models.ContentType {
	switch m.action {
	case scheduleCreate, scheduleUpdate:
		return models.ContentTypeSchedule
	case scheduleRemove:
		return models.ContentTypeMemo
	default:
		return models.TypeFor(m.schedule)
	}
}

// contentUpdate is a viewer-relative update request
type contentUpdate struct {
	Detail   models.ContentDetail
	DateTime *models.DateTimeInfo
	Assignee models.Assignee // empty keeps the stored value
	Actor    models.Actor
}

// loadContentMutation reads a live content item and its live occurrence
func (b *base) loadContentMutation(ctx context.Context, st *repository.Store, contentID int64) (*contentMutation, error) {
	content, err := st.Contents.GetContentByID(ctx, contentID)
	if err != nil {
		return nil, notFound(err, "content")
	}
	schedule, err := st.Schedules.GetLiveScheduleByContentID(ctx, contentID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return &contentMutation{content: content, schedule: schedule}, nil
}

// applyUpdate validates access and input, then changes m in memory
func (b *base) applyUpdate(ctx context.Context, m *contentMutation, u contentUpdate) error {
	if err := b.authorize(ctx, b.reads(), m.content.OwnerID, u.Actor); err != nil {
		return err
	}
	if err := validation.ValidateDetail(u.Detail); err != nil {
		return err
	}
	if u.Assignee != "" && !u.Assignee.Valid() {
		return apperr.IllegalArgument("assignee must be ME or PARTNER")
	}

	action, times, err := planTransition(m.schedule, u.DateTime)
	if err != nil {
		return err
	}

	m.content.Detail = u.Detail
	if u.Assignee != "" {
		m.content.Assignee = models.ToStored(u.Actor.UserID == m.content.OwnerID, u.Assignee)
	}
	m.action = action
	m.times = times
	return nil
}

// commitContentMutation writes a mutation in one transaction. Every versioned
// row is written with a compare-and-set on the version that was read, so a
// concurrent commit makes the whole transaction roll back with a conflict.
func (b *base) commitContentMutation(ctx context.Context, m *contentMutation, tagIDs []int64) error {
	now := b.now()
	var diff TagDiff
	err := b.inTx(ctx, func(st *repository.Store) error {
		ok, err := st.Contents.UpdateContent(ctx, m.content, m.content.Version)
		if err != nil {
			return err
		}
		if err := occ.RequireCASSuccess(ok, "content", m.content.ID, m.content.Version); err != nil {
			return err
		}

		switch m.action {
		case scheduleCreate:
			s := &models.Schedule{
				ContentID:     m.content.ID,
				StartAt:       m.times.StartAt,
				StartTimezone: m.times.StartTimezone,
				EndAt:         m.times.EndAt,
				EndTimezone:   m.times.EndTimezone,
			}
			if err := st.Schedules.CreateSchedule(ctx, s); err != nil {
				return err
			}
			m.schedule = s
		case scheduleUpdate:
			s := *m.schedule
			s.StartAt = m.times.StartAt
			s.StartTimezone = m.times.StartTimezone
			s.EndAt = m.times.EndAt
			s.EndTimezone = m.times.EndTimezone
			ok, err := st.Schedules.UpdateSchedule(ctx, &s, m.schedule.Version)
			if err != nil {
				return err
			}
			if err := occ.RequireCASSuccess(ok, "schedule", s.ID, m.schedule.Version); err != nil {
				return err
			}
		case scheduleRemove:
			ok, err := st.Schedules.SoftDeleteSchedule(ctx, m.schedule.ID, m.schedule.Version, now)
			if err != nil {
				return err
			}
			if err := occ.RequireCASSuccess(ok, "schedule", m.schedule.ID, m.schedule.Version); err != nil {
				return err
			}
		}

		diff, err = reconcileTags(ctx, st.Tags, m.content, tagIDs, now)
		return err
	})
	if err != nil {
		return err
	}
	b.logTagDiff(m.content.ID, diff)
	return nil
}

// softDeleteContent removes a content item, its occurrence and its tag
// assignments in one transaction
func (b *base) softDeleteContent(ctx context.Context, m *contentMutation) error {
	now := b.now()
	return b.inTx(ctx, func(st *repository.Store) error {
		if m.schedule != nil {
			ok, err := st.Schedules.SoftDeleteSchedule(ctx, m.schedule.ID, m.schedule.Version, now)
			if err != nil {
				return err
			}
			if err := occ.RequireCASSuccess(ok, "schedule", m.schedule.ID, m.schedule.Version); err != nil {
				return err
			}
		}
		ok, err := st.Contents.SoftDeleteContent(ctx, m.content.ID, m.content.Version, now)
		if err != nil {
			return err
		}
		if err := occ.RequireCASSuccess(ok, "content", m.content.ID, m.content.Version); err != nil {
			return err
		}
		return st.Tags.SoftDeleteAssignmentsByContent(ctx, m.content.ID, now)
	})
}

func titleOf(d models.ContentDetail) string {
	if d.Title != nil && strings.TrimSpace(*d.Title) != "" {
		return strings.TrimSpace(*d.Title)
	}
	if d.Description != nil {
		return strings.TrimSpace(*d.Description)
	}
	return ""
}
