package service

import (
	"context"

	"duet/internal/apperr"
	"duet/internal/events"
	"duet/internal/models"
	"duet/internal/occ"
	"duet/internal/repository"
	"duet/internal/validation"
)

// ScheduleService handles scheduled content items and their occurrences
type ScheduleService struct {
	base
}

// NewScheduleService creates a new schedule service
func NewScheduleService(d Deps) *ScheduleService {
	return &ScheduleService{base: newBase(d, "schedule")}
}

// CreateScheduleInput is a request to create a scheduled content item
type CreateScheduleInput struct {
	Detail    models.ContentDetail
	DateTime  models.DateTimeInfo
	TagIDs    []int64
	CreatorID int64
	CoupleID  int64
	Assignee  models.Assignee
}

// CreatedSchedule identifies a new scheduled item
type CreatedSchedule struct {
	ContentID  int64
	ScheduleID int64
	ExternalID string
}

// UpdateScheduleInput is a request to update a scheduled item through its
// occurrence. A nil DateTime.Start turns the item back into a memo.
type UpdateScheduleInput struct {
	ScheduleID int64
	Detail     models.ContentDetail
	DateTime   *models.DateTimeInfo
	TagIDs     []int64
	Assignee   models.Assignee
	Actor      models.Actor
}

// CreateSchedule creates a content item and its occurrence together
func (s *ScheduleService) CreateSchedule(ctx context.Context, in CreateScheduleInput) (CreatedSchedule, error) {
	if err := validation.ValidateDetail(in.Detail); err != nil {
		return CreatedSchedule{}, err
	}
	if in.DateTime.Start == nil {
		return CreatedSchedule{}, apperr.IllegalArgument("start is required")
	}
	times, err := resolveTimes(in.DateTime)
	if err != nil {
		return CreatedSchedule{}, err
	}
	assignee := in.Assignee
	if assignee == "" {
		assignee = models.AssigneeMe
	}
	if !assignee.Valid() {
		return CreatedSchedule{}, apperr.IllegalArgument("assignee must be ME or PARTNER")
	}

	couple, err := s.reads().Couples.GetCoupleByID(ctx, in.CoupleID)
	if err != nil {
		return CreatedSchedule{}, notFound(err, "couple")
	}
	if !couple.HasMember(in.CreatorID) {
		return CreatedSchedule{}, apperr.CoupleMismatch()
	}

	content := &models.Content{
		OwnerID:  in.CreatorID,
		CoupleID: couple.ID,
		Detail:   in.Detail,
		Assignee: assignee,
	}
	schedule := &models.Schedule{
		StartAt:       times.StartAt,
		StartTimezone: times.StartTimezone,
		EndAt:         times.EndAt,
		EndTimezone:   times.EndTimezone,
	}
	var diff TagDiff
	err = s.inTx(ctx, func(st *repository.Store) error {
		if err := st.Contents.CreateContent(ctx, content); err != nil {
			return err
		}
		schedule.ContentID = content.ID
		if err := st.Schedules.CreateSchedule(ctx, schedule); err != nil {
			return err
		}
		diff, err = reconcileTags(ctx, st.Tags, content, in.TagIDs, s.now())
		return err
	})
	if err != nil {
		return CreatedSchedule{}, err
	}
	s.logTagDiff(content.ID, diff)

	e := events.New(events.ScheduleCreated, couple.ID, in.CreatorID, content.ID)
	e.Title = titleOf(content.Detail)
	e.RecipientID = s.partnerOf(ctx, couple.ID, in.CreatorID)
	s.events.Publish(e)

	return CreatedSchedule{ContentID: content.ID, ScheduleID: schedule.ID, ExternalID: schedule.ExternalID}, nil
}

// loadScheduleMutation reads a live occurrence and its content item
func (s *ScheduleService) loadScheduleMutation(ctx context.Context, scheduleID int64) (*contentMutation, error) {
	st := s.reads()
	schedule, err := st.Schedules.GetScheduleByID(ctx, scheduleID)
	if err != nil {
		return nil, notFound(err, "schedule")
	}
	content, err := st.Contents.GetContentByID(ctx, schedule.ContentID)
	if err != nil {
		return nil, notFound(err, "content")
	}
	s.loaded(ctx, "schedule", scheduleID)
	return &contentMutation{content: content, schedule: schedule}, nil
}

// UpdateSchedule updates a scheduled item. The first of two concurrent
// updates wins; the other fails with UPDATE_CONFLICT and writes nothing.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, in UpdateScheduleInput) (models.ContentSummary, error) {
	op := occ.Operation{
		Name:            "schedule.update",
		Entity:          "schedule",
		EntityID:        in.ScheduleID,
		Policy:          s.policies.Update,
		ConflictMessage: "the schedule was changed by your partner",
	}

	var m *contentMutation
	err := s.coord.Execute(ctx, op, func(ctx context.Context) error {
		var err error
		m, err = occ.Guard[*contentMutation]{
			Load: func(ctx context.Context) (*contentMutation, error) {
				return s.loadScheduleMutation(ctx, in.ScheduleID)
			},
			Mutate: func(ctx context.Context, m *contentMutation) error {
				return s.applyUpdate(ctx, m, contentUpdate{
					Detail:   in.Detail,
					DateTime: in.DateTime,
					Assignee: in.Assignee,
					Actor:    in.Actor,
				})
			},
			Commit: func(ctx context.Context, m *contentMutation) error {
				return s.commitContentMutation(ctx, m, in.TagIDs)
			},
		}.Run(ctx)
		return err
	})
	if err != nil {
		return models.ContentSummary{}, err
	}

	e := events.New(events.ScheduleUpdated, m.content.CoupleID, in.Actor.UserID, m.content.ID)
	e.Title = titleOf(m.content.Detail)
	s.events.Publish(e)

	return models.ContentSummary{ID: m.content.ID, Type: m.resultType()}, nil
}

// DeleteSchedule soft-deletes an occurrence and the content item it belongs
// to. Conflicts are retried against fresh state.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, scheduleID int64, actor models.Actor) error {
	op := occ.Operation{
		Name:            "schedule.delete",
		Entity:          "schedule",
		EntityID:        scheduleID,
		Policy:          s.policies.Retry,
		ConflictMessage: "the schedule could not be deleted",
	}

	var m *contentMutation
	err := s.coord.Execute(ctx, op, func(ctx context.Context) error {
		var err error
		m, err = occ.Guard[*contentMutation]{
			Load: func(ctx context.Context) (*contentMutation, error) {
				return s.loadScheduleMutation(ctx, scheduleID)
			},
			Mutate: func(ctx context.Context, m *contentMutation) error {
				return s.authorize(ctx, s.reads(), m.content.OwnerID, actor)
			},
			Commit: s.softDeleteContent,
		}.Run(ctx)
		return err
	})
	if err != nil {
		return err
	}

	s.events.Publish(events.New(events.ScheduleDeleted, m.content.CoupleID, actor.UserID, m.content.ID))
	return nil
}
