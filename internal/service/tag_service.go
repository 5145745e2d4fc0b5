package service

import (
	"context"
	"strings"

	"duet/internal/apperr"
	"duet/internal/events"
	"duet/internal/models"
	"duet/internal/repository"
	"duet/internal/validation"
)

// TagService handles couple-scoped tags
type TagService struct {
	base
}

// NewTagService creates a new tag service
func NewTagService(d Deps) *TagService {
	return &TagService{base: newBase(d, "tag")}
}

// CreateTag creates a tag in the actor's couple
func (s *TagService) CreateTag(ctx context.Context, actor models.Actor, label string) (*models.Tag, error) {
	coupleID, err := requireCouple(actor)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateTagLabel(label); err != nil {
		return nil, err
	}
	tag, err := s.reads().Tags.CreateTag(ctx, coupleID, strings.TrimSpace(label))
	if err != nil {
		return nil, err
	}
	s.events.Publish(events.New(events.TagCreated, coupleID, actor.UserID, tag.ID))
	return tag, nil
}

// ListTags returns the live tags of the actor's couple
func (s *TagService) ListTags(ctx context.Context, actor models.Actor) ([]models.Tag, error) {
	coupleID, err := requireCouple(actor)
	if err != nil {
		return nil, err
	}
	return s.reads().Tags.ListTagsByCouple(ctx, coupleID)
}

// DeleteTag soft-deletes a tag and every live assignment of it
func (s *TagService) DeleteTag(ctx context.Context, tagID int64, actor models.Actor) error {
	tag, err := s.reads().Tags.GetTagByID(ctx, tagID)
	if err != nil {
		return notFound(err, "tag")
	}
	if actor.CoupleID == nil || *actor.CoupleID != tag.CoupleID {
		return apperr.CoupleMismatch()
	}

	now := s.now()
	err = s.inTx(ctx, func(st *repository.Store) error {
		if err := st.Tags.SoftDeleteTag(ctx, tag.ID, now); err != nil {
			return notFound(err, "tag")
		}
		return st.Tags.SoftDeleteAssignmentsByTag(ctx, tag.ID, now)
	})
	if err != nil {
		return err
	}
	s.events.Publish(events.New(events.TagDeleted, tag.CoupleID, actor.UserID, tag.ID))
	return nil
}
