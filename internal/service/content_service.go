package service

import (
	"context"
	"errors"

	"duet/internal/apperr"
	"duet/internal/events"
	"duet/internal/models"
	"duet/internal/occ"
	"duet/internal/repository"
	"duet/internal/validation"
)

// ContentService handles memos and the MEMO/SCHEDULE lifecycle of content items
type ContentService struct {
	base
}

// NewContentService creates a new content service
func NewContentService(d Deps) *ContentService {
	return &ContentService{base: newBase(d, "content")}
}

// CreateContentInput is a request to create a memo
type CreateContentInput struct {
	Detail    models.ContentDetail
	TagIDs    []int64
	CreatorID int64
	CoupleID  int64
	Assignee  models.Assignee // relative to the creator; defaults to ME
}

// UpdateContentInput is a request to update a content item. A nil DateTime
// or a nil DateTime.Start turns the item into a memo.
type UpdateContentInput struct {
	ContentID int64
	Detail    models.ContentDetail
	TagIDs    []int64
	DateTime  *models.DateTimeInfo
	Assignee  models.Assignee // relative to the actor; empty keeps the stored value
	Actor     models.Actor
}

// CreateContent creates a memo in a couple
func (s *ContentService) CreateContent(ctx context.Context, in CreateContentInput) (models.ContentSummary, error) {
	if err := validation.ValidateDetail(in.Detail); err != nil {
		return models.ContentSummary{}, err
	}
	assignee := in.Assignee
	if assignee == "" {
		assignee = models.AssigneeMe
	}
	if !assignee.Valid() {
		return models.ContentSummary{}, apperr.IllegalArgument("assignee must be ME or PARTNER")
	}

	couple, err := s.reads().Couples.GetCoupleByID(ctx, in.CoupleID)
	if err != nil {
		return models.ContentSummary{}, notFound(err, "couple")
	}
	if !couple.HasMember(in.CreatorID) {
		return models.ContentSummary{}, apperr.CoupleMismatch()
	}

	content := &models.Content{
		OwnerID:  in.CreatorID,
		CoupleID: couple.ID,
		Detail:   in.Detail,
		Assignee: assignee,
	}
	var diff TagDiff
	err = s.inTx(ctx, func(st *repository.Store) error {
		if err := st.Contents.CreateContent(ctx, content); err != nil {
			return err
		}
		diff, err = reconcileTags(ctx, st.Tags, content, in.TagIDs, s.now())
		return err
	})
	if err != nil {
		return models.ContentSummary{}, err
	}
	s.logTagDiff(content.ID, diff)

	e := events.New(events.ContentCreated, couple.ID, in.CreatorID, content.ID)
	e.Title = titleOf(content.Detail)
	e.RecipientID = s.partnerOf(ctx, couple.ID, in.CreatorID)
	s.events.Publish(e)

	return models.ContentSummary{ID: content.ID, Type: models.ContentTypeMemo}, nil
}

// UpdateContent updates detail, tags, assignee and timing of a content item.
// A concurrent update of the same item fails with UPDATE_CONFLICT.
func (s *ContentService) UpdateContent(ctx context.Context, in UpdateContentInput) (models.ContentSummary, error) {
	op := occ.Operation{
		Name:            "content.update",
		Entity:          "content",
		EntityID:        in.ContentID,
		Policy:          s.policies.Update,
		ConflictMessage: "the content was changed by your partner",
	}

	var m *contentMutation
	err := s.coord.Execute(ctx, op, func(ctx context.Context) error {
		var err error
		m, err = occ.Guard[*contentMutation]{
			Load: func(ctx context.Context) (*contentMutation, error) {
				m, err := s.loadContentMutation(ctx, s.reads(), in.ContentID)
				if err == nil {
					s.loaded(ctx, "content", in.ContentID)
				}
				return m, err
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

	e := events.New(events.ContentUpdated, m.content.CoupleID, in.Actor.UserID, m.content.ID)
	e.Title = titleOf(m.content.Detail)
	s.events.Publish(e)

	return models.ContentSummary{ID: m.content.ID, Type: m.resultType()}, nil
}

// DeleteContent soft-deletes a content item together with its occurrence and
// tag assignments. Conflicts are retried against fresh state.
func (s *ContentService) DeleteContent(ctx context.Context, contentID int64, actor models.Actor) error {
	op := occ.Operation{
		Name:            "content.delete",
		Entity:          "content",
		EntityID:        contentID,
		Policy:          s.policies.Retry,
		ConflictMessage: "the content could not be deleted",
	}

	var m *contentMutation
	err := s.coord.Execute(ctx, op, func(ctx context.Context) error {
		var err error
		m, err = occ.Guard[*contentMutation]{
			Load: func(ctx context.Context) (*contentMutation, error) {
				m, err := s.loadContentMutation(ctx, s.reads(), contentID)
				if err == nil {
					s.loaded(ctx, "content", contentID)
				}
				return m, err
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

	s.events.Publish(events.New(events.ContentDeleted, m.content.CoupleID, actor.UserID, contentID))
	return nil
}

// GetContent returns a content item as the actor sees it
func (s *ContentService) GetContent(ctx context.Context, contentID int64, actor models.Actor) (models.ContentView, error) {
	st := s.reads()
	content, err := st.Contents.GetContentByID(ctx, contentID)
	if err != nil {
		return models.ContentView{}, notFound(err, "content")
	}
	if err := s.authorize(ctx, st, content.OwnerID, actor); err != nil {
		return models.ContentView{}, err
	}
	return s.view(ctx, st, content, actor)
}

// ListCoupleContents returns the live content of the actor's couple, newest first
func (s *ContentService) ListCoupleContents(ctx context.Context, actor models.Actor) ([]models.ContentView, error) {
	coupleID, err := requireCouple(actor)
	if err != nil {
		return nil, err
	}
	st := s.reads()
	contents, err := st.Contents.ListContentsByCouple(ctx, coupleID)
	if err != nil {
		return nil, err
	}

	views := make([]models.ContentView, 0, len(contents))
	for i := range contents {
		v, err := s.view(ctx, st, &contents[i], actor)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *ContentService) view(ctx context.Context, st *repository.Store, c *models.Content, actor models.Actor) (models.ContentView, error) {
	schedule, err := st.Schedules.GetLiveScheduleByContentID(ctx, c.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return models.ContentView{}, err
	}
	tagIDs, err := st.Tags.ActiveTagIDs(ctx, c.ID)
	if err != nil {
		return models.ContentView{}, err
	}
	return models.ContentView{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		Type:      models.TypeFor(schedule),
		Detail:    c.Detail,
		Assignee:  models.ToDisplayed(actor.UserID == c.OwnerID, c.Assignee),
		TagIDs:    tagIDs,
		Schedule:  schedule,
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}, nil
}
