package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"duet/internal/apperr"
	"duet/internal/events"
	"duet/internal/logger"
	"duet/internal/models"
	"duet/internal/occ"
)

func TestCreateContentDetailInvariant(t *testing.T) {
	f := newFixture(t)
	svc := NewContentService(f.deps)

	tests := []struct {
		name        string
		title, desc *string
		wantOK      bool
	}{
		{"title only", str("Dinner"), nil, true},
		{"description only", nil, str("at 7"), true},
		{"both", str("Dinner"), str("at 7"), true},
		{"both null", nil, nil, false},
		{"both blank", str("  "), str("\t"), false},
		{"blank title null description", str(" "), nil, false},
		{"blank title real description", str(" "), str("at 7"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateContent(context.Background(), CreateContentInput{
				Detail:    models.ContentDetail{Title: tt.title, Description: tt.desc},
				CreatorID: f.alex.ID,
				CoupleID:  f.couple.ID,
			})
			if tt.wantOK && err != nil {
				t.Fatalf("CreateContent() error = %v", err)
			}
			if !tt.wantOK {
				wantCode(t, err, apperr.CodeIllegalArgument)
			}
		})
	}
}

func TestCreateContent(t *testing.T) {
	f := newFixture(t)
	svc := NewContentService(f.deps)
	ctx := context.Background()

	t.Run("missing couple", func(t *testing.T) {
		_, err := svc.CreateContent(ctx, CreateContentInput{Detail: detail("x"), CreatorID: f.alex.ID, CoupleID: 999})
		wantCode(t, err, apperr.CodeNotFound)
	})

	t.Run("creator outside couple", func(t *testing.T) {
		jo := f.user(t, "jo@example.com", "Jo")
		_, err := svc.CreateContent(ctx, CreateContentInput{Detail: detail("x"), CreatorID: jo.ID, CoupleID: f.couple.ID})
		wantCode(t, err, apperr.CodeCoupleMismatch)
	})

	t.Run("creates memo with tags and notifies partner", func(t *testing.T) {
		food, _ := f.st.Tags.CreateTag(ctx, f.couple.ID, "food")
		sum, err := svc.CreateContent(ctx, CreateContentInput{
			Detail:    detail("Dinner"),
			TagIDs:    []int64{food.ID, 12345},
			CreatorID: f.alex.ID,
			CoupleID:  f.couple.ID,
		})
		if err != nil {
			t.Fatalf("CreateContent() error = %v", err)
		}
		if sum.Type != models.ContentTypeMemo {
			t.Errorf("Type = %s, want MEMO", sum.Type)
		}
		ids, _ := f.st.Tags.ActiveTagIDs(ctx, sum.ID)
		if !reflect.DeepEqual(ids, []int64{food.ID}) {
			t.Errorf("tags = %v, want [%d]", ids, food.ID)
		}
		created := f.rec.ofType(events.ContentCreated)
		if len(created) != 1 || created[0].RecipientID != f.sam.ID || created[0].Title != "Dinner" {
			t.Errorf("ContentCreated events = %+v", created)
		}
	})
}

func TestUpdateContentDurationInvariant(t *testing.T) {
	f := newFixture(t)
	svc := NewContentService(f.deps)
	ctx := context.Background()

	tests := []struct {
		name   string
		start  int
		end    int
		wantOK bool
	}{
		{"end after start", 9, 10, true},
		{"end equals start", 9, 9, true},
		{"end before start", 10, 9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := svc.CreateContent(ctx, CreateContentInput{Detail: detail("x"), CreatorID: f.alex.ID, CoupleID: f.couple.ID})
			if err != nil {
				t.Fatal(err)
			}
			_, err = svc.UpdateContent(ctx, UpdateContentInput{
				ContentID: sum.ID,
				Detail:    detail("x"),
				DateTime: &models.DateTimeInfo{
					Start:         wall(2026, 6, 1, tt.start, 0),
					StartTimezone: "UTC",
					End:           wall(2026, 6, 1, tt.end, 0),
				},
				Actor: actorOf(f.alex),
			})
			if tt.wantOK {
				if err != nil {
					t.Fatalf("UpdateContent() error = %v", err)
				}
				return
			}
			wantCode(t, err, apperr.CodeInvalidDuration)
			if f.liveSchedules(t, sum.ID) != 0 {
				t.Error("rejected update left a schedule behind")
			}
		})
	}
}

func TestUpdateContentMemoScheduleRoundTrip(t *testing.T) {
	f := newFixture(t)
	svc := NewContentService(f.deps)
	ctx := context.Background()

	d := models.ContentDetail{Title: str("Trip"), Description: str("pack bags"), Completed: false}
	sum, err := svc.CreateContent(ctx, CreateContentInput{Detail: d, CreatorID: f.alex.ID, CoupleID: f.couple.ID})
	if err != nil {
		t.Fatal(err)
	}

	toSchedule, err := svc.UpdateContent(ctx, UpdateContentInput{
		ContentID: sum.ID,
		Detail:    d,
		DateTime:  &models.DateTimeInfo{Start: wall(2026, 7, 1, 8, 0), StartTimezone: "Asia/Seoul"},
		Actor:     actorOf(f.alex),
	})
	if err != nil {
		t.Fatalf("MEMO -> SCHEDULE error = %v", err)
	}
	if toSchedule.Type != models.ContentTypeSchedule || f.liveSchedules(t, sum.ID) != 1 {
		t.Fatalf("after adding start: type %s, live schedules %d", toSchedule.Type, f.liveSchedules(t, sum.ID))
	}

	toMemo, err := svc.UpdateContent(ctx, UpdateContentInput{
		ContentID: sum.ID,
		Detail:    d,
		DateTime:  &models.DateTimeInfo{Start: nil},
		Actor:     actorOf(f.sam),
	})
	if err != nil {
		t.Fatalf("SCHEDULE -> MEMO error = %v", err)
	}
	if toMemo.Type != models.ContentTypeMemo {
		t.Errorf("type = %s, want MEMO", toMemo.Type)
	}
	if n := f.liveSchedules(t, sum.ID); n != 0 {
		t.Errorf("live schedules = %d, want 0", n)
	}

	view, err := svc.GetContent(ctx, sum.ID, actorOf(f.alex))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(view.Detail, d) {
		t.Errorf("detail = %+v, want %+v", view.Detail, d)
	}
	if view.Type != models.ContentTypeMemo || view.Schedule != nil {
		t.Errorf("view = %+v, want a memo", view)
	}
}

func TestUpdateContentTagsIdempotent(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zap.DebugLevel)
	f.deps.Logger = logger.FromZap(zap.New(core))
	svc := NewContentService(f.deps)
	reconciled := func() int { return logs.FilterMessage("content tags reconciled").Len() }
	ctx := context.Background()

	food, _ := f.st.Tags.CreateTag(ctx, f.couple.ID, "food")
	trip, _ := f.st.Tags.CreateTag(ctx, f.couple.ID, "trip")
	sum, err := svc.CreateContent(ctx, CreateContentInput{Detail: detail("x"), TagIDs: []int64{food.ID}, CreatorID: f.alex.ID, CoupleID: f.couple.ID})
	if err != nil {
		t.Fatal(err)
	}

	update := UpdateContentInput{ContentID: sum.ID, Detail: detail("x"), TagIDs: []int64{trip.ID}, Actor: actorOf(f.alex)}
	if _, err := svc.UpdateContent(ctx, update); err != nil {
		t.Fatal(err)
	}
	live1, deleted1, _ := f.st.Tags.CountAssignments(ctx, sum.ID)
	ids1, _ := f.st.Tags.ActiveTagIDs(ctx, sum.ID)
	if got := reconciled(); got != 2 {
		t.Errorf("reconcile log entries after create and retag = %d, want 2", got)
	}
	entry := logs.FilterMessage("content tags reconciled").All()[1]
	if entry.ContextMap()["content_id"] != sum.ID {
		t.Errorf("reconcile log fields = %v", entry.ContextMap())
	}

	if _, err := svc.UpdateContent(ctx, update); err != nil {
		t.Fatal(err)
	}
	if got := reconciled(); got != 2 {
		t.Errorf("no-op update logged a reconcile: %d entries", got)
	}
	live2, deleted2, _ := f.st.Tags.CountAssignments(ctx, sum.ID)
	ids2, _ := f.st.Tags.ActiveTagIDs(ctx, sum.ID)

	if !reflect.DeepEqual(ids1, []int64{trip.ID}) || !reflect.DeepEqual(ids1, ids2) {
		t.Errorf("active tags = %v then %v, want [%d]", ids1, ids2, trip.ID)
	}
	if live1 != live2 || deleted1 != deleted2 {
		t.Errorf("assignment rows changed: %d/%d then %d/%d", live1, deleted1, live2, deleted2)
	}
}

func TestAssigneeFlipScenario(t *testing.T) {
	f := newFixture(t)
	svc := NewContentService(f.deps)
	ctx := context.Background()

	sum, err := svc.CreateContent(ctx, CreateContentInput{
		Detail: detail("Flowers"), CreatorID: f.alex.ID, CoupleID: f.couple.ID, Assignee: models.AssigneePartner,
	})
	if err != nil {
		t.Fatal(err)
	}

	stored := func() models.Assignee {
		c, err := f.st.Contents.GetContentByID(ctx, sum.ID)
		if err != nil {
			t.Fatal(err)
		}
		return c.Assignee
	}
	seen := func(u *models.User) models.Assignee {
		v, err := svc.GetContent(ctx, sum.ID, actorOf(u))
		if err != nil {
			t.Fatal(err)
		}
		return v.Assignee
	}

	if got := seen(f.sam); got != models.AssigneeMe {
		t.Errorf("partner sees %s, want ME", got)
	}

	update := func(a models.Assignee) {
		t.Helper()
		_, err := svc.UpdateContent(ctx, UpdateContentInput{ContentID: sum.ID, Detail: detail("Flowers"), Assignee: a, Actor: actorOf(f.sam)})
		if err != nil {
			t.Fatal(err)
		}
	}

	update(models.AssigneeMe)
	if got := stored(); got != models.AssigneePartner {
		t.Errorf("after partner requests ME, stored = %s, want PARTNER", got)
	}

	update(models.AssigneePartner)
	if got := stored(); got != models.AssigneeMe {
		t.Errorf("after partner requests PARTNER, stored = %s, want ME", got)
	}
	if got := seen(f.alex); got != models.AssigneePartner {
		t.Errorf("creator sees %s, want PARTNER", got)
	}
}

func TestContentAccess(t *testing.T) {
	f := newFixture(t)
	svc := NewContentService(f.deps)
	ctx := context.Background()

	jo := f.user(t, "jo@example.com", "Jo")
	kim := f.user(t, "kim@example.com", "Kim")
	f.pair(t, jo, kim)

	sum, err := svc.CreateContent(ctx, CreateContentInput{Detail: detail("secret"), CreatorID: f.alex.ID, CoupleID: f.couple.ID})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.GetContent(ctx, sum.ID, actorOf(jo))
	wantCode(t, err, apperr.CodeCoupleMismatch)

	_, err = svc.UpdateContent(ctx, UpdateContentInput{ContentID: sum.ID, Detail: detail("mine"), Actor: actorOf(jo)})
	wantCode(t, err, apperr.CodeCoupleMismatch)

	err = svc.DeleteContent(ctx, sum.ID, actorOf(jo))
	wantCode(t, err, apperr.CodeCoupleMismatch)

	// once the owner is single again their partner loses access
	if err := f.st.Users.SetCouple(ctx, f.alex.ID, nil); err != nil {
		t.Fatal(err)
	}
	_, err = svc.GetContent(ctx, sum.ID, actorOf(f.sam))
	wantCode(t, err, apperr.CodeIllegalPartnerStatus)

	_, err = svc.GetContent(ctx, 999, actorOf(f.alex))
	wantCode(t, err, apperr.CodeNotFound)
}

func TestUpdateContentConflictIsImmediate(t *testing.T) {
	f := newFixture(t)
	svc := NewContentService(f.deps)
	ctx := context.Background()

	sum, err := svc.CreateContent(ctx, CreateContentInput{Detail: detail("x"), CreatorID: f.alex.ID, CoupleID: f.couple.ID})
	if err != nil {
		t.Fatal(err)
	}

	loads := 0
	svc.afterLoad = func(context.Context, string, int64) {
		loads++
		f.exec(t, "UPDATE contents SET version = version + 1 WHERE id = ?", sum.ID)
	}
	_, err = svc.UpdateContent(ctx, UpdateContentInput{ContentID: sum.ID, Detail: detail("y"), Actor: actorOf(f.alex)})
	wantCode(t, err, apperr.CodeUpdateConflict)
	if errors.Is(err, occ.ErrStaleVersion) {
		t.Error("storage conflict escaped the recovery boundary")
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}
	if len(f.rec.ofType(events.ContentUpdated)) != 0 {
		t.Error("failed update published an event")
	}

	c, _ := f.st.Contents.GetContentByID(ctx, sum.ID)
	if *c.Detail.Title != "x" {
		t.Errorf("title = %q, conflicting write was persisted", *c.Detail.Title)
	}
}

func TestDeleteContentCascades(t *testing.T) {
	f := newFixture(t)
	svc := NewContentService(f.deps)
	ctx := context.Background()

	food, _ := f.st.Tags.CreateTag(ctx, f.couple.ID, "food")
	sum, err := svc.CreateContent(ctx, CreateContentInput{Detail: detail("x"), TagIDs: []int64{food.ID}, CreatorID: f.alex.ID, CoupleID: f.couple.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateContent(ctx, UpdateContentInput{
		ContentID: sum.ID, Detail: detail("x"), TagIDs: []int64{food.ID},
		DateTime: &models.DateTimeInfo{Start: wall(2026, 1, 1, 0, 0), StartTimezone: "UTC"},
		Actor:    actorOf(f.alex),
	}); err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteContent(ctx, sum.ID, actorOf(f.sam)); err != nil {
		t.Fatalf("DeleteContent() error = %v", err)
	}
	if f.liveSchedules(t, sum.ID) != 0 {
		t.Error("schedule not soft-deleted")
	}
	if live, _, _ := f.st.Tags.CountAssignments(ctx, sum.ID); live != 0 {
		t.Errorf("live tag assignments = %d, want 0", live)
	}
	if n := f.count(t, "SELECT COUNT(*) FROM contents WHERE id = ? AND deleted = ? AND deleted_at IS NOT NULL", sum.ID, true); n != 1 {
		t.Error("content row not soft-deleted")
	}
	err = svc.DeleteContent(ctx, sum.ID, actorOf(f.sam))
	wantCode(t, err, apperr.CodeNotFound)
}

func TestListCoupleContents(t *testing.T) {
	f := newFixture(t)
	svc := NewContentService(f.deps)
	ctx := context.Background()

	for _, title := range []string{"one", "two"} {
		if _, err := svc.CreateContent(ctx, CreateContentInput{Detail: detail(title), CreatorID: f.alex.ID, CoupleID: f.couple.ID}); err != nil {
			t.Fatal(err)
		}
	}
	views, err := svc.ListCoupleContents(ctx, actorOf(f.sam))
	if err != nil {
		t.Fatalf("ListCoupleContents() error = %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d views, want 2", len(views))
	}
	for _, v := range views {
		if v.Assignee != models.AssigneePartner {
			t.Errorf("partner sees assignee %s on %d, want PARTNER", v.Assignee, v.ID)
		}
	}

	jo := f.user(t, "jo@example.com", "Jo")
	_, err = svc.ListCoupleContents(ctx, actorOf(jo))
	wantCode(t, err, apperr.CodeIllegalPartnerStatus)
}
