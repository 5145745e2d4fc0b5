package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"duet/internal/apperr"
	"duet/internal/events"
	"duet/internal/models"
	"duet/internal/repository"
)

func TestConcurrentCoupleFieldUpdatesBothPersist(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for backoff delays")
	}
	f := newFixture(t)
	svc := NewCoupleService(f.deps, 0)
	ctx := context.Background()
	svc.afterLoad = barrier(2)

	start := time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)
	var errDate, errMsg error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errDate = svc.UpdateCoupleStartDate(ctx, f.couple.ID, start, "Asia/Seoul")
	}()
	go func() {
		defer wg.Done()
		errMsg = svc.UpdateCoupleSharedMessage(ctx, f.couple.ID, str("see you tonight"))
	}()
	wg.Wait()

	if errDate != nil || errMsg != nil {
		t.Fatalf("errors = %v, %v; want both updates to succeed", errDate, errMsg)
	}
	c, err := svc.GetCouple(ctx, f.couple.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.StartDate == nil || !c.StartDate.Equal(start) {
		t.Errorf("StartDate = %v, want %v", c.StartDate, start)
	}
	if c.SharedMessage == nil || *c.SharedMessage != "see you tonight" {
		t.Errorf("SharedMessage = %v", c.SharedMessage)
	}
	if c.Version != 2 {
		t.Errorf("Version = %d, want 2", c.Version)
	}
}

func TestUpdateCoupleStartDate(t *testing.T) {
	f := newFixture(t)
	svc := NewCoupleService(f.deps, 0)
	ctx := context.Background()
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 16, 0, 0, 0, time.UTC) }

	// already June 2 in Seoul
	err := svc.UpdateCoupleStartDate(ctx, f.couple.ID, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), "Asia/Seoul")
	if err != nil {
		t.Fatalf("UpdateCoupleStartDate() error = %v", err)
	}

	err = svc.UpdateCoupleStartDate(ctx, f.couple.ID, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), "America/Los_Angeles")
	wantCode(t, err, apperr.CodeIllegalArgument)

	err = svc.UpdateCoupleStartDate(ctx, f.couple.ID, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), "Mars/Olympus")
	wantCode(t, err, apperr.CodeIllegalArgument)

	err = svc.UpdateCoupleStartDate(ctx, 999, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), "UTC")
	wantCode(t, err, apperr.CodeNotFound)

	if n := len(f.rec.ofType(events.CoupleUpdated)); n != 1 {
		t.Errorf("CoupleUpdated events = %d, want 1", n)
	}
}

func TestUpdateCoupleSharedMessage(t *testing.T) {
	f := newFixture(t)
	svc := NewCoupleService(f.deps, 0)
	ctx := context.Background()

	if err := svc.UpdateCoupleSharedMessage(ctx, f.couple.ID, str("  hello  ")); err != nil {
		t.Fatal(err)
	}
	c, _ := svc.GetCouple(ctx, f.couple.ID)
	if c.SharedMessage == nil || *c.SharedMessage != "hello" {
		t.Errorf("SharedMessage = %v, want trimmed hello", c.SharedMessage)
	}

	if err := svc.UpdateCoupleSharedMessage(ctx, f.couple.ID, str("   ")); err != nil {
		t.Fatal(err)
	}
	c, _ = svc.GetCouple(ctx, f.couple.ID)
	if c.SharedMessage != nil {
		t.Errorf("blank message should clear, got %q", *c.SharedMessage)
	}

	err := svc.UpdateCoupleSharedMessage(ctx, f.couple.ID, str(strings.Repeat("x", 201)))
	wantCode(t, err, apperr.CodeIllegalArgument)
}

func TestLeaveCouple(t *testing.T) {
	f := newFixture(t)
	svc := NewCoupleService(f.deps, 0)
	ctx := context.Background()

	if err := svc.LeaveCouple(ctx, f.couple.ID, f.alex.ID); err != nil {
		t.Fatalf("LeaveCouple(alex) error = %v", err)
	}
	c, err := svc.GetCouple(ctx, f.couple.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != models.CoupleStatusInactive {
		t.Errorf("Status = %s, want INACTIVE", c.Status)
	}
	if len(c.MemberIDs) != 1 || c.MemberIDs[0] != f.sam.ID {
		t.Errorf("MemberIDs = %v, want [%d]", c.MemberIDs, f.sam.ID)
	}
	f.refresh(t, f.alex)
	f.refresh(t, f.sam)
	if f.alex.Status != models.UserStatusSingle || f.alex.CoupleID != nil {
		t.Errorf("alex = %+v, want SINGLE without couple", f.alex)
	}
	if f.sam.Status != models.UserStatusCoupled {
		t.Errorf("sam.Status = %s, want COUPLED", f.sam.Status)
	}

	err = svc.LeaveCouple(ctx, f.couple.ID, f.alex.ID)
	wantCode(t, err, apperr.CodeCoupleMismatch)

	if err := svc.LeaveCouple(ctx, f.couple.ID, f.sam.ID); err != nil {
		t.Fatalf("LeaveCouple(sam) error = %v", err)
	}
	_, err = svc.GetCouple(ctx, f.couple.ID)
	wantCode(t, err, apperr.CodeNotFound)
	f.refresh(t, f.sam)
	if f.sam.Status != models.UserStatusSingle {
		t.Errorf("sam.Status = %s, want SINGLE", f.sam.Status)
	}
	if n := len(f.rec.ofType(events.CoupleMemberLeft)); n != 2 {
		t.Errorf("CoupleMemberLeft events = %d, want 2", n)
	}
}

func TestInvitations(t *testing.T) {
	f := newFixture(t)
	svc := NewCoupleService(f.deps, time.Hour)
	ctx := context.Background()

	_, err := svc.CreateInvitation(ctx, f.alex.ID)
	wantCode(t, err, apperr.CodeIllegalPartnerStatus)

	jo := f.user(t, "jo@example.com", "Jo")
	kim := f.user(t, "kim@example.com", "Kim")
	inv, err := svc.CreateInvitation(ctx, jo.ID)
	if err != nil {
		t.Fatalf("CreateInvitation() error = %v", err)
	}
	if inv.InviterName != "Jo" || len(inv.Code) != 32 {
		t.Errorf("invitation = %+v", inv)
	}

	_, err = svc.RedeemInvitation(ctx, inv.Code, jo.ID)
	wantCode(t, err, apperr.CodeIllegalArgument)

	_, err = svc.RedeemInvitation(ctx, inv.Code, f.sam.ID)
	wantCode(t, err, apperr.CodeIllegalPartnerStatus)

	couple, err := svc.RedeemInvitation(ctx, " "+inv.Code+" ", kim.ID)
	if err != nil {
		t.Fatalf("RedeemInvitation() error = %v", err)
	}
	if couple.Status != models.CoupleStatusActive || len(couple.MemberIDs) != models.MaxCoupleMembers {
		t.Errorf("couple = %+v", couple)
	}
	f.refresh(t, jo)
	f.refresh(t, kim)
	if jo.CoupleID == nil || kim.CoupleID == nil || *jo.CoupleID != couple.ID || *kim.CoupleID != couple.ID {
		t.Errorf("members not linked: jo=%v kim=%v", jo.CoupleID, kim.CoupleID)
	}
	if len(f.rec.ofType(events.CoupleFormed)) != 1 {
		t.Error("CoupleFormed not published")
	}

	lee := f.user(t, "lee@example.com", "Lee")
	_, err = svc.RedeemInvitation(ctx, inv.Code, lee.ID)
	wantCode(t, err, apperr.CodeIllegalArgument)

	_, err = svc.RedeemInvitation(ctx, "missing", lee.ID)
	wantCode(t, err, apperr.CodeNotFound)
}

func TestRedeemInvitationRejectsMemberCoupledMeanwhile(t *testing.T) {
	f := newFixture(t)
	svc := NewCoupleService(f.deps, time.Hour)
	ctx := context.Background()

	jo := f.user(t, "jo@example.com", "Jo")
	kim := f.user(t, "kim@example.com", "Kim")
	lee := f.user(t, "lee@example.com", "Lee")
	inv, err := svc.CreateInvitation(ctx, jo.ID)
	if err != nil {
		t.Fatalf("CreateInvitation() error = %v", err)
	}

	// Kim pairs with Lee after the status check and before the commit.
	var other *models.Couple
	svc.afterLoad = func(context.Context, string, int64) {
		other = f.pair(t, kim, lee)
	}
	couplesBefore := f.count(t, "SELECT COUNT(*) FROM couples")

	_, err = svc.RedeemInvitation(ctx, inv.Code, kim.ID)
	wantCode(t, err, apperr.CodeIllegalPartnerStatus)

	f.refresh(t, jo)
	f.refresh(t, kim)
	if !jo.IsSingle() || jo.CoupleID != nil {
		t.Errorf("inviter = %+v, want SINGLE", jo)
	}
	if kim.CoupleID == nil || *kim.CoupleID != other.ID {
		t.Errorf("Kim's couple = %v, want %d", kim.CoupleID, other.ID)
	}
	if got := f.count(t, "SELECT COUNT(*) FROM couples"); got != couplesBefore+1 {
		t.Errorf("couples = %d, want only the Kim and Lee couple added to %d", got, couplesBefore)
	}
	if f.count(t, "SELECT COUNT(*) FROM invitations WHERE code = ? AND used_at IS NULL", inv.Code) != 1 {
		t.Error("invitation consumed by a rolled back redemption")
	}
	if len(f.rec.ofType(events.CoupleFormed)) != 0 {
		t.Error("CoupleFormed published for a rolled back redemption")
	}
}

func TestDeleteTagCascades(t *testing.T) {
	f := newFixture(t)
	tags := NewTagService(f.deps)
	contents := NewContentService(f.deps)
	ctx := context.Background()

	_, err := tags.CreateTag(ctx, actorOf(f.alex), "  ")
	wantCode(t, err, apperr.CodeIllegalArgument)

	tag, err := tags.CreateTag(ctx, actorOf(f.alex), " trips ")
	if err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}
	if tag.Label != "trips" {
		t.Errorf("Label = %q", tag.Label)
	}
	sum, err := contents.CreateContent(ctx, CreateContentInput{
		Detail: detail("Jeju"), TagIDs: []int64{tag.ID}, CreatorID: f.alex.ID, CoupleID: f.couple.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	jo := f.user(t, "jo@example.com", "Jo")
	kim := f.user(t, "kim@example.com", "Kim")
	f.pair(t, jo, kim)
	wantCode(t, tags.DeleteTag(ctx, tag.ID, actorOf(jo)), apperr.CodeCoupleMismatch)

	if err := tags.DeleteTag(ctx, tag.ID, actorOf(f.sam)); err != nil {
		t.Fatalf("DeleteTag() error = %v", err)
	}
	ids, err := f.st.Tags.ActiveTagIDs(ctx, sum.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("assignments still live: %v", ids)
	}
	list, err := tags.ListTags(ctx, actorOf(f.sam))
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("ListTags() = %v, want empty", list)
	}
	if _, err := f.st.Tags.GetTagByID(ctx, tag.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetTagByID() error = %v, want ErrNotFound", err)
	}
	wantCode(t, tags.DeleteTag(ctx, tag.ID, actorOf(f.sam)), apperr.CodeNotFound)

	single := f.user(t, "lee@example.com", "Lee")
	_, err = tags.ListTags(ctx, actorOf(single))
	wantCode(t, err, apperr.CodeIllegalPartnerStatus)
}
