package service

import (
	"context"
	"testing"
	"time"

	"duet/internal/apperr"
)

func TestPurgeDeleted(t *testing.T) {
	f := newFixture(t)
	contents := NewContentService(f.deps)
	svc := NewMaintenanceService(f.deps)
	ctx := context.Background()

	old, err := contents.CreateContent(ctx, CreateContentInput{Detail: detail("old"), CreatorID: f.alex.ID, CoupleID: f.couple.ID})
	if err != nil {
		t.Fatal(err)
	}
	recent, err := contents.CreateContent(ctx, CreateContentInput{Detail: detail("recent"), CreatorID: f.alex.ID, CoupleID: f.couple.ID})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []int64{old.ID, recent.ID} {
		if err := contents.DeleteContent(ctx, id, actorOf(f.alex)); err != nil {
			t.Fatal(err)
		}
	}
	f.exec(t, "UPDATE contents SET deleted_at = ? WHERE id = ?", time.Now().UTC().Add(-60*24*time.Hour), old.ID)

	res, err := svc.PurgeDeleted(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeDeleted() error = %v", err)
	}
	if res.Contents != 1 {
		t.Errorf("Contents purged = %d, want 1", res.Contents)
	}
	if f.count(t, "SELECT COUNT(*) FROM contents WHERE id = ?", old.ID) != 0 {
		t.Error("old content still present")
	}
	if f.count(t, "SELECT COUNT(*) FROM contents WHERE id = ?", recent.ID) != 1 {
		t.Error("recently deleted content was purged")
	}

	_, err = svc.PurgeDeleted(ctx, 0)
	wantCode(t, err, apperr.CodeIllegalArgument)
}
