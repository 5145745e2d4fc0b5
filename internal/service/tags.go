package service

import (
	"context"
	"sort"
	"time"

	"duet/internal/models"
)

// tagStore is the storage the tag reconciler writes through
type tagStore interface {
	ActiveTagIDs(ctx context.Context, contentID int64) ([]int64, error)
	LookupTags(ctx context.Context, coupleID int64, ids []int64) ([]models.Tag, error)
	AddAssignment(ctx context.Context, tagID, contentID int64, now time.Time) (int64, error)
	SoftDeleteAssignments(ctx context.Context, contentID int64, tagIDs []int64, now time.Time) error
}

// TagDiff lists the tag ids a reconcile added and removed
type TagDiff struct {
	Added   []int64
	Removed []int64
}

// Empty reports whether the reconcile wrote nothing
func (d TagDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

func (b *base) logTagDiff(contentID int64, diff TagDiff) {
	if diff.Empty() {
		return
	}
	b.log.Debug("content tags reconciled", "content_id", contentID, "added", diff.Added, "removed", diff.Removed)
}

// diffTagIDs returns requested-existing and existing-requested, sorted and
// without duplicates
func diffTagIDs(existing, requested []int64) (toAdd, toRemove []int64) {
	have := make(map[int64]bool, len(existing))
	for _, id := range existing {
		have[id] = true
	}
	want := make(map[int64]bool, len(requested))
	for _, id := range requested {
		want[id] = true
	}
	for id := range want {
		if !have[id] {
			toAdd = append(toAdd, id)
		}
	}
	for id := range have {
		if !want[id] {
			toRemove = append(toRemove, id)
		}
	}
	sort.Slice(toAdd, func(i, j int) bool { return toAdd[i] < toAdd[j] })
	sort.Slice(toRemove, func(i, j int) bool { return toRemove[i] < toRemove[j] })
	return toAdd, toRemove
}

// reconcileTags makes the live tag assignments of content equal requested.
// Assignments present on both sides are left alone. Requested ids that do not
// resolve to a live tag of the content's couple are skipped.
func reconcileTags(ctx context.Context, ts tagStore, content *models.Content, requested []int64, now time.Time) (TagDiff, error) {
	existing, err := ts.ActiveTagIDs(ctx, content.ID)
	if err != nil {
		return TagDiff{}, err
	}
	toAdd, toRemove := diffTagIDs(existing, requested)

	var diff TagDiff
	if len(toRemove) > 0 {
		if err := ts.SoftDeleteAssignments(ctx, content.ID, toRemove, now); err != nil {
			return TagDiff{}, err
		}
		diff.Removed = toRemove
	}
	if len(toAdd) == 0 {
		return diff, nil
	}

	tags, err := ts.LookupTags(ctx, content.CoupleID, toAdd)
	if err != nil {
		return TagDiff{}, err
	}
	for _, tag := range tags {
		if _, err := ts.AddAssignment(ctx, tag.ID, content.ID, now); err != nil {
			return TagDiff{}, err
		}
		diff.Added = append(diff.Added, tag.ID)
	}
	return diff, nil
}
