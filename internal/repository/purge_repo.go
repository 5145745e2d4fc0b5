package repository

import (
	"context"
	"fmt"
	"time"
)

// PurgeResult counts the rows removed by a purge
type PurgeResult struct {
	TagAssignments int64
	Schedules      int64
	Tags           int64
	Contents       int64
	Invitations    int64
}

// Total returns the number of rows removed
func (p PurgeResult) Total() int64 {
	return p.TagAssignments + p.Schedules + p.Tags + p.Contents + p.Invitations
}

// PurgeDeleted hard-deletes rows soft-deleted before cutoff, plus unused
// invitations that expired before cutoff. Children go first so that no live
// foreign key is left dangling.
func (s *Store) PurgeDeleted(ctx context.Context, cutoff time.Time) (PurgeResult, error) {
	var res PurgeResult
	q := s.db
	cutoff = cutoff.UTC()

	steps := []struct {
		name  string
		query string
		count *int64
	}{
		{
			name:  "tag assignments",
			query: "DELETE FROM tag_assignments WHERE deleted = ? AND deleted_at < ?",
			count: &res.TagAssignments,
		},
		{
			name:  "schedules",
			query: "DELETE FROM schedules WHERE deleted = ? AND deleted_at < ?",
			count: &res.Schedules,
		},
		{
			name: "tags",
			query: `DELETE FROM tags WHERE deleted = ? AND deleted_at < ?
				AND NOT EXISTS (SELECT 1 FROM tag_assignments a WHERE a.tag_id = tags.id)`,
			count: &res.Tags,
		},
		{
			name: "contents",
			query: `DELETE FROM contents WHERE deleted = ? AND deleted_at < ?
				AND NOT EXISTS (SELECT 1 FROM schedules s WHERE s.content_id = contents.id)
				AND NOT EXISTS (SELECT 1 FROM tag_assignments a WHERE a.content_id = contents.id)`,
			count: &res.Contents,
		},
	}

	for _, step := range steps {
		result, err := q.ExecContext(ctx, step.query, true, cutoff)
		if err != nil {
			return res, fmt.Errorf("failed to purge %s: %w", step.name, err)
		}
		if *step.count, err = result.RowsAffected(); err != nil {
			return res, fmt.Errorf("failed to count purged %s: %w", step.name, err)
		}
	}

	result, err := q.ExecContext(ctx, "DELETE FROM invitations WHERE used_at IS NULL AND expires_at < ?", cutoff)
	if err != nil {
		return res, fmt.Errorf("failed to purge invitations: %w", err)
	}
	if res.Invitations, err = result.RowsAffected(); err != nil {
		return res, fmt.Errorf("failed to count purged invitations: %w", err)
	}
	return res, nil
}
