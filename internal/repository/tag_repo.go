package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"duet/internal/database"
	"duet/internal/models"
)

// TagRepository handles database operations for tags and tag assignments
type TagRepository struct {
	db database.DBTX
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db database.DBTX) *TagRepository {
	return &TagRepository{db: db}
}

const tagColumns = "id, couple_id, label, deleted, deleted_at, created_at"

// CreateTag inserts a tag for a couple
func (r *TagRepository) CreateTag(ctx context.Context, coupleID int64, label string) (*models.Tag, error) {
	now := time.Now().UTC()
	query := "INSERT INTO tags (couple_id, label, deleted, created_at) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, coupleID, label, false, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return &models.Tag{ID: id, CoupleID: coupleID, Label: label, CreatedAt: now}, nil
}

// GetTagByID retrieves a live tag
func (r *TagRepository) GetTagByID(ctx context.Context, id int64) (*models.Tag, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+tagColumns+" FROM tags WHERE id = ? AND deleted = ?", id, false)
	return scanTag(row)
}

// ListTagsByCouple returns a couple's live tags ordered by label
func (r *TagRepository) ListTagsByCouple(ctx context.Context, coupleID int64) ([]models.Tag, error) {
	query := "SELECT " + tagColumns + " FROM tags WHERE couple_id = ? AND deleted = ? ORDER BY label, id"
	return r.queryTags(ctx, query, coupleID, false)
}

// LookupTags returns the live tags of a couple among ids. Unknown,
// deleted or foreign ids are absent from the result.
func (r *TagRepository) LookupTags(ctx context.Context, coupleID int64, ids []int64) ([]models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT " + tagColumns + " FROM tags WHERE couple_id = ? AND deleted = ? AND id IN " + inClause(len(ids)) + " ORDER BY id"
	args := append([]interface{}{coupleID, false}, int64Args(ids)...)
	return r.queryTags(ctx, query, args...)
}

// SoftDeleteTag marks a tag deleted
func (r *TagRepository) SoftDeleteTag(ctx context.Context, id int64, now time.Time) error {
	result, err := r.db.ExecContext(ctx, "UPDATE tags SET deleted = ?, deleted_at = ? WHERE id = ? AND deleted = ?", true, now.UTC(), id, false)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveTagIDs returns the tag ids of the live assignments of a content item
func (r *TagRepository) ActiveTagIDs(ctx context.Context, contentID int64) ([]int64, error) {
	query := "SELECT tag_id FROM tag_assignments WHERE content_id = ? AND deleted = ? ORDER BY tag_id"
	rows, err := r.db.QueryContext(ctx, query, contentID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list tag assignments: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tag assignment: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountAssignments counts live and deleted assignment rows of a content item
func (r *TagRepository) CountAssignments(ctx context.Context, contentID int64) (live, deleted int, err error) {
	query := "SELECT deleted, COUNT(*) FROM tag_assignments WHERE content_id = ? GROUP BY deleted"
	rows, err := r.db.QueryContext(ctx, query, contentID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count tag assignments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			isDeleted bool
			n         int
		)
		if err := rows.Scan(&isDeleted, &n); err != nil {
			return 0, 0, fmt.Errorf("failed to scan tag assignment count: %w", err)
		}
		if isDeleted {
			deleted += n
		} else {
			live += n
		}
	}
	return live, deleted, rows.Err()
}

// AddAssignment creates a new live assignment row
func (r *TagRepository) AddAssignment(ctx context.Context, tagID, contentID int64, now time.Time) (int64, error) {
	query := "INSERT INTO tag_assignments (tag_id, content_id, deleted, created_at) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, tagID, contentID, false, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to assign tag %d: %w", tagID, err)
	}
	return id, nil
}

// SoftDeleteAssignments soft-deletes the live assignments of the given tags on
// a content item
func (r *TagRepository) SoftDeleteAssignments(ctx context.Context, contentID int64, tagIDs []int64, now time.Time) error {
	if len(tagIDs) == 0 {
		return nil
	}
	query := "UPDATE tag_assignments SET deleted = ?, deleted_at = ? WHERE content_id = ? AND deleted = ? AND tag_id IN " + inClause(len(tagIDs))
	args := append([]interface{}{true, now.UTC(), contentID, false}, int64Args(tagIDs)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove tag assignments: %w", err)
	}
	return nil
}

// SoftDeleteAssignmentsByContent soft-deletes every live assignment of a content item
func (r *TagRepository) SoftDeleteAssignmentsByContent(ctx context.Context, contentID int64, now time.Time) error {
	query := "UPDATE tag_assignments SET deleted = ?, deleted_at = ? WHERE content_id = ? AND deleted = ?"
	if _, err := r.db.ExecContext(ctx, query, true, now.UTC(), contentID, false); err != nil {
		return fmt.Errorf("failed to remove content tag assignments: %w", err)
	}
	return nil
}

// SoftDeleteAssignmentsByTag soft-deletes every live assignment of a tag
func (r *TagRepository) SoftDeleteAssignmentsByTag(ctx context.Context, tagID int64, now time.Time) error {
	query := "UPDATE tag_assignments SET deleted = ?, deleted_at = ? WHERE tag_id = ? AND deleted = ?"
	if _, err := r.db.ExecContext(ctx, query, true, now.UTC(), tagID, false); err != nil {
		return fmt.Errorf("failed to remove tag assignments: %w", err)
	}
	return nil
}

func (r *TagRepository) queryTags(ctx context.Context, query string, args ...interface{}) ([]models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *t)
	}
	return tags, rows.Err()
}

func scanTag(row rowScanner) (*models.Tag, error) {
	var (
		t         models.Tag
		deletedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.CoupleID, &t.Label, &t.Deleted, &deletedAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	t.DeletedAt = timePtr(deletedAt)
	return &t, nil
}
