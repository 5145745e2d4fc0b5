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

// ContentRepository handles database operations for content items
type ContentRepository struct {
	db database.DBTX
}

// NewContentRepository creates a new content repository
func NewContentRepository(db database.DBTX) *ContentRepository {
	return &ContentRepository{db: db}
}

const contentColumns = "id, owner_id, couple_id, title, description, completed, assignee, version, deleted, deleted_at, created_at, updated_at"

// CreateContent inserts a content item and fills in its id and timestamps
func (r *ContentRepository) CreateContent(ctx context.Context, c *models.Content) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO contents (owner_id, couple_id, title, description, completed, assignee, version, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		c.OwnerID, c.CoupleID, nullString(c.Detail.Title), nullString(c.Detail.Description),
		c.Detail.Completed, string(c.Assignee), false, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create content: %w", err)
	}
	c.ID = id
	c.Version = 0
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// GetContentByID retrieves a live content item
func (r *ContentRepository) GetContentByID(ctx context.Context, id int64) (*models.Content, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+contentColumns+" FROM contents WHERE id = ? AND deleted = ?", id, false)
	return scanContent(row)
}

// ListContentsByCouple returns the live content of a couple, newest first
func (r *ContentRepository) ListContentsByCouple(ctx context.Context, coupleID int64) ([]models.Content, error) {
	query := "SELECT " + contentColumns + " FROM contents WHERE couple_id = ? AND deleted = ? ORDER BY created_at DESC, id DESC"
	rows, err := r.db.QueryContext(ctx, query, coupleID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list contents: %w", err)
	}
	defer rows.Close()

	var contents []models.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		contents = append(contents, *c)
	}
	return contents, rows.Err()
}

// UpdateContent writes detail and assignee if the version is still
// expectedVersion. It reports whether the write applied.
func (r *ContentRepository) UpdateContent(ctx context.Context, c *models.Content, expectedVersion int64) (bool, error) {
	return updateByVersion(ctx, r.db, "contents", c.ID, expectedVersion, time.Now(), map[string]interface{}{
		"title":       nullString(c.Detail.Title),
		"description": nullString(c.Detail.Description),
		"completed":   c.Detail.Completed,
		"assignee":    string(c.Assignee),
	})
}

// SoftDeleteContent marks a content item deleted if the version is still
// expectedVersion
func (r *ContentRepository) SoftDeleteContent(ctx context.Context, id, expectedVersion int64, now time.Time) (bool, error) {
	return updateByVersion(ctx, r.db, "contents", id, expectedVersion, now, map[string]interface{}{
		"deleted":    true,
		"deleted_at": now.UTC(),
	})
}

func scanContent(row rowScanner) (*models.Content, error) {
	var (
		c           models.Content
		title, desc sql.NullString
		assignee    string
		deletedAt   sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.CoupleID, &title, &desc, &c.Detail.Completed, &assignee,
		&c.Version, &c.Deleted, &deletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	c.Detail.Title = stringPtr(title)
	c.Detail.Description = stringPtr(desc)
	c.Assignee = models.Assignee(assignee)
	c.DeletedAt = timePtr(deletedAt)
	return &c, nil
}
