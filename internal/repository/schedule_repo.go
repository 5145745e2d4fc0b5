package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"duet/internal/database"
	"duet/internal/models"
)

// ScheduleRepository handles database operations for schedule occurrences
type ScheduleRepository struct {
	db database.DBTX
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db database.DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = "id, content_id, external_id, start_at, start_timezone, end_at, end_timezone, version, deleted, deleted_at, created_at, updated_at"

// CreateSchedule inserts a schedule occurrence. An external id is generated
// when s.ExternalID is empty.
func (r *ScheduleRepository) CreateSchedule(ctx context.Context, s *models.Schedule) error {
	if s.ExternalID == "" {
		s.ExternalID = uuid.NewString()
	}
	now := time.Now().UTC()
	query := `
		INSERT INTO schedules (content_id, external_id, start_at, start_timezone, end_at, end_timezone, version, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		s.ContentID, s.ExternalID, s.StartAt.UTC(), s.StartTimezone, s.EndAt.UTC(), s.EndTimezone, false, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	s.ID = id
	s.Version = 0
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// GetScheduleByID retrieves a live schedule occurrence
func (r *ScheduleRepository) GetScheduleByID(ctx context.Context, id int64) (*models.Schedule, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+scheduleColumns+" FROM schedules WHERE id = ? AND deleted = ?", id, false)
	return scanSchedule(row)
}

// GetLiveScheduleByContentID retrieves the live occurrence of a content item
func (r *ScheduleRepository) GetLiveScheduleByContentID(ctx context.Context, contentID int64) (*models.Schedule, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+scheduleColumns+" FROM schedules WHERE content_id = ? AND deleted = ?", contentID, false)
	return scanSchedule(row)
}

// UpdateSchedule writes the timing fields if the version is still
// expectedVersion. It reports whether the write applied.
func (r *ScheduleRepository) UpdateSchedule(ctx context.Context, s *models.Schedule, expectedVersion int64) (bool, error) {
	return updateByVersion(ctx, r.db, "schedules", s.ID, expectedVersion, time.Now(), map[string]interface{}{
		"start_at":       s.StartAt.UTC(),
		"start_timezone": s.StartTimezone,
		"end_at":         s.EndAt.UTC(),
		"end_timezone":   s.EndTimezone,
	})
}

// SoftDeleteSchedule marks an occurrence deleted if the version is still
// expectedVersion
func (r *ScheduleRepository) SoftDeleteSchedule(ctx context.Context, id, expectedVersion int64, now time.Time) (bool, error) {
	return updateByVersion(ctx, r.db, "schedules", id, expectedVersion, now, map[string]interface{}{
		"deleted":    true,
		"deleted_at": now.UTC(),
	})
}

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	var (
		s         models.Schedule
		deletedAt sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.ContentID, &s.ExternalID, &s.StartAt, &s.StartTimezone, &s.EndAt, &s.EndTimezone,
		&s.Version, &s.Deleted, &deletedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	s.StartAt = s.StartAt.UTC()
	s.EndAt = s.EndAt.UTC()
	s.DeletedAt = timePtr(deletedAt)
	return &s, nil
}
