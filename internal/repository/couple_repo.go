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

const startDateLayout = "2006-01-02"

// CoupleRepository handles database operations for couples. Membership is
// stored on the users table and loaded with the couple.
type CoupleRepository struct {
	db database.DBTX
}

// NewCoupleRepository creates a new couple repository
func NewCoupleRepository(db database.DBTX) *CoupleRepository {
	return &CoupleRepository{db: db}
}

// CreateCouple inserts a new ACTIVE couple with version 0
func (r *CoupleRepository) CreateCouple(ctx context.Context) (*models.Couple, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO couples (status, version, created_at, updated_at)
		VALUES (?, 0, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, models.CoupleStatusActive, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create couple: %w", err)
	}
	return &models.Couple{
		ID:        id,
		Status:    models.CoupleStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetCoupleByID retrieves a couple together with its member ids
func (r *CoupleRepository) GetCoupleByID(ctx context.Context, id int64) (*models.Couple, error) {
	query := `
		SELECT id, status, start_date, shared_message, version, created_at, updated_at
		FROM couples
		WHERE id = ?
	`
	var (
		c         models.Couple
		status    string
		startDate sql.NullString
		message   sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &status, &startDate, &message, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get couple: %w", err)
	}
	c.Status = models.CoupleStatus(status)
	c.SharedMessage = stringPtr(message)
	if startDate.Valid {
		d, err := time.Parse(startDateLayout, startDate.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse couple start date %q: %w", startDate.String, err)
		}
		c.StartDate = &d
	}

	rows, err := r.db.QueryContext(ctx, "SELECT id FROM users WHERE couple_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get couple members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var memberID int64
		if err := rows.Scan(&memberID); err != nil {
			return nil, fmt.Errorf("failed to scan couple member: %w", err)
		}
		c.MemberIDs = append(c.MemberIDs, memberID)
	}
	return &c, rows.Err()
}

// UpdateCouple writes the couple's fields if its version is still
// expectedVersion. It reports whether the write applied.
func (r *CoupleRepository) UpdateCouple(ctx context.Context, c *models.Couple, expectedVersion int64) (bool, error) {
	var startDate sql.NullString
	if c.StartDate != nil {
		startDate = sql.NullString{String: c.StartDate.Format(startDateLayout), Valid: true}
	}
	return updateByVersion(ctx, r.db, "couples", c.ID, expectedVersion, time.Now(), map[string]interface{}{
		"status":         string(c.Status),
		"start_date":     startDate,
		"shared_message": nullString(c.SharedMessage),
	})
}

// DeleteCouple hard-removes a couple if its version is still expectedVersion
func (r *CoupleRepository) DeleteCouple(ctx context.Context, id, expectedVersion int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM couples WHERE id = ? AND version = ?", id, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("failed to delete couple: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}
