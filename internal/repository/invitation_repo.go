package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"duet/internal/database"
	"duet/internal/models"
)

type InvitationRepository struct {
	db database.DBTX
}

func NewInvitationRepository(db database.DBTX) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// GenerateInvitationCode generates a random invitation code
func (r *InvitationRepository) GenerateInvitationCode() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// CreateInvitation creates a new invitation
func (r *InvitationRepository) CreateInvitation(ctx context.Context, invitedBy int64, expiresAt time.Time) (*models.Invitation, error) {
	code, err := r.GenerateInvitationCode()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := `INSERT INTO invitations (code, invited_by, created_at, expires_at) VALUES (?, ?, ?, ?)`
	id, err := r.db.ExecReturningID(ctx, query, code, invitedBy, now, expiresAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	return &models.Invitation{
		ID:        id,
		Code:      code,
		InvitedBy: invitedBy,
		CreatedAt: now,
		ExpiresAt: expiresAt.UTC(),
	}, nil
}

// GetInvitationByCode retrieves an invitation by code
func (r *InvitationRepository) GetInvitationByCode(ctx context.Context, code string) (*models.Invitation, error) {
	query := `
		SELECT i.id, i.code, i.invited_by, i.created_at, i.used_at, i.used_by, i.expires_at, COALESCE(u.name, '')
		FROM invitations i
		LEFT JOIN users u ON i.invited_by = u.id
		WHERE i.code = ?
	`

	var (
		inv    models.Invitation
		usedAt sql.NullTime
		usedBy sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&inv.ID, &inv.Code, &inv.InvitedBy,
		&inv.CreatedAt, &usedAt, &usedBy, &inv.ExpiresAt, &inv.InviterName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	inv.UsedAt = timePtr(usedAt)
	inv.UsedBy = int64Ptr(usedBy)
	return &inv, nil
}

// MarkInvitationUsed marks an unused invitation as used. It reports false when
// the invitation was redeemed concurrently.
func (r *InvitationRepository) MarkInvitationUsed(ctx context.Context, code string, userID int64) (bool, error) {
	query := `UPDATE invitations SET used_at = ?, used_by = ? WHERE code = ? AND used_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), userID, code)
	if err != nil {
		return false, fmt.Errorf("failed to mark invitation used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}
