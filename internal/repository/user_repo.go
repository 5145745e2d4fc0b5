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

// UserRepository handles database operations for users
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, email, name, status, couple_id, created_at, updated_at"

// CreateUser inserts a new single user
func (r *UserRepository) CreateUser(ctx context.Context, email, name string) (*models.User, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO users (email, name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, email, name, models.UserStatusSingle, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &models.User{
		ID:        id,
		Email:     email,
		Name:      name,
		Status:    models.UserStatusSingle,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email address
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	return scanUser(row)
}

// ListByCouple returns the users whose couple_id is coupleID
func (r *UserRepository) ListByCouple(ctx context.Context, coupleID int64) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users WHERE couple_id = ? ORDER BY id", coupleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list couple members: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SetCouple links a user to a couple and marks them COUPLED, or unlinks them
// and marks them SINGLE when coupleID is nil
func (r *UserRepository) SetCouple(ctx context.Context, userID int64, coupleID *int64) error {
	status := models.UserStatusSingle
	if coupleID != nil {
		status = models.UserStatusCoupled
	}
	query := "UPDATE users SET status = ?, couple_id = ?, updated_at = ? WHERE id = ?"
	result, err := r.db.ExecContext(ctx, query, status, nullInt64(coupleID), time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update user couple: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// JoinCouple links a SINGLE user to coupleID and marks them COUPLED. It
// reports false when the user is no longer SINGLE.
func (r *UserRepository) JoinCouple(ctx context.Context, userID, coupleID int64) (bool, error) {
	query := "UPDATE users SET status = ?, couple_id = ?, updated_at = ? WHERE id = ? AND status = ?"
	result, err := r.db.ExecContext(ctx, query,
		models.UserStatusCoupled, coupleID, time.Now().UTC(), userID, models.UserStatusSingle)
	if err != nil {
		return false, fmt.Errorf("failed to join couple: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u        models.User
		status   string
		coupleID sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &status, &coupleID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Status = models.UserStatus(status)
	u.CoupleID = int64Ptr(coupleID)
	return &u, nil
}
