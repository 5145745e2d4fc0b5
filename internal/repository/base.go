package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"duet/internal/database"
)

// ErrNotFound is returned when a row is absent or soft-deleted
var ErrNotFound = errors.New("not found")

// Store groups the repositories that share one query executor. Inside a
// transaction every repository of the store writes through the same *Tx.
type Store struct {
	db database.DBTX

	Users       *UserRepository
	Couples     *CoupleRepository
	Contents    *ContentRepository
	Schedules   *ScheduleRepository
	Tags        *TagRepository
	Invitations *InvitationRepository
}

// NewStore creates a store over q, which may be a *database.DB or a *database.Tx
func NewStore(q database.DBTX) *Store {
	return &Store{
		db:          q,
		Users:       NewUserRepository(q),
		Couples:     NewCoupleRepository(q),
		Contents:    NewContentRepository(q),
		Schedules:   NewScheduleRepository(q),
		Tags:        NewTagRepository(q),
		Invitations: NewInvitationRepository(q),
	}
}

// updateByVersion performs a compare-and-set update of a versioned row. The
// write only applies when the stored version equals expectedVersion; it then
// increments the version and stamps updated_at. It reports whether a row
// matched.
func updateByVersion(ctx context.Context, q database.DBTX, table string, id, expectedVersion int64, now time.Time, set map[string]interface{}) (bool, error) {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	assignments := make([]string, 0, len(keys)+2)
	args := make([]interface{}, 0, len(keys)+3)
	for _, k := range keys {
		assignments = append(assignments, k+" = ?")
		args = append(args, set[k])
	}
	assignments = append(assignments, "version = version + 1", "updated_at = ?")
	args = append(args, now.UTC(), id, expectedVersion)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND version = ?", table, strings.Join(assignments, ", "))
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update %s %d: %w", table, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows for %s %d: %w", table, id, err)
	}
	return n == 1, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// inClause returns "(?, ?, ...)" for n placeholders
func inClause(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
