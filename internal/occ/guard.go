package occ

import (
	"context"
	"errors"
	"fmt"
)

// ErrStaleVersion is the storage-level conflict signal: a conditional write
// found a version different from the one that was read.
var ErrStaleVersion = errors.New("stale version")

// ConflictError describes which row failed its version check.
type ConflictError struct {
	Entity          string
	ID              int64
	ExpectedVersion int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %d: version %d is stale", e.Entity, e.ID, e.ExpectedVersion)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrStaleVersion
}

// Conflict builds the conflict signal for a row.
func Conflict(entity string, id, expectedVersion int64) error {
	return &ConflictError{Entity: entity, ID: id, ExpectedVersion: expectedVersion}
}

// RequireCASSuccess converts a compare-and-set that matched no row into a
// conflict signal.
func RequireCASSuccess(ok bool, entity string, id, expectedVersion int64) error {
	if ok {
		return nil
	}
	return Conflict(entity, id, expectedVersion)
}

// IsConflict reports whether err is (or wraps) the stale-version signal.
func IsConflict(err error) bool {
	return errors.Is(err, ErrStaleVersion)
}

// Guard is one read-modify-write of a versioned entity.
//
// Load reads the entity together with its version. Mutate applies the change
// in memory and may reject it. Commit persists the entity with a write that
// only succeeds when the stored version still equals the version read; it
// returns ErrStaleVersion (usually via Conflict) otherwise and must leave no
// partial state behind.
type Guard[T any] struct {
	Load   func(ctx context.Context) (T, error)
	Mutate func(ctx context.Context, entity T) error
	Commit func(ctx context.Context, entity T) error
}

// Run executes the guard once. It has no retry logic of its own.
func (g Guard[T]) Run(ctx context.Context) (T, error) {
	var zero T
	if g.Load == nil || g.Commit == nil {
		return zero, errors.New("occ: guard requires Load and Commit")
	}
	entity, err := g.Load(ctx)
	if err != nil {
		return zero, err
	}
	if g.Mutate != nil {
		if err := g.Mutate(ctx, entity); err != nil {
			return zero, err
		}
	}
	if err := g.Commit(ctx, entity); err != nil {
		return zero, err
	}
	return entity, nil
}
