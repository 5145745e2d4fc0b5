package service

import (
	"context"
	"fmt"
	"time"

	"duet/internal/apperr"
	"duet/internal/repository"
)

// MaintenanceService performs offline housekeeping on the store
type MaintenanceService struct {
	base
}

// NewMaintenanceService creates a new maintenance service
func NewMaintenanceService(d Deps) *MaintenanceService {
	return &MaintenanceService{base: newBase(d, "maintenance")}
}

// PurgeDeleted hard-deletes rows soft-deleted more than olderThan ago and
// invitations that expired unused before then. Everything is removed in one
// transaction.
func (s *MaintenanceService) PurgeDeleted(ctx context.Context, olderThan time.Duration) (repository.PurgeResult, error) {
	if olderThan <= 0 {
		return repository.PurgeResult{}, apperr.IllegalArgument("retention must be positive")
	}
	cutoff := s.now().Add(-olderThan)

	var res repository.PurgeResult
	err := s.inTx(ctx, func(st *repository.Store) error {
		var err error
		res, err = st.PurgeDeleted(ctx, cutoff)
		return err
	})
	if err != nil {
		return repository.PurgeResult{}, fmt.Errorf("failed to purge deleted rows: %w", err)
	}

	s.log.Info("purged soft-deleted rows",
		"cutoff", cutoff,
		"tag_assignments", res.TagAssignments,
		"schedules", res.Schedules,
		"tags", res.Tags,
		"contents", res.Contents,
		"invitations", res.Invitations,
	)
	return res, nil
}
