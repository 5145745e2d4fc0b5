package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"duet/internal/apperr"
	"duet/internal/database"
	"duet/internal/events"
	"duet/internal/logger"
	"duet/internal/occ"
	"duet/internal/repository"
)

// Backend is the storage a service reads from and opens transactions on.
// *database.DB satisfies it.
type Backend interface {
	database.DBTX
	database.TxRunner
}

// Policies are the retry policies applied to guarded mutations
type Policies struct {
	// Update applies to content and schedule detail updates
	Update occ.Policy
	// Retry applies to deletions and couple field updates
	Retry occ.Policy
}

// DefaultPolicies returns immediate-fail updates and 3-attempt backoff retries
func DefaultPolicies() Policies {
	return Policies{Update: occ.ImmediateFail(), Retry: occ.BackoffRetry()}
}

// Deps are the collaborators shared by every service
type Deps struct {
	DB          Backend
	Coordinator *occ.Coordinator
	Events      events.Publisher
	Logger      *logger.Logger
	Policies    *Policies
}

type base struct {
	db       Backend
	coord    *occ.Coordinator
	events   events.Publisher
	log      *logger.Logger
	policies Policies
	now      func() time.Time

	// afterLoad runs after a guarded mutation has read its entity and before
	// it validates and commits
	afterLoad func(ctx context.Context, entity string, id int64)
}

func newBase(d Deps, component string) base {
	log := d.Logger
	if log == nil {
		log = logger.NewNop()
	}
	coord := d.Coordinator
	if coord == nil {
		coord = occ.NewCoordinator(log, nil)
	}
	pub := d.Events
	if pub == nil {
		pub = events.Discard
	}
	policies := DefaultPolicies()
	if d.Policies != nil {
		policies = *d.Policies
	}
	return base{
		db:       d.DB,
		coord:    coord,
		events:   pub,
		log:      log.With("service", component),
		policies: policies,
		now:      time.Now,
	}
}

func (b *base) loaded(ctx context.Context, entity string, id int64) {
	if b.afterLoad != nil {
		b.afterLoad(ctx, entity, id)
	}
}

// reads returns repositories bound to the connection pool
func (b *base) reads() *repository.Store {
	return repository.NewStore(b.db)
}

// inTx runs fn with repositories bound to one transaction. A write that lost
// a race inside the engine is reported as a stale version so the retry
// policy treats it like a failed compare-and-set.
func (b *base) inTx(ctx context.Context, fn func(st *repository.Store) error) error {
	err := b.db.InTx(ctx, func(q database.DBTX) error {
		return fn(repository.NewStore(q))
	})
	if errors.Is(err, database.ErrWriteConflict) && !occ.IsConflict(err) {
		return fmt.Errorf("%w: %v", occ.ErrStaleVersion, err)
	}
	return err
}

// partnerOf returns the other member of a couple, or 0 when there is none
func (b *base) partnerOf(ctx context.Context, coupleID, userID int64) int64 {
	members, err := b.reads().Users.ListByCouple(ctx, coupleID)
	if err != nil {
		b.log.Warn("failed to resolve partner", "couple_id", coupleID, "error", err)
		return 0
	}
	for _, m := range members {
		if m.ID != userID {
			return m.ID
		}
	}
	return 0
}

// notFound maps a repository miss to the domain NOT_FOUND error
func notFound(err error, resource string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(resource)
	}
	return err
}
