package occ

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"duet/internal/apperr"
	"duet/internal/logger"
)

// Policy governs whether and how a conflicting operation is re-attempted.
type Policy struct {
	Name         string
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// ImmediateFail runs the operation once; a conflict is surfaced without delay
// and the caller's write is discarded.
func ImmediateFail() Policy {
	return Policy{Name: "immediate-fail", MaxAttempts: 1}
}

// BackoffRetry re-runs the operation against fresh state up to three times,
// waiting 100ms then doubling, capped at 300ms.
func BackoffRetry() Policy {
	return Policy{
		Name:         "backoff-retry",
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     300 * time.Millisecond,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	return p
}

func (p Policy) backOff() backoff.BackOff {
	if p.InitialDelay == 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = 2
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0
	return b
}

// Operation names one guarded mutation for retry, logging and recovery.
type Operation struct {
	Name     string
	Entity   string
	EntityID int64
	Policy   Policy
	// ConflictMessage is the user-facing text of the UPDATE_CONFLICT raised
	// when the policy is exhausted.
	ConflictMessage string
}

// Coordinator executes operations under their retry policy.
type Coordinator struct {
	log   *logger.Logger
	hooks Hooks
}

// NewCoordinator creates a coordinator. hooks may be nil.
func NewCoordinator(log *logger.Logger, hooks Hooks) *Coordinator {
	if log == nil {
		log = logger.NewNop()
	}
	if hooks == nil {
		hooks = noopHooks{}
	}
	return &Coordinator{log: log.With("component", "occ"), hooks: hooks}
}

// Execute runs fn end-to-end (fn must re-read its entity) up to
// op.Policy.MaxAttempts times. Only stale-version conflicts are retried; every
// other error, domain errors included, is returned on first occurrence. A
// conflict that outlives the policy is converted into apperr UPDATE_CONFLICT
// and any other non-domain failure is tagged INTERNAL with the operation name.
func (c *Coordinator) Execute(ctx context.Context, op Operation, fn func(ctx context.Context) error) error {
	start := time.Now()
	policy := op.Policy.normalized()
	attempts := 0

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		c.hooks.IncConflict(op.Name)
		if attempts < policy.MaxAttempts {
			c.hooks.IncRetry(op.Name)
			c.log.Debug("retrying after version conflict",
				"op", op.Name,
				"entity", op.Entity,
				"entity_id", op.EntityID,
				"attempt", attempts,
			)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
	)

	if err != nil && IsConflict(err) {
		err = c.recover(op, attempts, err)
	}
	if _, ok := apperr.As(err); err != nil && !ok {
		err = apperr.Wrap(apperr.CodeInternal, op.Name, err)
	}
	c.hooks.ObserveOperation(op.Name, status(err), time.Since(start))
	return err
}

// retryable reports whether err is a storage conflict eligible for another
// attempt. Domain errors are never retryable.
func retryable(err error) bool {
	if _, ok := apperr.As(err); ok {
		return false
	}
	return IsConflict(err)
}

func status(err error) string {
	if err == nil {
		return "success"
	}
	if code := apperr.CodeOf(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "failure"
}
