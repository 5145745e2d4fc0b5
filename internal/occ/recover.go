package occ

import "duet/internal/apperr"

// recover converts a conflict that survived the retry policy into the domain
// UPDATE_CONFLICT error. The raw conflict is logged but not wrapped so callers
// cannot depend on the storage-level type.
func (c *Coordinator) recover(op Operation, attempts int, conflict error) error {
	c.log.Warn("optimistic lock conflict",
		"op", op.Name,
		"entity", op.Entity,
		"entity_id", op.EntityID,
		"policy", op.Policy.Name,
		"attempts", attempts,
		"error", conflict.Error(),
	)
	return apperr.UpdateConflict(op.ConflictMessage).WithOp(op.Name)
}
