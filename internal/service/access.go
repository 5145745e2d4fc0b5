package service

import (
	"context"
	"errors"

	"duet/internal/apperr"
	"duet/internal/models"
	"duet/internal/repository"
)

// ValidateCoupleAccess decides whether actor may act on a record owned by
// owner. The owner always may. Anyone else must share the owner's couple, and
// the owner must be COUPLED with a couple id.
func ValidateCoupleAccess(owner *models.User, actor models.Actor) error {
	if owner.ID == actor.UserID {
		return nil
	}
	if owner.IsSingle() {
		return apperr.IllegalPartnerStatus()
	}
	if owner.CoupleID == nil {
		return apperr.IllegalPartnerStatus()
	}
	if actor.CoupleID == nil || *owner.CoupleID != *actor.CoupleID {
		return apperr.CoupleMismatch()
	}
	return nil
}

// authorize loads the owner of a record and validates actor against it
func (b *base) authorize(ctx context.Context, st *repository.Store, ownerID int64, actor models.Actor) error {
	if ownerID == actor.UserID {
		return nil
	}
	owner, err := st.Users.GetUserByID(ctx, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		// a dangling owner reference cannot be a partner
		return apperr.IllegalPartnerStatus()
	}
	if err != nil {
		return err
	}
	return ValidateCoupleAccess(owner, actor)
}

// requireCouple returns the actor's couple id or fails when they are single
func requireCouple(actor models.Actor) (int64, error) {
	if actor.CoupleID == nil {
		return 0, apperr.IllegalPartnerStatus()
	}
	return *actor.CoupleID, nil
}
