package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"duet/internal/apperr"
	"duet/internal/events"
	"duet/internal/models"
	"duet/internal/occ"
	"duet/internal/repository"
	"duet/internal/validation"
)

const defaultInvitationTTL = 72 * time.Hour

// CoupleService handles the couple relationship: its shared fields, its
// formation through invitations and member departure
type CoupleService struct {
	base
	invitationTTL time.Duration
}

// NewCoupleService creates a new couple service. A non-positive
// invitationTTL uses the default of three days.
func NewCoupleService(d Deps, invitationTTL time.Duration) *CoupleService {
	if invitationTTL <= 0 {
		invitationTTL = defaultInvitationTTL
	}
	return &CoupleService{base: newBase(d, "couple"), invitationTTL: invitationTTL}
}

// GetCouple returns a couple with its members
func (s *CoupleService) GetCouple(ctx context.Context, coupleID int64) (*models.CoupleWithMembers, error) {
	st := s.reads()
	couple, err := st.Couples.GetCoupleByID(ctx, coupleID)
	if err != nil {
		return nil, notFound(err, "couple")
	}
	members, err := st.Users.ListByCouple(ctx, coupleID)
	if err != nil {
		return nil, err
	}
	return &models.CoupleWithMembers{Couple: *couple, Members: members}, nil
}

// updateCouple runs one backoff-retried read-modify-write of a couple
func (s *CoupleService) updateCouple(ctx context.Context, name string, coupleID int64, conflictMessage string, mutate func(c *models.Couple) error) (*models.Couple, error) {
	op := occ.Operation{
		Name:            name,
		Entity:          "couple",
		EntityID:        coupleID,
		Policy:          s.policies.Retry,
		ConflictMessage: conflictMessage,
	}

	var couple *models.Couple
	err := s.coord.Execute(ctx, op, func(ctx context.Context) error {
		var err error
		couple, err = occ.Guard[*models.Couple]{
			Load: s.loadCouple(coupleID),
			Mutate: func(_ context.Context, c *models.Couple) error {
				return mutate(c)
			},
			Commit: func(ctx context.Context, c *models.Couple) error {
				return s.inTx(ctx, func(st *repository.Store) error {
					ok, err := st.Couples.UpdateCouple(ctx, c, c.Version)
					if err != nil {
						return err
					}
					return occ.RequireCASSuccess(ok, "couple", c.ID, c.Version)
				})
			},
		}.Run(ctx)
		return err
	})
	return couple, err
}

func (s *CoupleService) loadCouple(coupleID int64) func(ctx context.Context) (*models.Couple, error) {
	return func(ctx context.Context) (*models.Couple, error) {
		couple, err := s.reads().Couples.GetCoupleByID(ctx, coupleID)
		if err != nil {
			return nil, notFound(err, "couple")
		}
		s.loaded(ctx, "couple", coupleID)
		return couple, nil
	}
}

// UpdateCoupleStartDate sets the day the relationship started. The date may
// not lie after today in timezone. Only the start date is taken from the
// request; every other field comes from the freshest read.
func (s *CoupleService) UpdateCoupleStartDate(ctx context.Context, coupleID int64, date time.Time, timezone string) error {
	loc, err := validation.LoadTimezone(timezone)
	if err != nil {
		return err
	}
	if err := validation.ValidateStartDate(date, loc, s.now()); err != nil {
		return err
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	_, err = s.updateCouple(ctx, "couple.update_start_date", coupleID, "the start date could not be saved",
		func(c *models.Couple) error {
			c.StartDate = &day
			return nil
		})
	if err != nil {
		return err
	}
	s.events.Publish(events.New(events.CoupleUpdated, coupleID, 0, coupleID))
	return nil
}

// UpdateCoupleSharedMessage sets the message both partners see. A nil or
// blank message clears it.
func (s *CoupleService) UpdateCoupleSharedMessage(ctx context.Context, coupleID int64, message *string) error {
	if message != nil {
		trimmed := strings.TrimSpace(*message)
		if trimmed == "" {
			message = nil
		} else {
			message = &trimmed
		}
	}
	if err := validation.ValidateSharedMessage(message); err != nil {
		return err
	}

	_, err := s.updateCouple(ctx, "couple.update_shared_message", coupleID, "the shared message could not be saved",
		func(c *models.Couple) error {
			c.SharedMessage = message
			return nil
		})
	if err != nil {
		return err
	}
	s.events.Publish(events.New(events.CoupleUpdated, coupleID, 0, coupleID))
	return nil
}

// LeaveCouple removes userID from the couple and makes them SINGLE. The
// couple becomes INACTIVE while one member remains and is removed once the
// last member leaves.
func (s *CoupleService) LeaveCouple(ctx context.Context, coupleID, userID int64) error {
	op := occ.Operation{
		Name:            "couple.leave",
		Entity:          "couple",
		EntityID:        coupleID,
		Policy:          s.policies.Retry,
		ConflictMessage: "could not leave the couple",
	}

	var remaining int
	err := s.coord.Execute(ctx, op, func(ctx context.Context) error {
		_, err := occ.Guard[*models.Couple]{
			Load: s.loadCouple(coupleID),
			Mutate: func(_ context.Context, c *models.Couple) error {
				if !c.RemoveMember(userID) {
					return apperr.CoupleMismatch()
				}
				remaining = len(c.MemberIDs)
				if remaining > 0 {
					c.Status = models.CoupleStatusInactive
				}
				return nil
			},
			Commit: func(ctx context.Context, c *models.Couple) error {
				return s.inTx(ctx, func(st *repository.Store) error {
					if err := st.Users.SetCouple(ctx, userID, nil); err != nil {
						return err
					}
					var (
						ok  bool
						err error
					)
					if len(c.MemberIDs) == 0 {
						ok, err = st.Couples.DeleteCouple(ctx, c.ID, c.Version)
					} else {
						ok, err = st.Couples.UpdateCouple(ctx, c, c.Version)
					}
					if err != nil {
						return err
					}
					return occ.RequireCASSuccess(ok, "couple", c.ID, c.Version)
				})
			},
		}.Run(ctx)
		return err
	})
	if err != nil {
		return err
	}

	s.log.Info("member left couple", "couple_id", coupleID, "user_id", userID, "remaining", remaining)
	s.events.Publish(events.New(events.CoupleMemberLeft, coupleID, userID, coupleID))
	return nil
}

// CreateInvitation issues a one-time code a SINGLE user hands to their partner
func (s *CoupleService) CreateInvitation(ctx context.Context, inviterID int64) (*models.Invitation, error) {
	st := s.reads()
	inviter, err := st.Users.GetUserByID(ctx, inviterID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	if !inviter.IsSingle() {
		return nil, apperr.IllegalPartnerStatus()
	}
	inv, err := st.Invitations.CreateInvitation(ctx, inviterID, s.now().Add(s.invitationTTL))
	if err != nil {
		return nil, err
	}
	inv.InviterName = inviter.Name
	return inv, nil
}

// RedeemInvitation forms a new ACTIVE couple of the inviter and userID. Both
// must still be SINGLE when the couple is committed.
func (s *CoupleService) RedeemInvitation(ctx context.Context, code string, userID int64) (*models.Couple, error) {
	code = strings.TrimSpace(code)
	st := s.reads()
	inv, err := st.Invitations.GetInvitationByCode(ctx, code)
	if err != nil {
		return nil, notFound(err, "invitation")
	}
	if !inv.IsValid() {
		return nil, apperr.IllegalArgument("invitation is no longer valid")
	}
	if inv.InvitedBy == userID {
		return nil, apperr.IllegalArgument("you cannot redeem your own invitation")
	}
	memberIDs := []int64{inv.InvitedBy, userID}
	for _, id := range memberIDs {
		u, err := st.Users.GetUserByID(ctx, id)
		if err != nil {
			return nil, notFound(err, "user")
		}
		if !u.IsSingle() {
			return nil, apperr.IllegalPartnerStatus()
		}
	}
	s.loaded(ctx, "invitation", inv.ID)

	var couple *models.Couple
	err = s.inTx(ctx, func(st *repository.Store) error {
		used, err := st.Invitations.MarkInvitationUsed(ctx, inv.Code, userID)
		if err != nil {
			return err
		}
		if !used {
			return apperr.IllegalArgument("invitation is no longer valid")
		}

		couple, err = st.Couples.CreateCouple(ctx)
		if err != nil {
			return err
		}
		// A user who joined another couple since the check above fails the
		// conditional join and rolls the whole redemption back.
		for _, id := range memberIDs {
			joined, err := st.Users.JoinCouple(ctx, id, couple.ID)
			if err != nil {
				return err
			}
			if !joined {
				return apperr.IllegalPartnerStatus()
			}
		}

		members, err := st.Users.ListByCouple(ctx, couple.ID)
		if err != nil {
			return err
		}
		if len(members) > models.MaxCoupleMembers {
			return fmt.Errorf("couple %d formed with %d members", couple.ID, len(members))
		}
		couple.MemberIDs = memberIDs
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(events.New(events.CoupleFormed, couple.ID, userID, couple.ID))
	return couple, nil
}
