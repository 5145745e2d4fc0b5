package handlers

import (
	"net/http"
	"strings"
	"time"

	"duet/internal/apperr"
	"duet/internal/logger"
	"duet/internal/security"
	"duet/internal/service"
)

// CoupleHandler handles account, couple, invitation and tag requests
type CoupleHandler struct {
	users   *service.UserService
	couples *service.CoupleService
	tags    *service.TagService
	tokens  *security.TokenIssuer
	log     *logger.Logger
}

// NewCoupleHandler creates a new couple handler
func NewCoupleHandler(users *service.UserService, couples *service.CoupleService, tags *service.TagService, tokens *security.TokenIssuer, log *logger.Logger) *CoupleHandler {
	return &CoupleHandler{users: users, couples: couples, tags: tags, tokens: tokens, log: log}
}

// Register handles POST /users and returns a bearer token for the new user
func (h *CoupleHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	user, err := h.users.Register(r.Context(), req.Email, req.Name)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, RegisterView{User: newUserView(*user), Token: token})
}

// Me handles GET /me
func (h *CoupleHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	user, err := h.users.GetUser(r.Context(), actor.UserID)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(*user))
}

// GetCouple handles GET /couple
func (h *CoupleHandler) GetCouple(w http.ResponseWriter, r *http.Request) {
	_, coupleID, err := coupledActor(r)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	couple, err := h.couples.GetCouple(r.Context(), coupleID)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newCoupleView(couple))
}

// UpdateStartDate handles PUT /couple/start-date
func (h *CoupleHandler) UpdateStartDate(w http.ResponseWriter, r *http.Request) {
	_, coupleID, err := coupledActor(r)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	var req StartDateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		respondWithError(w, h.log, apperr.IllegalArgument("date must look like 2006-01-02"))
		return
	}
	if err := h.couples.UpdateCoupleStartDate(r.Context(), coupleID, date, req.Timezone); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateSharedMessage handles PUT /couple/shared-message
func (h *CoupleHandler) UpdateSharedMessage(w http.ResponseWriter, r *http.Request) {
	_, coupleID, err := coupledActor(r)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	var req SharedMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	if err := h.couples.UpdateCoupleSharedMessage(r.Context(), coupleID, req.Message); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LeaveCouple handles POST /couple/leave
func (h *CoupleHandler) LeaveCouple(w http.ResponseWriter, r *http.Request) {
	actor, coupleID, err := coupledActor(r)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	if err := h.couples.LeaveCouple(r.Context(), coupleID, actor.UserID); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateInvitation handles POST /invitations
func (h *CoupleHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	inv, err := h.couples.CreateInvitation(r.Context(), actor.UserID)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, InvitationView{Code: inv.Code, InviterName: inv.InviterName, ExpiresAt: inv.ExpiresAt})
}

// RedeemInvitation handles POST /invitations/redeem
func (h *CoupleHandler) RedeemInvitation(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	var req RedeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	couple, err := h.couples.RedeemInvitation(r.Context(), req.Code, actor.UserID)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	full, err := h.couples.GetCouple(r.Context(), couple.ID)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCoupleView(full))
}

// CreateTag handles POST /tags
func (h *CoupleHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	var req TagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	tag, err := h.tags.CreateTag(r.Context(), actor, req.Label)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTagView(*tag))
}

// ListTags handles GET /tags
func (h *CoupleHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	tags, err := h.tags.ListTags(r.Context(), actor)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	out := make([]TagView, 0, len(tags))
	for _, t := range tags {
		out = append(out, newTagView(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteTag handles DELETE /tags/{id}
func (h *CoupleHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	if err := h.tags.DeleteTag(r.Context(), id, actor); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
