package handlers

import (
	"net/http"

	"duet/internal/apperr"
	"duet/internal/logger"
	"duet/internal/models"
	"duet/internal/service"
)

// ContentHandler handles memo and schedule HTTP requests
type ContentHandler struct {
	contents  *service.ContentService
	schedules *service.ScheduleService
	log       *logger.Logger
}

// NewContentHandler creates a new content handler
func NewContentHandler(contents *service.ContentService, schedules *service.ScheduleService, log *logger.Logger) *ContentHandler {
	return &ContentHandler{contents: contents, schedules: schedules, log: log}
}

// coupledActor returns the current actor and their couple id
func coupledActor(r *http.Request) (models.Actor, int64, error) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		return models.Actor{}, 0, apperr.AccessDenied("authentication required")
	}
	if actor.CoupleID == nil {
		return actor, 0, apperr.IllegalPartnerStatus()
	}
	return actor, *actor.CoupleID, nil
}

// CreateContent handles POST /contents
func (h *ContentHandler) CreateContent(w http.ResponseWriter, r *http.Request) {
	actor, coupleID, err := coupledActor(r)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	var req ContentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	assignee, err := req.assignee()
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}

	sum, err := h.contents.CreateContent(r.Context(), service.CreateContentInput{
		Detail:    req.detail(),
		TagIDs:    req.TagIDs,
		CreatorID: actor.UserID,
		CoupleID:  coupleID,
		Assignee:  assignee,
	})
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, ContentSummaryView{ID: sum.ID, Type: sum.Type})
}

// GetContent handles GET /contents/{id}
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	view, err := h.contents.GetContent(r.Context(), id, actor)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newContentView(view))
}

// ListContents handles GET /contents
func (h *ContentHandler) ListContents(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	views, err := h.contents.ListCoupleContents(r.Context(), actor)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	out := make([]ContentView, 0, len(views))
	for _, v := range views {
		out = append(out, newContentView(v))
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateContent handles PUT /contents/{id}. Omitting date_time makes the
// item a memo.
func (h *ContentHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	var req ContentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	assignee, err := req.assignee()
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	dt, err := req.DateTime.toModel()
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}

	sum, err := h.contents.UpdateContent(r.Context(), service.UpdateContentInput{
		ContentID: id,
		Detail:    req.detail(),
		TagIDs:    req.TagIDs,
		DateTime:  dt,
		Assignee:  assignee,
		Actor:     actor,
	})
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ContentSummaryView{ID: sum.ID, Type: sum.Type})
}

// DeleteContent handles DELETE /contents/{id}
func (h *ContentHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	if err := h.contents.DeleteContent(r.Context(), id, actor); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateSchedule handles POST /schedules
func (h *ContentHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	actor, coupleID, err := coupledActor(r)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	var req ContentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	assignee, err := req.assignee()
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	dt, err := req.DateTime.toModel()
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	if dt == nil {
		respondWithError(w, h.log, apperr.IllegalArgument("date_time is required"))
		return
	}

	created, err := h.schedules.CreateSchedule(r.Context(), service.CreateScheduleInput{
		Detail:    req.detail(),
		DateTime:  *dt,
		TagIDs:    req.TagIDs,
		CreatorID: actor.UserID,
		CoupleID:  coupleID,
		Assignee:  assignee,
	})
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedScheduleView{
		ContentID:  created.ContentID,
		ScheduleID: created.ScheduleID,
		ExternalID: created.ExternalID,
	})
}

// UpdateSchedule handles PUT /schedules/{id}
func (h *ContentHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	var req ContentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	assignee, err := req.assignee()
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	dt, err := req.DateTime.toModel()
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}

	sum, err := h.schedules.UpdateSchedule(r.Context(), service.UpdateScheduleInput{
		ScheduleID: id,
		Detail:     req.detail(),
		DateTime:   dt,
		TagIDs:     req.TagIDs,
		Assignee:   assignee,
		Actor:      actor,
	})
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ContentSummaryView{ID: sum.ID, Type: sum.Type})
}

// DeleteSchedule handles DELETE /schedules/{id}
func (h *ContentHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	if err := h.schedules.DeleteSchedule(r.Context(), id, actor); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
