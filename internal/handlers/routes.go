package handlers

import (
	"net/http"

	"duet/internal/logger"
)

// NewRouter registers every API route on a new ServeMux
func NewRouter(mw *Middleware, contents *ContentHandler, couples *CoupleHandler, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Accounts
	mux.HandleFunc("POST /users", mw.RateLimit(couples.Register))
	mux.HandleFunc("GET /me", mw.RequireActor(couples.Me))

	// Content
	mux.HandleFunc("GET /contents", mw.RequireActor(contents.ListContents))
	mux.HandleFunc("POST /contents", mw.Write(contents.CreateContent))
	mux.HandleFunc("GET /contents/{id}", mw.RequireActor(contents.GetContent))
	mux.HandleFunc("PUT /contents/{id}", mw.Write(contents.UpdateContent))
	mux.HandleFunc("DELETE /contents/{id}", mw.Write(contents.DeleteContent))

	mux.HandleFunc("POST /schedules", mw.Write(contents.CreateSchedule))
	mux.HandleFunc("PUT /schedules/{id}", mw.Write(contents.UpdateSchedule))
	mux.HandleFunc("DELETE /schedules/{id}", mw.Write(contents.DeleteSchedule))

	// Tags
	mux.HandleFunc("GET /tags", mw.RequireActor(couples.ListTags))
	mux.HandleFunc("POST /tags", mw.Write(couples.CreateTag))
	mux.HandleFunc("DELETE /tags/{id}", mw.Write(couples.DeleteTag))

	// Couple
	mux.HandleFunc("GET /couple", mw.RequireActor(couples.GetCouple))
	mux.HandleFunc("PUT /couple/start-date", mw.Write(couples.UpdateStartDate))
	mux.HandleFunc("PUT /couple/shared-message", mw.Write(couples.UpdateSharedMessage))
	mux.HandleFunc("POST /couple/leave", mw.Write(couples.LeaveCouple))
	mux.HandleFunc("POST /invitations", mw.Write(couples.CreateInvitation))
	mux.HandleFunc("POST /invitations/redeem", mw.Write(couples.RedeemInvitation))

	return Logging(log, mux)
}
