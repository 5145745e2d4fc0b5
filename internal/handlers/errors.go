package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"duet/internal/apperr"
	"duet/internal/logger"
)

type errorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

var statusByCode = map[apperr.Code]int{
	apperr.CodeNotFound:             http.StatusNotFound,
	apperr.CodeIllegalArgument:      http.StatusBadRequest,
	apperr.CodeInvalidDuration:      http.StatusBadRequest,
	apperr.CodeAccessDenied:         http.StatusForbidden,
	apperr.CodeIllegalPartnerStatus: http.StatusForbidden,
	apperr.CodeCoupleMismatch:       http.StatusForbidden,
	apperr.CodeUpdateConflict:       http.StatusConflict,
}

// statusFor maps a domain error code to an HTTP status
func statusFor(code apperr.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondWithError writes err as a JSON {code,message} body. Errors outside
// the domain taxonomy are logged and reported as INTERNAL without detail.
func respondWithError(w http.ResponseWriter, log *logger.Logger, err error) {
	if e, ok := apperr.As(err); ok && e.Code != apperr.CodeInternal {
		writeJSON(w, statusFor(e.Code), errorBody{Code: e.Code, Message: e.Message})
		return
	}
	log.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Code:    apperr.CodeInternal,
		Message: "Internal server error",
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object from the request body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.IllegalArgument("request body is too large")
		}
		return apperr.IllegalArgument("invalid JSON body: " + err.Error())
	}
	return nil
}
