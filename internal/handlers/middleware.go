package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"duet/internal/apperr"
	"duet/internal/logger"
	"duet/internal/models"
	"duet/internal/security"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const ActorContextKey ContextKey = "actor"

// UserLookup resolves the user a token was issued for
type UserLookup interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
}

// Middleware holds dependencies for middleware functions
type Middleware struct {
	tokens  *security.TokenIssuer
	users   UserLookup
	limiter *security.RateLimiter
	log     *logger.Logger
}

// NewMiddleware creates a new middleware instance. A nil limiter disables
// write rate limiting.
func NewMiddleware(tokens *security.TokenIssuer, users UserLookup, limiter *security.RateLimiter, log *logger.Logger) *Middleware {
	return &Middleware{tokens: tokens, users: users, limiter: limiter, log: log}
}

// RequireActor resolves the bearer token to the current actor. The actor's
// couple is read from storage on every request so that leaving or forming a
// couple takes effect immediately.
func (m *Middleware) RequireActor(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := m.tokens.Parse(security.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Code: "UNAUTHORIZED", Message: "a valid bearer token is required"})
			return
		}
		user, err := m.users.GetUser(r.Context(), userID)
		if err != nil {
			if apperr.IsCode(err, apperr.CodeNotFound) {
				writeJSON(w, http.StatusUnauthorized, errorBody{Code: "UNAUTHORIZED", Message: "unknown user"})
				return
			}
			respondWithError(w, m.log, err)
			return
		}

		actor := models.Actor{UserID: user.ID, CoupleID: user.CoupleID}
		ctx := context.WithValue(r.Context(), ActorContextKey, actor)
		next(w, r.WithContext(ctx))
	}
}

// RateLimit limits writes per actor, or per client address before
// authentication
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	if m.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + security.GetClientIP(r)
		if actor, ok := ActorFromContext(r.Context()); ok {
			key = "user:" + strconv.FormatInt(actor.UserID, 10)
		}
		if !m.limiter.Allow(key) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Code: "RATE_LIMITED", Message: "too many requests, please slow down"})
			return
		}
		next(w, r)
	}
}

// Write wraps a mutating handler with authentication and rate limiting
func (m *Middleware) Write(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireActor(m.RateLimit(next))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging middleware logs HTTP requests
func Logging(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// ActorFromContext retrieves the current actor from the request context
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(ActorContextKey).(models.Actor)
	return actor, ok
}

// pathID parses a positive integer path parameter
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.IllegalArgument("invalid " + name)
	}
	return id, nil
}
