package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"vidgen/internal/domain"
	"vidgen/internal/infra"
	"vidgen/internal/middleware"
	"vidgen/internal/service"
)

// App is the handler container holding the wired collaborators.
type App struct {
	Logger    infra.Logger
	Users     domain.UserRepository
	Videos    *service.VideoService
	JWTSecret string
}

// NewApp builds the handler container.
func NewApp(logger infra.Logger, users domain.UserRepository, videos *service.VideoService, jwtSecret string) *App {
	return &App{
		Logger:    logger,
		Users:     users,
		Videos:    videos,
		JWTSecret: jwtSecret,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]any{"error": message, "code": kind})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// serviceError maps the domain error taxonomy onto HTTP responses.
func (a *App) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPrompt):
		a.error(w, http.StatusBadRequest, "bad_request", "Prompt is required")
	case errors.Is(err, domain.ErrPolicyViolation):
		a.error(w, http.StatusBadRequest, "policy_violation", "Prompt violates content policy")
	case errors.Is(err, domain.ErrInvalidCredentials):
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "Video not found")
	case errors.Is(err, domain.ErrVideoNotReady):
		a.error(w, http.StatusBadRequest, "not_ready", "Video is not completed yet")
	case errors.Is(err, domain.ErrProviderFailure):
		a.error(w, http.StatusBadGateway, "upstream", "Video provider request failed")
	case errors.Is(err, domain.ErrRealtimeUnavailable):
		a.error(w, http.StatusInternalServerError, "internal", "Real-time service is unavailable")
	default:
		a.error(w, http.StatusInternalServerError, "internal", "Internal server error")
	}
}
