package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"vidgen/internal/domain"
	"vidgen/internal/middleware"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string  `json:"token"`
	User  userDTO `json:"user"`
}

type userDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Register creates a new account and returns a signed token.
func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "valid email is required")
		return
	}
	if len(req.Password) < 8 {
		a.error(w, http.StatusBadRequest, "bad_request", "password must be at least 8 characters")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.Logger.Error().Err(err).Msg("auth: hash password failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to register")
		return
	}
	user, err := a.Users.Create(r.Context(), &domain.User{Email: email, PasswordHash: string(hash)})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			a.error(w, http.StatusConflict, "conflict", "email already registered")
			return
		}
		a.Logger.Error().Err(err).Msg("auth: create user failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to register")
		return
	}
	a.issueToken(w, http.StatusCreated, user)
}

// Login verifies credentials and returns a signed token.
func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := a.Users.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.serviceError(w, domain.ErrInvalidCredentials)
			return
		}
		a.Logger.Error().Err(err).Msg("auth: load user failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to login")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		a.serviceError(w, domain.ErrInvalidCredentials)
		return
	}
	a.issueToken(w, http.StatusOK, user)
}

// Profile returns the authenticated account.
func (a *App) Profile(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "user not found")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"user": userDTO{ID: user.ID, Email: user.Email}})
}

func (a *App) issueToken(w http.ResponseWriter, code int, user *domain.User) {
	token, err := middleware.SignJWT(a.JWTSecret, middleware.TokenClaims{
		Sub:      user.ID,
		Email:    user.Email,
		Exp:      time.Now().Add(24 * time.Hour).Unix(),
		Issuer:   "vidgen",
		Audience: "vidgen-clients",
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("auth: sign jwt failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}
	a.json(w, code, authResponse{Token: token, User: userDTO{ID: user.ID, Email: user.Email}})
}
