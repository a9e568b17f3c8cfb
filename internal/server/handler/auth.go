package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alphadeck/papertrade/internal/server/middleware"
	"github.com/alphadeck/papertrade/internal/service"
)

// AuthHandler serves registration, login, logout, and the current-user
// endpoint.
type AuthHandler struct {
	auth      *service.AuthService
	cookieTTL time.Duration
	secure    bool
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secure controls the cookie's
// Secure flag; disable it only for local development over plain HTTP.
func NewAuthHandler(auth *service.AuthService, cookieTTL time.Duration, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		cookieTTL: cookieTTL,
		secure:    secure,
		logger:    logger,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates a new account.
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "auth.register"), err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login verifies credentials and sets the session cookie.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, sessionID, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, logHandler(h.logger, "auth.login"), err)
		return
	}

	http.SetCookie(w, h.sessionCookie(sessionID, h.cookieTTL))
	writeJSON(w, http.StatusOK, user)
}

// Logout destroys the session and clears the cookie.
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.auth.Logout(r.Context(), cookie.Value); err != nil {
			writeDomainError(w, logHandler(h.logger, "auth.logout"), err)
			return
		}
	}

	http.SetCookie(w, h.sessionCookie("", -time.Hour))
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the authenticated user.
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) sessionCookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
