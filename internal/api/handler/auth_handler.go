package handler

import (
	"log/slog"
	"net/http"
	"time"

	"loan-manager/internal/api/handler/dto"
	"loan-manager/internal/config"
	"loan-manager/internal/domain/user"
	"loan-manager/internal/pkg/token"
)

type AuthHandler struct {
	users  user.Service
	cfg    config.AuthConfig
	now    func() time.Time
	logger *slog.Logger
}

func NewAuthHandler(users user.Service, cfg config.AuthConfig, l *slog.Logger) *AuthHandler {
	if users == nil {
		panic("user service cannot be nil")
	}
	return &AuthHandler{
		users:  users,
		cfg:    cfg,
		now:    time.Now,
		logger: l.With("component", "AuthHandler"),
	}
}

// Signup registers a lender account.
//
// @Summary Sign up
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body dto.SignupRequest true "Account details"
// @Success 201 {object} dto.UserResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "E-mail already registered"
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	u, err := h.users.Signup(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.NewUserResponse(u))
}

// Login verifies credentials, returns a token and sets the session cookie.
//
// @Summary Log in
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	now := h.now()
	signed, err := token.Issue(h.cfg.JWTSecret, u.ID, h.cfg.TokenTTL, now)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to issue token", "error", err)
		respondError(w, err)
		return
	}
	expiresAt := now.Add(h.cfg.TokenTTL)

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.InfoContext(r.Context(), "User logged in", "userID", u.ID)
	respondJSON(w, http.StatusOK, dto.LoginResponse{Token: signed, ExpiresAt: expiresAt, User: dto.NewUserResponse(u)})
}

// Logout clears the session cookie.
//
// @Summary Log out
// @Tags Auth
// @Produce json
// @Success 200 {object} dto.MessageResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, dto.MessageResponse{Message: "Logged out"})
}

// Me returns the authenticated user.
//
// @Summary Current user
// @Tags Auth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/me [get]
// @Security BearerAuth
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	u, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewUserResponse(u))
}
