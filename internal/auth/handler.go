package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"ms-busticketing/internal/logger"
	"ms-busticketing/internal/models"
	"ms-busticketing/internal/utils"
)

type LoginService interface {
	Authenticator
	Login(ctx context.Context, username, password string) (*models.LoginResponse, error)
	Logout(ctx context.Context, sessionID string) error
}

type Handler struct {
	Service  LoginService
	Logger   *logger.Logger
	Validate *validator.Validate
}

func NewHandler(svc LoginService, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log, Validate: validator.New()}
}

// RegisterRoutes mounts /auth/login publicly and /auth/logout behind the session check.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.With(Middleware(h.Service)).Post("/logout", h.Logout)
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	resp, err := h.Service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		utils.WriteError(w, "Login failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Login successful", resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		utils.WriteError(w, "Authentication required", models.ErrSessionNotFound)
		return
	}

	if err := h.Service.Logout(r.Context(), session.ID); err != nil {
		h.Logger.Error("AUTH", "Failed to close session "+session.ID+": "+err.Error())
		utils.WriteError(w, "Logout failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Logged out", nil)
}
