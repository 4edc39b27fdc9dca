package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/pizza-nz/staff-ordering/internal/api"
	"github.com/pizza-nz/staff-ordering/internal/apperr"
	"github.com/pizza-nz/staff-ordering/internal/models"
)

// AuthService covers credentials and account registration.
type AuthService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.UserRequest) (*models.AuthResponse, error)
	CheckStatus(ctx context.Context, principal models.Principal) (*models.AuthResponse, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdatePassword(ctx context.Context, targetID uuid.UUID, password string) (*models.User, error)
}

// AccountService covers guarded account status changes and removal.
type AccountService interface {
	UpdateActiveStatus(ctx context.Context, actor models.Principal, targetID uuid.UUID, active bool) (*models.User, error)
	RemoveAccount(ctx context.Context, actor models.Principal, targetID uuid.UUID) (*models.RemovedUser, error)
}

// UserHandler handles authentication and user-related requests
type UserHandler struct {
	authService    AuthService
	accountService AccountService
}

// NewUserHandler creates a new user handler
func NewUserHandler(authService AuthService, accountService AccountService) *UserHandler {
	return &UserHandler{
		authService:    authService,
		accountService: accountService,
	}
}

// Login handles POST /api/auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.Error(w, err)
		return
	}

	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		api.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// CheckStatus handles GET /api/auth/check-status
func (h *UserHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	resp, err := h.authService.CheckStatus(r.Context(), p)
	if err != nil {
		api.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Register handles POST /api/auth/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.UserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.Error(w, err)
		return
	}

	resp, err := h.authService.Register(r.Context(), req)
	if err != nil {
		api.Error(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// ListUsers handles GET /api/auth/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.ListUsers(r.Context())
	if err != nil {
		api.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// UpdateStatus handles PATCH /api/auth/users/{id}/status
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		api.Error(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	var req models.UserStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.Error(w, err)
		return
	}
	if req.IsActive == nil {
		api.Error(w, apperr.InvalidRequest("isActive is required"))
		return
	}

	user, err := h.accountService.UpdateActiveStatus(r.Context(), p, id, *req.IsActive)
	if err != nil {
		api.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdatePassword handles PATCH /api/auth/users/{id}/password
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	var req models.UserPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.Error(w, err)
		return
	}

	user, err := h.authService.UpdatePassword(r.Context(), id, req.Password)
	if err != nil {
		api.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Remove handles DELETE /api/auth/users/{id}
func (h *UserHandler) Remove(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		api.Error(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	removed, err := h.accountService.RemoveAccount(r.Context(), p, id)
	if err != nil {
		api.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, removed)
}
