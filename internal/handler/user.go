package handler

import (
	"context"
	"net/http"

	"github.com/forgo/occasions/api/internal/model"
)

// UserService is the member behaviour the handler depends on
type UserService interface {
	Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error)
	GetByUserID(ctx context.Context, userID string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	Count(ctx context.Context) (int, error)
	CountByGroup(ctx context.Context, group string) (int, error)
	Update(ctx context.Context, userID string, req *model.UpdateUserRequest) (*model.User, error)
	Delete(ctx context.Context, userID, replacementID string) error
	Authenticate(ctx context.Context, userID, password string) (*model.User, error)
}

// LoginRequest carries member credentials
type LoginRequest struct {
	UserID   string `json:"userid"`
	Password string `json:"password"`
}

// UserHandler handles member HTTP requests
type UserHandler struct {
	svc UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Create handles POST /v1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	user, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "create user"))
		return
	}

	WriteData(w, http.StatusCreated, user, map[string]string{
		"self": "/v1/users/" + user.UserID,
	})
}

// Get handles GET /v1/users/{userId}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetByUserID(r.Context(), r.PathValue("userId"))
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "get user"))
		return
	}

	WriteData(w, http.StatusOK, user, nil)
}

// List handles GET /v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "list users"))
		return
	}

	WriteCollection(w, http.StatusOK, users, len(users), nil)
}

// CountResponse carries a count
type CountResponse struct {
	Count int `json:"count"`
}

// Count handles GET /v1/users/count
func (h *UserHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Count(r.Context())
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "count users"))
		return
	}

	WriteData(w, http.StatusOK, CountResponse{Count: n}, nil)
}

// CountByGroup handles GET /v1/users/count/{group}
func (h *UserHandler) CountByGroup(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.CountByGroup(r.Context(), r.PathValue("group"))
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "count users"))
		return
	}

	WriteData(w, http.StatusOK, CountResponse{Count: n}, nil)
}

// Update handles PATCH /v1/users/{userId}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateUserRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	user, err := h.svc.Update(r.Context(), r.PathValue("userId"), &req)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "update user"))
		return
	}

	WriteData(w, http.StatusOK, user, map[string]string{
		"self": "/v1/users/" + user.UserID,
	})
}

// Delete handles DELETE /v1/users/{userId}
// Optional ?admin=<user record ID> takes over a deleted group admin's group.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var replacement string
	if v := r.URL.Query().Get("admin"); v != "" {
		id, ok := recordID(v, "user")
		if !ok {
			WriteError(w, model.NewBadRequestError("invalid admin id"))
			return
		}
		replacement = id
	}

	if err := h.svc.Delete(r.Context(), r.PathValue("userId"), replacement); err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "delete user"))
		return
	}

	WriteNoContent(w)
}

// Login handles POST /v1/auth/login
// Credentials are checked only; no session or token is issued.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	user, err := h.svc.Authenticate(r.Context(), req.UserID, req.Password)
	if err != nil {
		WriteError(w, MapServiceErrorWithContext(err, "login"))
		return
	}

	WriteData(w, http.StatusOK, user, nil)
}
