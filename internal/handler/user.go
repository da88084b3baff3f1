package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/service"
)

// UserHandler serves registration, login and the caller's own profile.
//
// ROUTES:
//
//	POST  /api/user/create/ → HandleCreate  (public)
//	POST  /api/user/token/  → HandleToken   (public, rate limited)
//	GET   /api/user/me/     → HandleMe
//	PUT   /api/user/me/     → HandleUpdateMe (full)
//	PATCH /api/user/me/     → HandleUpdateMe (partial)
//	GET   /api/user/        → HandleList    (staff only)
type UserHandler struct {
	users  *service.UserService
	auth   *service.AuthService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, auth *service.AuthService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, auth: auth, logger: logger}
}

// userResponse is the public shape of an account. The password hash never
// leaves the service layer.
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name}
}

// staffUserResponse is an account as the staff user list shows it.
type staffUserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	IsActive    bool   `json:"is_active"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

func newStaffUserResponse(u *model.User) staffUserResponse {
	return staffUserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
	}
}

type tokenResponse struct {
	Token string `json:"token"`
}

// HandleCreate registers a new account.
//
// HTTP: POST /api/user/create/
// REQUEST BODY: {"email": "...", "name": "...", "password": "..."}
// RESPONSE: 201 {"id": "...", "email": "...", "name": "..."}
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.users.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

// HandleToken exchanges email and password for a bearer token.
//
// HTTP: POST /api/user/token/
// REQUEST BODY: {"email": "...", "password": "..."}
// RESPONSE: 200 {"token": "..."}; bad credentials give 400 without a token.
func (h *UserHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var in service.CredentialsInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.auth.IssueToken(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: res.Token})
}

// HandleMe returns the authenticated user's profile.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Me(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// HandleUpdateMe serves both PUT and PATCH; the method decides whether
// email and name are required.
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	partial := r.Method == http.MethodPatch
	user, err := h.users.UpdateProfile(r.Context(), callerID(r), in, partial)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// HandleList pages through every account for staff.
//
// HTTP: GET /api/user/?limit=20&offset=0
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	// Bad numbers fall back to the defaults; the service clamps the rest.
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.users.ListUsers(r.Context(), callerID(r), limit, offset)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := make([]staffUserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, newStaffUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}
