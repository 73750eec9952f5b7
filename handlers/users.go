package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"

	"go_trial/ordertaking/auth"
	"go_trial/ordertaking/models"
	"go_trial/ordertaking/store"
)

var authTracer = otel.Tracer("auth-service")

// GetUsers lists staff accounts, newest first. Password hashes are never serialised.
func (api *API) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := api.Store.ListUsers(r.Context())
	if err != nil {
		api.fail(w, "USERS", err, "Failed to fetch users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// CreateUserHandler handles requests to create a new staff account.
func (api *API) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := authTracer.Start(r.Context(), "CreateUserHandler")
	defer span.End()

	var req models.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.fail(w, "USERS", err, "")
		return
	}
	if err := req.Validate(); err != nil {
		api.fail(w, "USERS", err, "")
		return
	}

	_, hashSpan := authTracer.Start(ctx, "HashPassword")
	hash, err := auth.HashPassword(req.Password)
	hashSpan.End()
	if err != nil {
		api.fail(w, "USERS", err, "Failed to create user")
		return
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         req.Role,
	}
	err = api.Store.CreateUser(ctx, user)
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusConflict, "Username already exists")
		return
	}
	if err != nil {
		span.RecordError(err)
		api.fail(w, "USERS", err, "Failed to create user")
		return
	}

	if p, ok := auth.FromContext(ctx); ok {
		api.Log.LogSecurity("USER_CREATED", fmt.Sprintf("%s created %s (%s)", p.Username, user.Username, user.Role))
	}
	writeJSON(w, http.StatusCreated, user)
}

// DeleteUserHandler removes the account and ends its sessions: refresh tokens are dropped and
// access tokens already issued to the username stop working.
func (api *API) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := authTracer.Start(r.Context(), "DeleteUserHandler")
	defer span.End()

	id := mux.Vars(r)["id"]
	user, err := api.Store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		api.fail(w, "USERS", err, "Failed to delete user")
		return
	}

	if err := api.Sessions.RevokeUser(ctx, user.Username, time.Now(), api.Issuer.AccessTTL()); err != nil {
		span.RecordError(err)
		api.fail(w, "USERS", err, "Failed to revoke user sessions")
		return
	}
	err = api.Store.DeleteUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		span.RecordError(err)
		api.fail(w, "USERS", err, "Failed to delete user")
		return
	}
	dropped, err := api.Sessions.DropRefresh(ctx, user.Username)
	if err != nil {
		api.Log.Warn("USERS", fmt.Sprintf("Refresh tokens of %s not dropped: %v", user.Username, err))
	}

	if p, ok := auth.FromContext(ctx); ok {
		api.Log.LogSecurity("USER_DELETED", fmt.Sprintf("%s deleted %s, %d refresh token(s) dropped", p.Username, user.Username, dropped))
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "User deleted successfully"})
}

// GetCurrentUserHandler returns the caller's own profile.
func (api *API) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	user, err := api.Store.GetUserByUsername(r.Context(), p.Username)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		api.fail(w, "USERS", err, "Error fetching user details")
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}
