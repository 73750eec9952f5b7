package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go_trial/ordertaking/auth"
	"go_trial/ordertaking/middleware"
	"go_trial/ordertaking/models"
	"go_trial/ordertaking/store"
)

type Response struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

func (api *API) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   api.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// LoginTokenHandler exchanges credentials for an access and a refresh token. Unknown users and
// wrong passwords get the same answer.
func (api *API) LoginTokenHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := authTracer.Start(r.Context(), "LoginTokenHandler")
	defer span.End()
	loginRequests.Inc()

	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		loginRequestsbyStatus.WithLabelValues("error").Inc()
		api.fail(w, "AUTH", err, "")
		return
	}
	if err := req.Validate(); err != nil {
		loginRequestsbyStatus.WithLabelValues("error").Inc()
		api.fail(w, "AUTH", err, "")
		return
	}

	user, err := api.Store.GetUserByUsername(ctx, req.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		loginRequestsbyStatus.WithLabelValues("error").Inc()
		api.fail(w, "AUTH", err, "Internal server error")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		loginRequestsbyStatus.WithLabelValues("denied").Inc()
		api.Log.LogSecurity("LOGIN_FAILED", fmt.Sprintf("bad credentials for %q", req.Username))
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	access, accessClaims, err := api.Issuer.IssueAccess(user)
	if err != nil {
		loginRequestsbyStatus.WithLabelValues("error").Inc()
		api.fail(w, "AUTH", err, "Failed to generate token")
		return
	}
	refresh, refreshClaims, err := api.Issuer.IssueRefresh(user)
	if err != nil {
		loginRequestsbyStatus.WithLabelValues("error").Inc()
		api.fail(w, "AUTH", err, "Failed to generate token")
		return
	}
	if err := api.Sessions.SaveRefresh(ctx, user.Username, refreshClaims.ID, api.Issuer.RefreshTTL()); err != nil {
		loginRequestsbyStatus.WithLabelValues("error").Inc()
		api.fail(w, "AUTH", err, "Failed to store refresh token")
		return
	}

	api.setSessionCookie(w, access, accessClaims.ExpiresAt.Time)
	loginRequestsbyStatus.WithLabelValues("success").Inc()
	api.Log.Info("AUTH", fmt.Sprintf("%s signed in (%s)", user.Username, user.Role))
	writeJSON(w, http.StatusOK, Response{AccessToken: access, RefreshToken: refresh})
}

// RefreshTokenHandler issues a new access token for a refresh token that is still registered.
func (api *API) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.fail(w, "AUTH", err, "")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	claims, err := api.Issuer.ParseRefresh(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	ok, err := api.Sessions.RefreshValid(r.Context(), claims.Username, claims.ID)
	if err != nil {
		api.fail(w, "AUTH", err, "Internal server error")
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "Refresh token not found")
		return
	}

	// role may have changed since the refresh token was issued
	user, err := api.Store.GetUserByUsername(r.Context(), claims.Username)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	if err != nil {
		api.fail(w, "AUTH", err, "Internal server error")
		return
	}

	access, accessClaims, err := api.Issuer.IssueAccess(user)
	if err != nil {
		api.fail(w, "AUTH", err, "Failed to generate access token")
		return
	}
	api.setSessionCookie(w, access, accessClaims.ExpiresAt.Time)
	writeJSON(w, http.StatusOK, struct {
		AccessToken string `json:"access_token"`
	}{AccessToken: access})
}

// LogoutUserHandler revokes the presented access token, forgets every refresh token of the user
// and clears the session cookie.
func (api *API) LogoutUserHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if ttl := time.Until(p.ExpiresAt); ttl > 0 {
		if err := api.Sessions.Revoke(r.Context(), p.TokenID, ttl); err != nil {
			api.fail(w, "AUTH", err, "Failed to revoke token")
			return
		}
	}
	dropped, err := api.Sessions.DropRefresh(r.Context(), p.Username)
	if err != nil {
		api.fail(w, "AUTH", err, "Failed to delete refresh token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   api.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	api.Log.LogSecurity("LOGOUT", fmt.Sprintf("%s from %s, %d refresh token(s) dropped", p.Username, r.RemoteAddr, dropped))
	writeJSON(w, http.StatusOK, messageResponse{Message: "User logged out successfully"})
}
