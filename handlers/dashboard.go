package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go_trial/ordertaking/auth"
)

type dashboardResponse struct {
	Area     string `json:"area"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Dashboard answers the page routes once the gate has let the request through. The pages
// themselves are served by the front end; this only names the area and the viewer.
func (api *API) Dashboard(w http.ResponseWriter, r *http.Request) {
	area := strings.Trim(r.URL.Path, "/")
	if i := strings.IndexByte(area, '/'); i >= 0 {
		area = area[:i]
	}
	if area == "" {
		area = "home"
	}

	resp := dashboardResponse{Area: area}
	if p, ok := auth.FromContext(r.Context()); ok {
		resp.Username = p.Username
		resp.Role = string(p.Role)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health reports liveness and whether the store answers a ping.
func (api *API) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code, storeState := "ok", http.StatusOK, "up"
	if err := api.Store.Ping(ctx); err != nil {
		api.Log.Warn("HEALTH", "store ping failed: "+err.Error())
		status, code, storeState = "degraded", http.StatusServiceUnavailable, "down"
	}
	writeJSON(w, code, map[string]string{
		"status": status,
		"store":  storeState,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
