package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go_trial/ordertaking/auth"
	"go_trial/ordertaking/logger"
	"go_trial/ordertaking/middleware/logkafka"
	"go_trial/ordertaking/models"
	"go_trial/ordertaking/session"
)

// SessionCookie carries the access token for browser clients.
const SessionCookie = "session_token"

var (
	errNoToken = errors.New("missing access token")
	errRevoked = errors.New("token has been revoked")
)

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// TokenFromRequest looks for the access token in the token header, a bearer Authorization
// header and the session cookie, in that order.
func TokenFromRequest(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get("token")); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

type Authenticator struct {
	Issuer   *auth.Issuer
	Sessions session.Sessions
	Log      *logger.Logger
}

func (a *Authenticator) identify(ctx context.Context, r *http.Request) (auth.Principal, error) {
	tokenString := TokenFromRequest(r)
	if tokenString == "" {
		return auth.Principal{}, errNoToken
	}
	claims, err := a.Issuer.ParseAccess(tokenString)
	if err != nil {
		return auth.Principal{}, err
	}
	revoked, err := a.Sessions.Revoked(ctx, claims.ID)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return auth.Principal{}, errRevoked
	}
	cutoff, err := a.Sessions.UserRevokedAt(ctx, claims.Username)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("check user revocation: %w", err)
	}
	if !cutoff.IsZero() && (claims.IssuedAt == nil || !claims.IssuedAt.After(cutoff)) {
		return auth.Principal{}, errRevoked
	}
	return claims.Principal(), nil
}

// SetCurrentUser rejects requests without a valid, unrevoked access token and puts the
// principal on the request context.
func (a *Authenticator) SetCurrentUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.identify(r.Context(), r)
		switch {
		case errors.Is(err, errNoToken):
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, errRevoked):
			a.Log.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
			writeError(w, http.StatusUnauthorized, "Access denied; please check the access token")
			return
		case err != nil:
			a.Log.Error("AUTH", err.Error())
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		logkafka.SetUser(r.Context(), p.Username)
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

// LandingPath is where a signed-in user of the given role starts.
func LandingPath(role models.Role) string {
	if role == models.RoleAdmin {
		return "/admin-dashboard"
	}
	return "/user-dashboard"
}

func hasPrefixPath(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// DashboardGate applies the page redirects. Signed-in users never see / or /login, dashboards
// need a session, and the admin area needs the ADMIN role. Requests that pass carry the principal
// when there is one.
func (a *Authenticator) DashboardGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.identify(r.Context(), r)
		authed := err == nil
		path := strings.TrimSuffix(r.URL.Path, "/")
		if path == "" {
			path = "/"
		}

		switch {
		case authed && (path == "/" || path == "/login"):
			http.Redirect(w, r, LandingPath(p.Role), http.StatusFound)
			return
		case !authed && (hasPrefixPath(path, "/admin-dashboard") || hasPrefixPath(path, "/user-dashboard")):
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		case authed && !p.IsAdmin() && hasPrefixPath(path, "/admin-dashboard"):
			a.Log.LogSecurity("FORBIDDEN", fmt.Sprintf("%s tried %s", p.Username, r.URL.Path))
			http.Redirect(w, r, "/user-dashboard", http.StatusFound)
			return
		}

		if authed {
			logkafka.SetUser(r.Context(), p.Username)
			r = r.WithContext(auth.WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns 403 unless the principal has role. It must run after SetCurrentUser.
func RequireRole(role models.Role, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if p.Role != role {
				log.LogSecurity("FORBIDDEN", fmt.Sprintf("%s (%s) denied %s %s", p.Username, p.Role, r.Method, r.URL.Path))
				writeError(w, http.StatusForbidden, "You do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireJSON rejects bodies on POST, PUT and PATCH that are not declared as JSON.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if r.ContentLength != 0 {
				mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
				if err != nil || mediaType != "application/json" {
					writeError(w, http.StatusUnsupportedMediaType, "Content-Type header must be application/json")
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("PANIC", fmt.Sprintf("Recovered from panic: %v", rec))
					writeError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, token, X-Trace-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit keeps a token bucket per client IP.
type RateLimit struct {
	limit rate.Limit
	burst int
	log   *logger.Logger

	mu       sync.Mutex
	limiters map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimit(perSecond float64, burst int, log *logger.Logger) *RateLimit {
	return &RateLimit{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		log:      log,
		limiters: make(map[string]*visitor),
	}
}

func (rl *RateLimit) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, v := range rl.limiters {
		if now.Sub(v.lastSeen) > 10*time.Minute {
			delete(rl.limiters, key)
		}
	}
	v, ok := rl.limiters[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (rl *RateLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !rl.limiter(ip).Allow() {
			rl.log.LogSecurity("RATE_LIMIT", fmt.Sprintf("Rate limit exceeded for IP: %s", ip))
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
