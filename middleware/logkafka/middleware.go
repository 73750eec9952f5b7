package logkafka

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const anonymous = "anonymous"

type LogEntry struct {
	Level     string            `json:"level"`
	Module    string            `json:"module"`
	Message   string            `json:"message"`
	TraceID   string            `json:"trace_id"`
	Env       string            `json:"env"`
	Timestamp string            `json:"timestamp"`
	Extra     map[string]string `json:"extra"`
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

// requestInfo is filled in by handlers further down the chain.
type requestInfo struct {
	user string
}

type infoKey struct{}

// SetUser records the authenticated username for the access log of the current request.
func SetUser(ctx context.Context, username string) {
	if info, ok := ctx.Value(infoKey{}).(*requestInfo); ok {
		info.user = username
	}
}

// TraceID prefers the caller's X-Trace-ID, then the active span's trace id, then a fresh uuid.
func TraceID(r *http.Request) string {
	if id := r.Header.Get("X-Trace-ID"); id != "" {
		return id
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.New().String()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// LoggingMiddleware writes one LogEntry per request to sink. Sink errors never affect the response.
func LoggingMiddleware(sink Sink, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			traceID := TraceID(r)
			w.Header().Set("X-Trace-ID", traceID)

			info := &requestInfo{user: anonymous}
			ctx := context.WithValue(r.Context(), infoKey{}, info)

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))
			duration := time.Since(start)

			level := "info"
			switch {
			case rw.statusCode >= 500:
				level = "error"
			case rw.statusCode >= 400:
				level = "warn"
			}

			entry := LogEntry{
				Level:     level,
				Module:    "http",
				Message:   "request completed",
				TraceID:   traceID,
				Env:       env,
				Timestamp: start.UTC().Format(time.RFC3339),
				Extra: map[string]string{
					"user_id":     info.user,
					"ip":          clientIP(r),
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      fmt.Sprintf("%d", rw.statusCode),
					"duration_ms": fmt.Sprintf("%d", duration.Milliseconds()),
					"user_agent":  r.UserAgent(),
				},
			}
			_ = sink.WriteLog(context.Background(), entry)
		})
	}
}
