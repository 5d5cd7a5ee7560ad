package auth

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AuditLogger writes one JSON line per authenticated request: who acted, from
// where, which entities the route named, and how the request finished. The
// stream is separate from the application log so audit records can be
// retained on their own schedule.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(stream io.Writer) AuditLogger {
	return AuditLogger{logger: slog.New(slog.NewJSONHandler(stream, nil))}
}

func callerAddr(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	// The first hop of X-Forwarded-For is the original client.
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// entityAttrs collects the route's entity ids (group_id, note_id, quiz_id,
// link_id, ...) so audit lines can be filtered by the entity acted on.
func entityAttrs(r *http.Request) []interface{} {
	attrs := make([]interface{}, 0)

	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return attrs
	}
	for i, key := range rctx.URLParams.Keys {
		if key == "*" {
			continue
		}
		attrs = append(attrs, slog.String(key, rctx.URLParams.Values[i]))
	}
	return attrs
}

func queryAttrs(r *http.Request) []interface{} {
	attrs := make([]interface{}, 0)
	for key, values := range r.URL.Query() {
		attrs = append(attrs, slog.String(key, strings.Join(values, ";")))
	}
	return attrs
}

func (log *AuditLogger) Middleware(next http.Handler) http.Handler {
	handler := func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}

		log.logger.Info("api request",
			"username", user.Username,
			"user_id", user.Id,
			"admin", user.IsAdmin,
			"client_ip", callerAddr(r),
			"method", r.Method,
			"url", r.URL.Path,
			"route", route,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			slog.Group("entities", entityAttrs(r)...),
			slog.Group("query_params", queryAttrs(r)...),
		)
	}
	return http.HandlerFunc(handler)
}
