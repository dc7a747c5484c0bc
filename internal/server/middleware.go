package server

import (
	"net/http"
	"time"

	"golf-booking/pkg/logger"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// accessLog writes one line per request. The trace id is present when the
// otelhttp wrapper runs with a real tracer provider.
func accessLog(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			fields := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
				fields = append(fields, "trace_id", sc.TraceID().String())
			}
			log.Infow("http request", fields...)
		})
	}
}

type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// sessionID returns the caller's cart session, or "" if it has none yet.
func (c CookieConfig) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ensureSession returns the caller's cart session, minting one if needed.
// The cookie is rewritten every time so its expiry slides with the cart's.
func (c CookieConfig) ensureSession(w http.ResponseWriter, r *http.Request) string {
	id := c.sessionID(r)
	if id == "" {
		id = uuid.NewString()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    id,
		Path:     "/",
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
