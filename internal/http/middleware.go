package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/reelview/internal/backend"
	"github.com/Clark-Hu/reelview/internal/metrics"
	"github.com/Clark-Hu/reelview/internal/session"
	"github.com/Clark-Hu/reelview/internal/ui"
)

type ctxKey int

const (
	shellKey ctxKey = iota
	currentKey
)

// requestLogger logs one line per request and records the HTTP metrics under
// the matched route pattern.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			metrics.HTTPLatency.WithLabelValues(route).Observe(elapsed.Seconds())

			evt := logger.Info()
			if status >= 500 {
				evt = logger.Error()
			}
			evt.Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", elapsed).
				Msg("request")
		})
	}
}

// withShell resolves the session and theme into the explicit presentation
// context every screen receives.
func (s *Server) withShell(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur, _ := s.sessions.Load(r)
		shell := ui.Shell{
			Theme:   ui.ParseTheme(s.sessions.Theme(r, cur.UserID)),
			Session: cur.Session,
			Path:    r.URL.RequestURI(),
		}
		ctx := context.WithValue(r.Context(), shellKey, shell)
		ctx = context.WithValue(ctx, currentKey, cur)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !currentSession(r).Valid() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireSessionJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !currentSession(r).Valid() {
			s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func shellFrom(r *http.Request, screen ui.Screen) ui.Shell {
	shell, _ := r.Context().Value(shellKey).(ui.Shell)
	shell.Screen = screen
	return shell
}

func currentSession(r *http.Request) session.Current {
	cur, _ := r.Context().Value(currentKey).(session.Current)
	return cur
}

// backendContext attaches the session token to calls made for this request.
func backendContext(r *http.Request) context.Context {
	return backend.WithToken(r.Context(), currentSession(r).Token)
}
