// Package api exposes the feed, alerts and scrape runs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/homeswipe/internal/alert"
	"github.com/sells-group/homeswipe/internal/feed"
	"github.com/sells-group/homeswipe/internal/metrics"
	"github.com/sells-group/homeswipe/internal/model"
	"github.com/sells-group/homeswipe/internal/store"
)

// UserHeader identifies the calling user.
const UserHeader = "X-User-ID"

// RunReader lists scrape runs.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*model.ScrapeRun, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.ScrapeRun, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the API.
type Deps struct {
	Feed           *feed.Service
	Alerts         *alert.Service
	Runs           RunReader
	Health         Pinger
	AllowedOrigins []string
}

type server struct {
	Deps
	log *zap.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps) http.Handler {
	s := &server{Deps: deps, log: zap.L().With(zap.String("component", "api"))}
	if len(s.AllowedOrigins) == 0 {
		s.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(countRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", UserHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/listings/{id}", s.getListing)
	r.Get("/runs", s.listRuns)
	r.Get("/runs/{id}", s.getRun)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		r.Get("/feed", s.getFeed)
		r.Post("/swipes", s.postSwipe)
		r.Get("/alerts", s.listAlerts)
		r.Post("/alerts/{id}/read", s.markAlertRead)
	})
	return r
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequest(route, status)
	})
}

type userKey struct{}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(UserHeader)
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: UserHeader + " header is required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	})
}

func userID(r *http.Request) string {
	if id, ok := r.Context().Value(userKey{}).(string); ok {
		return id
	}
	return r.Header.Get(UserHeader)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and answered with a generic body.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, feed.ErrInvalidRequest), errors.Is(err, model.ErrInvalidSwipe):
		badRequest(w, err.Error())
	default:
		s.log.Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if s.Health != nil {
		if err := s.Health.Ping(ctx); err != nil {
			s.log.Warn("api: health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
