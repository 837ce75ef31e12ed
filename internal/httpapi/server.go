// Package httpapi serves the operator's admin endpoints.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/amishk599/jobletter/internal/model"
	"github.com/amishk599/jobletter/internal/poller"
)

const paramID = "id"

// Store is the read side the admin API reports on.
type Store interface {
	Ping(ctx context.Context) error
	ListUsers(ctx context.Context) ([]model.UserProfile, error)
	GetUser(ctx context.Context, userID int64) (model.UserProfile, error)
	GetScheduleState(ctx context.Context, userID int64) (model.ScheduleState, error)
}

// Trigger runs an on-demand cycle.
type Trigger interface {
	Trigger(ctx context.Context, userID int64) (poller.Outcome, error)
}

// Server is the admin HTTP server.
type Server struct {
	addr    string
	store   Store
	trigger Trigger
	now     func() time.Time
	logger  *slog.Logger
}

// NewServer creates a server listening on addr.
func NewServer(addr string, store Store, trigger Trigger, logger *slog.Logger) *Server {
	return &Server{addr: addr, store: store, trigger: trigger, now: time.Now, logger: logger}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(middleware.Timeout(3 * time.Minute))
	r.Use(middleware.SetHeader("Content-Type", "application/json; charset=utf-8"))

	r.Get("/healthz", s.handle(s.handleHealth))
	r.Route("/users", func(r chi.Router) {
		r.Get("/", s.handle(s.handleListUsers))
		r.Get("/{"+paramID+"}", s.handle(s.handleGetUser))
		r.Post("/{"+paramID+"}/trigger", s.handle(s.handleTrigger))
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin api listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("admin api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin api shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin api: %w", err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
