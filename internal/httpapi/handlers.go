package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/amishk599/jobletter/internal/model"
	"github.com/amishk599/jobletter/internal/scheduler"
)

// apiError carries the status and public message of a failed request.
type apiError struct {
	Code    int
	Message string
	Err     error
}

func (e *apiError) Error() string { return e.Message }
func (e *apiError) Unwrap() error { return e.Err }

type appHandler func(w http.ResponseWriter, r *http.Request) error

// handle adapts an appHandler, turning returned errors into JSON responses.
func (s *Server) handle(h appHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		code, msg := statusFor(err)
		if code >= http.StatusInternalServerError {
			s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		} else {
			s.logger.Warn("request rejected", "path", r.URL.Path, "code", code, "error", err)
		}
		respondJSON(w, code, map[string]string{"error": msg})
	}
}

func statusFor(err error) (int, string) {
	var apiErr *apiError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code, apiErr.Message
	case errors.Is(err, model.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, model.ErrCycleInFlight):
		return http.StatusConflict, model.ErrCycleInFlight.Error()
	case errors.Is(err, model.ErrNoPreferences):
		return http.StatusUnprocessableEntity, model.ErrNoPreferences.Error()
	case errors.Is(err, model.ErrAllSourcesFailed), errors.Is(err, model.ErrDeliveryFailed):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// userView is the admin representation of a user. Résumé and letter text
// never leave the process.
type userView struct {
	ID            int64           `json:"id"`
	HasResume     bool            `json:"has_resume"`
	HasSample     bool            `json:"has_sample_letter"`
	Title         string          `json:"title"`
	Location      string          `json:"location"`
	Keywords      []string        `json:"keywords"`
	Remote        bool            `json:"remote"`
	DigestTime    string          `json:"digest_time"`
	Timezone      string          `json:"timezone"`
	AlertEnabled  bool            `json:"alert_enabled"`
	Sources       map[string]bool `json:"sources,omitempty"`
	State         string          `json:"state"`
	LastFiredDate string          `json:"last_fired_date,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	Failures      int             `json:"failures"`
}

func (s *Server) view(u model.UserProfile, st model.ScheduleState) userView {
	return userView{
		ID:            u.UserID,
		HasResume:     u.Resume != "",
		HasSample:     u.SampleLetter != "",
		Title:         u.Prefs.Title,
		Location:      u.Prefs.Location,
		Keywords:      u.Prefs.Keywords,
		Remote:        u.Prefs.Remote,
		DigestTime:    fmt.Sprintf("%02d:%02d", u.Prefs.Hour, u.Prefs.Minute),
		Timezone:      u.Prefs.Timezone,
		AlertEnabled:  u.AlertEnabled,
		Sources:       u.Sources,
		State:         scheduler.Evaluate(u, st, s.now()).String(),
		LastFiredDate: st.LastFiredDate,
		LastError:     st.LastError,
		Failures:      st.Failures,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) error {
	if err := s.store.Ping(r.Context()); err != nil {
		return &apiError{Code: http.StatusServiceUnavailable, Message: "database unavailable", Err: err}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) error {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		return err
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		st, err := s.store.GetScheduleState(r.Context(), u.UserID)
		if err != nil {
			return err
		}
		views = append(views, s.view(u, st))
	}
	respondJSON(w, http.StatusOK, views)
	return nil
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) error {
	id, err := userID(r)
	if err != nil {
		return err
	}
	u, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		return err
	}
	st, err := s.store.GetScheduleState(r.Context(), id)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, s.view(u, st))
	return nil
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) error {
	id, err := userID(r)
	if err != nil {
		return err
	}
	out, err := s.trigger.Trigger(r.Context(), id)
	if err != nil {
		return err
	}
	failed := make([]string, len(out.Failures))
	for i, f := range out.Failures {
		failed[i] = f.Error()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"fetched":        out.Fetched,
		"novel":          out.Novel,
		"delivered":      out.Delivered,
		"failed_sources": failed,
	})
	return nil
}

func userID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, paramID)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &apiError{Code: http.StatusBadRequest, Message: "invalid user id", Err: err}
	}
	return id, nil
}
