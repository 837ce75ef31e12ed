package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleAlert() model.Alert {
	return model.Alert{
		UserID:  42,
		Message: "Digest cycle failed",
		Err:     errors.New("all sources failed"),
		Failures: []model.SourceFailure{
			{Source: "adzuna", Reason: "HTTP 503"},
			{Source: "lever", Reason: "timed out after 30s"},
		},
		At: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestSlackNotifier_Payload(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.Notify(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("Notify() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	if got := payload.Blocks[0].Text.Text; got != "⚠️ Digest cycle failed" {
		t.Errorf("header text = %q", got)
	}
	if got := payload.Blocks[1].Fields[0].Text; got != "*User:*\n42" {
		t.Errorf("user field = %q", got)
	}
	if got := payload.Blocks[2].Text.Text; !strings.Contains(got, "all sources failed") {
		t.Errorf("error block = %q", got)
	}
	failures := payload.Blocks[3].Text.Text
	if !strings.Contains(failures, "*adzuna*: HTTP 503") || !strings.Contains(failures, "*lever*: timed out") {
		t.Errorf("failures block = %q", failures)
	}
	if payload.Blocks[len(payload.Blocks)-1].Type != "divider" {
		t.Error("expected trailing divider")
	}
}

func TestSlackNotifier_RetriesOnceOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.Notify(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("Notify() = %v, want nil after retry", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 calls, got %d", c)
	}
}

func TestSlackNotifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.Notify(context.Background(), sampleAlert()); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestSendTestAlert(t *testing.T) {
	var got model.Alert
	n := notifierFunc(func(_ context.Context, a model.Alert) error {
		got = a
		return nil
	})
	if err := SendTestAlert(context.Background(), n); err != nil {
		t.Fatalf("SendTestAlert() = %v", err)
	}
	if len(got.Failures) != 1 {
		t.Errorf("expected sample failure in test alert, got %+v", got)
	}
}

type notifierFunc func(context.Context, model.Alert) error

func (f notifierFunc) Notify(ctx context.Context, a model.Alert) error { return f(ctx, a) }
