package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

func TestAdzunaSearch_Success(t *testing.T) {
	payload := `{
		"count": 2,
		"results": [
			{
				"id": "4242",
				"title": "<strong>Go</strong> Developer",
				"description": "Write <b>Go</b> services.",
				"company": {"display_name": "Initech"},
				"location": {"display_name": "Berlin, Germany"},
				"redirect_url": "https://www.adzuna.de/details/4242",
				"created": "2026-03-01T08:00:00Z"
			},
			{
				"id": "4243",
				"title": "Backend Developer",
				"company": {"display_name": "Hooli"},
				"location": {"display_name": "Munich"},
				"redirect_url": "https://www.adzuna.de/details/4243"
			}
		]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/api/jobs/de/search/1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("app_id") != "id" || q.Get("app_key") != "key" {
			t.Errorf("missing credentials: %s", r.URL.RawQuery)
		}
		if q.Get("what") != "Go Developer kafka remote" {
			t.Errorf("what = %q", q.Get("what"))
		}
		if q.Get("where") != "Berlin" || q.Get("max_days_old") != "2" || q.Get("results_per_page") != "20" {
			t.Errorf("unexpected params: %s", r.URL.RawQuery)
		}
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	a := NewAdzunaAdapter("id", "key", "de", testClient(srv))
	postings, err := a.Search(context.Background(), model.Query{
		Title:      "Go Developer",
		Keywords:   []string{"kafka"},
		Location:   "Berlin",
		Remote:     true,
		MaxResults: 20,
		MaxAge:     48 * time.Hour,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(postings))
	}
	p := postings[0]
	if p.ID != "adzuna:4242" || p.Title != "Go Developer" || p.Company != "Initech" {
		t.Errorf("unexpected posting %+v", p)
	}
	if p.Description != "Write Go services." {
		t.Errorf("unexpected description %q", p.Description)
	}
	if p.PostedAt == nil || p.PostedAt.Month() != time.March {
		t.Errorf("unexpected PostedAt %v", p.PostedAt)
	}
	if postings[1].PostedAt != nil {
		t.Errorf("expected nil PostedAt, got %v", postings[1].PostedAt)
	}
}

func TestAdzunaSearch_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := NewAdzunaAdapter("id", "bad", "gb", testClient(srv))
	_, err := a.Search(context.Background(), model.Query{Title: "x"})
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}
