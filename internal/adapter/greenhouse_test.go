package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amishk599/jobletter/internal/model"
)

const greenhousePayload = `{
	"jobs": [
		{
			"id": 12345,
			"title": "Software Engineer",
			"location": {"name": "San Francisco, CA"},
			"absolute_url": "https://boards.greenhouse.io/acme/jobs/12345",
			"first_published": "2026-02-10T09:00:00Z",
			"updated_at": "2026-02-13T10:00:00Z",
			"content": "&lt;p&gt;Build the platform.&lt;/p&gt;"
		},
		{
			"id": 67890,
			"title": "Account Executive",
			"location": {"name": "Remote, US"},
			"absolute_url": "https://boards.greenhouse.io/acme/jobs/67890",
			"updated_at": "2026-02-13T11:30:00Z"
		}
	]
}`

func TestGreenhouseSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/boards/acme/jobs" || r.URL.Query().Get("content") != "true" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(greenhousePayload))
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter([]Board{{Token: "acme", Company: "Acme Corp"}}, testClient(srv))

	postings, err := a.Search(context.Background(), model.Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(postings))
	}

	p := postings[0]
	if p.ID != "greenhouse:12345" {
		t.Errorf("expected ID greenhouse:12345, got %s", p.ID)
	}
	if p.Company != "Acme Corp" {
		t.Errorf("expected company Acme Corp, got %s", p.Company)
	}
	if p.Description != "Build the platform." {
		t.Errorf("unexpected description %q", p.Description)
	}
	if p.PostedAt == nil || p.PostedAt.Day() != 10 {
		t.Errorf("expected first_published date, got %v", p.PostedAt)
	}
	if postings[1].PostedAt == nil || postings[1].PostedAt.Day() != 13 {
		t.Errorf("expected updated_at fallback, got %v", postings[1].PostedAt)
	}
}

func TestGreenhouseSearch_FiltersByQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(greenhousePayload))
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter([]Board{{Token: "acme", Company: "Acme Corp"}}, testClient(srv))

	postings, err := a.Search(context.Background(), model.Query{Title: "engineer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 1 || postings[0].Title != "Software Engineer" {
		t.Fatalf("unexpected postings %+v", postings)
	}
}

func TestGreenhouseSearch_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not valid json`))
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter([]Board{{Token: "bad-co", Company: "Bad Co"}}, testClient(srv))
	if _, err := a.Search(context.Background(), model.Query{}); err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestGreenhouseSearch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter([]Board{{Token: "fail-co", Company: "Fail Co"}}, testClient(srv))

	_, err := a.Search(context.Background(), model.Query{})
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests || httpErr.RetryAfter.Seconds() != 7 {
		t.Errorf("unexpected HTTPError %+v", httpErr)
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "double-encoded HTML from Greenhouse API",
			input: "This is the job description. &lt;p&gt;Any HTML included.&lt;/p&gt;",
			want:  "This is the job description. Any HTML included.",
		},
		{
			name:  "typical job description with nested tags and whitespace",
			input: "&lt;p&gt;We are hiring.&lt;/p&gt;\n&lt;ul&gt;\n  &lt;li&gt;Write code&lt;/li&gt;\n  &lt;li&gt;Review PRs&lt;/li&gt;\n&lt;/ul&gt;",
			want:  "We are hiring. Write code Review PRs",
		},
		{
			name:  "script and style blocks dropped",
			input: "<html><head><style>p{color:red}</style><script>var x = 1;</script></head><body><p>Apply now</p></body></html>",
			want:  "Apply now",
		},
		{
			name:  "plain text with no HTML",
			input: "No tags here.",
			want:  "No tags here.",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := extractText(tc.input)
			if got != tc.want {
				t.Errorf("extractText(%q)\n got  %q\n want %q", tc.input, got, tc.want)
			}
		})
	}
}
