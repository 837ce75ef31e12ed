package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

func makeTestServer(t *testing.T, statusCode int, body any) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, srv.Client()
}

func textResponse(content string) chatResponse {
	return chatResponse{Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: content}}}}
}

func newTestProvider(url string, client *http.Client) *OpenAIProvider {
	return NewOpenAIProvider(url, "test-key", "test-model", 2048, 0.7, client)
}

func TestComplete_Success(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK, textResponse("Dear hiring team,"))

	got, err := newTestProvider(srv.URL, client).Complete(context.Background(), "write")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Dear hiring team," {
		t.Errorf("got %q", got)
	}
}

func TestComplete_HTTPErrorIsTyped(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusInternalServerError, map[string]string{"error": "server error"})

	_, err := newTestProvider(srv.URL, client).Complete(context.Background(), "write")
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected HTTPError 500, got %v", err)
	}
}

func TestComplete_RateLimitedCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL, srv.Client()).Complete(context.Background(), "write")
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.RetryAfter != 2*time.Second {
		t.Fatalf("expected 429 with Retry-After, got %v", err)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK, chatResponse{})

	if _, err := newTestProvider(srv.URL, client).Complete(context.Background(), "write"); err == nil {
		t.Fatal("expected error when LLM returns no choices")
	}
}

func TestComplete_SendsAuthAndModel(t *testing.T) {
	var (
		gotAuth string
		gotReq  chatRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(textResponse("ok"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "my-secret-key", "gpt-4o-mini", 1500, 0.5, srv.Client())
	if _, err := p.Complete(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer my-secret-key" {
		t.Errorf("Authorization header = %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" || gotReq.MaxTokens != 1500 || gotReq.Temperature != 0.5 {
		t.Errorf("unexpected request %+v", gotReq)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "hello" {
		t.Errorf("unexpected messages %+v", gotReq.Messages)
	}
}
