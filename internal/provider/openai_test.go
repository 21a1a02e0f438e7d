package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func openAIServer(t *testing.T, status int, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", got)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.WriteHeader(status)
		w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string) *OpenAIClient {
	return NewOpenAIClient(OpenAIConfig{
		Name:    "openai",
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})
}

func TestOpenAICall(t *testing.T) {
	srv := openAIServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":"  ACME leads.  "}}]}`)
	c := newTestClient(srv.URL)

	got, err := c.Call(context.Background(), "who leads?", "", 0.7)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "ACME leads." {
		t.Errorf("response = %q", got)
	}
}

func TestOpenAIAuthErrors(t *testing.T) {
	srv := openAIServer(t, http.StatusUnauthorized, `{"error":{"message":"bad key"}}`)
	c := newTestClient(srv.URL)

	_, err := c.Call(context.Background(), "q", "", 0)
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if perr.Retryable() {
		t.Error("auth errors must not be retryable")
	}
}

func TestOpenAIRateLimit(t *testing.T) {
	srv := openAIServer(t, http.StatusTooManyRequests, `{}`)
	c := newTestClient(srv.URL)

	_, err := c.Call(context.Background(), "q", "", 0)
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindRateLimit {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if !perr.Retryable() {
		t.Error("rate limit errors should be retryable")
	}
}

func TestOpenAIMissingKey(t *testing.T) {
	c := NewOpenAIClient(OpenAIConfig{BaseURL: "http://localhost:1", Model: "m"})
	_, err := c.Call(context.Background(), "q", "", 0)
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindAuth {
		t.Fatalf("missing key should be an auth error, got %v", err)
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := openAIServer(t, http.StatusOK, `{"choices":[]}`)
	c := newTestClient(srv.URL)
	if _, err := c.Call(context.Background(), "q", "", 0); err == nil {
		t.Error("empty choices should be an error")
	}
}

func TestPerplexityConfig(t *testing.T) {
	c := NewOpenAIClient(DefaultPerplexityConfig("pk"))
	if c.Name() != "perplexity" {
		t.Errorf("name = %q", c.Name())
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(newTestClient("http://localhost:1"))

	if _, err := r.Get("openai"); err != nil {
		t.Errorf("registered provider should resolve: %v", err)
	}
	if _, err := r.Get("missing"); err == nil {
		t.Error("unknown provider should error")
	}
	if names := r.Names(); len(names) != 1 || names[0] != "openai" {
		t.Errorf("names = %v", names)
	}
}
