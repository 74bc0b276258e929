package openrouter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClientWithoutKey(t *testing.T) {
	t.Parallel()

	if client := NewClient(Config{BaseURL: "https://openrouter.ai/api/v1"}); client != nil {
		t.Fatal("NewClient must return nil without an api key")
	}
	if client := NewClientWithKey(Config{}, "   "); client != nil {
		t.Fatal("NewClientWithKey must return nil for a blank key")
	}
}

func TestNewClientWithKey(t *testing.T) {
	t.Parallel()

	if client := NewClientWithKey(Config{BaseURL: "https://openrouter.ai/api/v1/"}, "sk-test"); client == nil {
		t.Fatal("NewClientWithKey returned nil for a valid key")
	}
}

func TestModelsClientList(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"id":"some/model"}]}`)
	}))
	t.Cleanup(srv.Close)

	client := NewModelsClient(Config{BaseURL: srv.URL, APIKey: "sk-test", Timeout: 5 * time.Second})
	raw, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !strings.Contains(string(raw), "some/model") {
		t.Fatalf("raw = %s", raw)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("authorization = %q, want bearer token", gotAuth)
	}
}

func TestModelsClientListUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := NewModelsClient(Config{BaseURL: srv.URL, APIKey: "sk-test"})
	if _, err := client.List(context.Background()); err == nil {
		t.Fatal("List must fail on an upstream error status")
	}
}
