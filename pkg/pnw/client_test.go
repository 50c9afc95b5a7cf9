package pnw

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQueryNationsDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("missing api_key parameter")
		}
		var req gqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Query == "" {
			t.Errorf("empty query")
		}
		_, _ = w.Write([]byte(`{
			"data": {"nations": {"data": [
				{"id": "6", "nation_name": "Testopia", "soldiers": 100}
			]}}
		}`))
	}))
	defer srv.Close()

	c := NewGraphQLClient("test-key", srv.URL)
	nations, err := c.QueryNations(context.Background(), []int{6})
	if err != nil {
		t.Fatalf("query nations: %v", err)
	}
	if len(nations) != 1 {
		t.Fatalf("expected 1 nation, got %d", len(nations))
	}
	n := nations[0]
	if n.NationName == nil || *n.NationName != "Testopia" {
		t.Fatalf("unexpected nation name: %+v", n)
	}
	if n.Soldiers == nil || *n.Soldiers != 100 {
		t.Fatalf("unexpected soldiers: %+v", n)
	}
	if n.Tanks != nil {
		t.Fatalf("absent field should stay nil")
	}
}

func TestQueryNationsEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"nations": {"data": []}}}`))
	}))
	defer srv.Close()

	c := NewGraphQLClient("k", srv.URL)
	nations, err := c.QueryNations(context.Background(), []int{424242})
	if err != nil {
		t.Fatalf("query nations: %v", err)
	}
	if len(nations) != 0 {
		t.Fatalf("expected empty result, got %v", nations)
	}
}

func TestQueryAlliancesSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors": [{"message": "invalid api key"}]}`))
	}))
	defer srv.Close()

	c := NewGraphQLClient("bad", srv.URL)
	if _, err := c.QueryAlliances(context.Background(), []int{790}); err == nil {
		t.Fatalf("expected error for GraphQL errors array")
	}
}

func TestQueryAlliancesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewGraphQLClient("k", srv.URL)
	if _, err := c.QueryAlliances(context.Background(), []int{790}); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestEmptyBaseURLUsesProductionEndpoint(t *testing.T) {
	c := NewGraphQLClient("key", "")
	if c.baseURL != DefaultBaseURL {
		t.Fatalf("expected default endpoint %q, got %q", DefaultBaseURL, c.baseURL)
	}
}
