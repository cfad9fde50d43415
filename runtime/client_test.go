package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/justapithecus/tether/auth"
	"github.com/justapithecus/tether/types"
)

func newTestAPIClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens, err := auth.NewStaticTokenSource("tok-test")
	if err != nil {
		t.Fatalf("token source: %v", err)
	}
	return NewAPIClient(srv.URL, tokens)
}

func TestAPIClient_ListRuntimes(t *testing.T) {
	client := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/runtimes" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-test" {
			t.Errorf("missing bearer token, got %q", got)
		}
		if got := r.Header.Get("X-Client-Agent"); got != ClientAgent {
			t.Errorf("missing client agent, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(runtimeListResponse{
			Runtimes: []types.RuntimeInfo{{ID: "rt-1", Variant: types.VariantGPU, Phase: types.PhaseReady}},
		})
	})

	runtimes, err := client.ListRuntimes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runtimes) != 1 || runtimes[0].ID != "rt-1" {
		t.Errorf("unexpected runtimes: %+v", runtimes)
	}
}

func TestAPIClient_CreateRuntime(t *testing.T) {
	client := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/runtimes" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req createRuntimeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Variant != types.VariantTPU {
			t.Errorf("variant = %q, want tpu", req.Variant)
		}
		_ = json.NewEncoder(w).Encode(types.RuntimeInfo{ID: "rt-new", Variant: req.Variant, Phase: types.PhaseProvisioning})
	})

	info, err := client.CreateRuntime(context.Background(), types.VariantTPU)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != "rt-new" || info.Phase != types.PhaseProvisioning {
		t.Errorf("unexpected runtime: %+v", info)
	}
}

func TestAPIClient_GetRuntime(t *testing.T) {
	client := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/runtimes/rt-9" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(types.RuntimeInfo{ID: "rt-9", Phase: types.PhaseQueued})
	})

	info, err := client.GetRuntime(context.Background(), "rt-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Phase != types.PhaseQueued {
		t.Errorf("unexpected runtime: %+v", info)
	}
}

func TestAPIClient_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		check  func(error) bool
		name   string
	}{
		{http.StatusUnauthorized, IsAuthError, "auth"},
		{http.StatusForbidden, IsAuthError, "auth"},
		{http.StatusTooManyRequests, IsQuotaError, "quota"},
		{http.StatusPaymentRequired, IsQuotaError, "quota"},
		{http.StatusServiceUnavailable, IsUnavailableError, "unavailable"},
		{http.StatusInternalServerError, IsUnavailableError, "unavailable"},
	}

	for _, tc := range cases {
		client := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		})
		_, err := client.ListRuntimes(context.Background())
		if err == nil {
			t.Errorf("status %d: expected error", tc.status)
			continue
		}
		if !tc.check(err) {
			t.Errorf("status %d: expected %s classification, got %v", tc.status, tc.name, err)
		}
	}
}

func TestAPIClient_TokenFailureIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should reach the provider without a token")
	}))
	t.Cleanup(srv.Close)

	client := NewAPIClient(srv.URL, auth.NewEnvTokenSource("TETHER_TEST_UNSET_TOKEN"))
	_, err := client.ListRuntimes(context.Background())
	if !IsAuthError(err) {
		t.Errorf("expected auth classification, got %v", err)
	}
}
