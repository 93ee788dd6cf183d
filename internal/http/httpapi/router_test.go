package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"aimint/internal/http/handlers"
	"aimint/internal/infra"
	"aimint/internal/pipeline"
	"aimint/internal/session"
)

type instantRunner struct{}

func (instantRunner) Run(ctx context.Context, form pipeline.Form, observe pipeline.Observer) (pipeline.State, error) {
	return pipeline.State{
		Stage:       pipeline.StageIdle,
		Form:        form,
		MetadataURL: "https://ipfs.io/ipfs/abc123/metadata.json",
		TxHash:      "0x01",
	}, nil
}

func newTestServer(t *testing.T, limit int) (*httptest.Server, *session.Registry) {
	t.Helper()
	logger := zerolog.Nop()
	registry := session.NewRegistry(session.Options{Runner: instantRunner{}})
	app := handlers.NewApp(registry, nil, &logger)
	cfg := &infra.Config{RateLimitPerMin: limit}
	srv := httptest.NewServer(NewRouter(cfg, logger, app))
	t.Cleanup(srv.Close)
	return srv, registry
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouterSubmitFlow(t *testing.T) {
	srv, registry := newTestServer(t, 10)

	resp := postJSON(t, srv.URL+"/v1/sessions", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID header")
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	submitURL := srv.URL + "/v1/sessions/" + created.ID + "/submit"
	if resp := postJSON(t, submitURL, `{"name":"","description":"x"}`); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty name status = %d, want 422", resp.StatusCode)
	}
	if resp := postJSON(t, submitURL, `{"name":"Fox","description":"a red fox"}`); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d, want 202", resp.StatusCode)
	}
	registry.Wait()

	get, err := http.Get(srv.URL + "/v1/sessions/" + created.ID)
	if err != nil {
		t.Fatalf("GET session: %v", err)
	}
	defer get.Body.Close()
	var state struct {
		Busy        bool   `json:"busy"`
		MetadataURL string `json:"metadata_url"`
	}
	if err := json.NewDecoder(get.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Busy || state.MetadataURL != "https://ipfs.io/ipfs/abc123/metadata.json" {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestRouterRateLimitsSubmit(t *testing.T) {
	srv, registry := newTestServer(t, 1)
	id := registry.Create().ID
	submitURL := srv.URL + "/v1/sessions/" + id + "/submit"

	if resp := postJSON(t, submitURL, `{"name":"Fox","description":"a red fox"}`); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first submit = %d, want 202", resp.StatusCode)
	}
	registry.Wait()
	if resp := postJSON(t, submitURL, `{"name":"Fox","description":"a red fox"}`); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second submit = %d, want 429", resp.StatusCode)
	}

	health, err := http.Get(srv.URL + "/v1/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", health.StatusCode)
	}
}

func TestRouterUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	resp, err := http.Get(srv.URL + "/v1/sessions/does-not-exist")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
