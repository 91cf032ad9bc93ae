package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/VeerkrachtLab/veerkracht/internal/audit"
	"github.com/VeerkrachtLab/veerkracht/internal/models"
	"github.com/VeerkrachtLab/veerkracht/internal/orchestrator"
	"github.com/VeerkrachtLab/veerkracht/internal/store"
)

func newTestServer() (*Server, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	cfg := orchestrator.DefaultConfig()
	cfg.RandSeed = 7
	orch := orchestrator.New(st, nil, nil, audit.NewStoreSink(st), cfg)
	return NewServer(st, orch), st
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeAPIResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func validSeed() models.Seed {
	return models.Seed{
		ID:       "seed_verdriet_1",
		Emotion:  "verdriet",
		Type:     models.SeedTypeValidation,
		Triggers: []string{"verdrietig"},
		Response: "Het klinkt alsof je veel verdriet draagt op dit moment.",
		Metadata: models.SeedMetadata{Weight: 3.0, Confidence: 0.9},
	}
}

func TestOrchestrateEndpoint(t *testing.T) {
	s, _ := newTestServer()

	rec := doRequest(t, s, http.MethodPost, "/orchestrate", orchestrateRequest{
		SessionID: "s_api",
		Utterance: "Hoi!",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeAPIResponse(t, rec)
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("response status = %q, want ok", resp.Status)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("result has unexpected shape: %T", resp.Result)
	}
	if result["answer"] == "" {
		t.Error("empty answer in orchestrate result")
	}
	if result["label"] != string(models.LabelValideren) {
		t.Errorf("label = %v, want Valideren", result["label"])
	}
}

func TestOrchestrateEndpointRejectsBadInput(t *testing.T) {
	s, _ := newTestServer()

	rec := doRequest(t, s, http.MethodGet, "/orchestrate", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/orchestrate", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/orchestrate", orchestrateRequest{SessionID: "s"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing utterance status = %d, want 400", rec.Code)
	}
}

func TestSeedLifecycleEndpoints(t *testing.T) {
	s, _ := newTestServer()
	seed := validSeed()

	rec := doRequest(t, s, http.MethodPost, "/seeds", seed)
	if rec.Code != http.StatusCreated {
		t.Fatalf("insert status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodPost, "/seeds", seed)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate insert status = %d, want 409", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/seeds?emotion=verdriet", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	resp := decodeAPIResponse(t, rec)
	seeds, ok := resp.Result.([]any)
	if !ok || len(seeds) != 1 {
		t.Fatalf("list result = %v, want one seed", resp.Result)
	}

	rec = doRequest(t, s, http.MethodPost, "/seeds/weight", weightUpdateRequest{SeedID: seed.ID, Weight: 4.5})
	if rec.Code != http.StatusOK {
		t.Errorf("weight update status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodPost, "/seeds/weight", weightUpdateRequest{SeedID: "missing", Weight: 1})
	if rec.Code != http.StatusNotFound {
		t.Errorf("weight update for unknown seed status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, s, http.MethodDelete, "/seeds/"+seed.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/seeds", nil)
	resp = decodeAPIResponse(t, rec)
	if resp.Result != nil {
		t.Errorf("list after deactivation = %v, want empty", resp.Result)
	}
}

func TestSeedInsertValidation(t *testing.T) {
	s, _ := newTestServer()
	seed := validSeed()
	seed.Triggers = nil

	rec := doRequest(t, s, http.MethodPost, "/seeds", seed)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	resp := decodeAPIResponse(t, rec)
	if resp.Status != string(models.APIStatusError) {
		t.Errorf("response status = %q, want error", resp.Status)
	}
}

func TestAuditEndpoint(t *testing.T) {
	s, _ := newTestServer()

	rec := doRequest(t, s, http.MethodPost, "/orchestrate", orchestrateRequest{
		SessionID: "s_audit",
		Utterance: "Hallo",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("orchestrate status = %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/audit?session=s_audit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d, want 200", rec.Code)
	}
	resp := decodeAPIResponse(t, rec)
	events, ok := resp.Result.([]any)
	if !ok || len(events) == 0 {
		t.Errorf("audit result = %v, want recorded stage events", resp.Result)
	}

	rec = doRequest(t, s, http.MethodGet, "/audit", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("audit without session status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer()

	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var health map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("health status = %v, want healthy", health["status"])
	}
}
