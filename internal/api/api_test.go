package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/openlease/harrier/internal/bus"
	"github.com/openlease/harrier/internal/cache"
	"github.com/openlease/harrier/internal/compliance"
	"github.com/openlease/harrier/internal/domain"
	"github.com/openlease/harrier/internal/matcher"
	"github.com/openlease/harrier/internal/repository"
)

func bptr(v bool) *bool { return &v }

// createTestServer wires a server against sqlite, the LRU cache and the
// channel bus.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	catalog, err := repository.New(domain.CatalogConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "api.db"),
	})
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	evaluator, err := compliance.NewEvaluator()
	if err != nil {
		t.Fatalf("evaluator failed: %v", err)
	}

	m := matcher.New(evaluator)

	return NewServer(cfg, catalog, cache.NewLRUCache(100), eventBus, evaluator, m, "test-v1")
}

func seedProperty(t *testing.T, server *Server, p *domain.Property) {
	t.Helper()

	body, _ := json.Marshal(p)
	req := httptest.NewRequest(http.MethodPost, "/properties", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed failed with status %d: %s", rr.Code, rr.Body.String())
	}
}

func testListing(id string) *domain.Property {
	return &domain.Property{
		ID:            id,
		Address:       "1234 Commerce Pkwy",
		City:          "St. Cloud",
		State:         "FL",
		ZipCode:       "34769",
		BuildingTypes: []string{"Office"},
		SquareFeetMin: 1000,
		SquareFeetMax: 6000,
		RatePerSqft:   21.50,
		Compliance: domain.ComplianceAttributes{
			FireSuppression: bptr(true),
			FireAlarm:       bptr(true),
		},
	}
}

func TestMatchEndpoint(t *testing.T) {
	server := createTestServer(t)
	seedProperty(t, server, testListing("prop-1"))

	t.Run("SuccessfulMatch", func(t *testing.T) {
		reqBody := MatchRequest{
			Criteria: &domain.Criteria{
				Location: &domain.LocationCriteria{State: "FL", City: "St. Cloud"},
			},
		}

		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/match", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var outcome domain.MatchingOutcome
		if err := json.Unmarshal(rr.Body.Bytes(), &outcome); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if outcome.ID == "" {
			t.Error("expected outcome id")
		}
		if len(outcome.Matches) != 1 || outcome.Matches[0].Property.ID != "prop-1" {
			t.Errorf("unexpected matches: %+v", outcome.Matches)
		}
		if outcome.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("OutcomeRetrievable", func(t *testing.T) {
		reqBody := MatchRequest{Criteria: &domain.Criteria{}}
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/match", bytes.NewBuffer(body))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		var outcome domain.MatchingOutcome
		json.Unmarshal(rr.Body.Bytes(), &outcome)

		req = httptest.NewRequest(http.MethodGet, "/outcomes/"+outcome.ID, nil)
		rr = httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var stored domain.MatchingOutcome
		if err := json.Unmarshal(rr.Body.Bytes(), &stored); err != nil {
			t.Fatalf("failed to parse stored outcome: %v", err)
		}
		if stored.ID != outcome.ID {
			t.Errorf("expected outcome %s, got %s", outcome.ID, stored.ID)
		}
	})

	t.Run("MissingCriteria", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/match", bytes.NewBufferString("{}"))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/match", bytes.NewBufferString("not-json"))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidCriteria", func(t *testing.T) {
		min, max := 5000, 4000
		reqBody := MatchRequest{
			Criteria: &domain.Criteria{MinSquareFeet: &min, MaxSquareFeet: &max},
		}
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/match", bytes.NewBuffer(body))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for inverted size range, got %d", rr.Code)
		}
	})
}

func TestMatchAsyncEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("Queued", func(t *testing.T) {
		reqBody := MatchRequest{
			Criteria: &domain.Criteria{
				Location: &domain.LocationCriteria{State: "FL"},
			},
		}
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/match/async", bytes.NewBuffer(body))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp["requestId"] == "" || resp["status"] != "queued" {
			t.Errorf("unexpected response: %v", resp)
		}
	})

	t.Run("ValidationStillApplies", func(t *testing.T) {
		reqBody := MatchRequest{
			Criteria: &domain.Criteria{MinRelevance: 500},
		}
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/match/async", bytes.NewBuffer(body))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestPropertyEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateAndGet", func(t *testing.T) {
		seedProperty(t, server, testListing("prop-1"))

		req := httptest.NewRequest(http.MethodGet, "/properties/prop-1", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var p domain.Property
		if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
			t.Fatalf("failed to parse property: %v", err)
		}
		if p.ID != "prop-1" || p.City != "St. Cloud" {
			t.Errorf("unexpected property: %+v", p)
		}
	})

	t.Run("GeneratesID", func(t *testing.T) {
		p := testListing("")
		body, _ := json.Marshal(p)
		req := httptest.NewRequest(http.MethodPost, "/properties", bytes.NewBuffer(body))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", rr.Code)
		}

		var created domain.Property
		json.Unmarshal(rr.Body.Bytes(), &created)
		if created.ID == "" {
			t.Error("expected a generated property id")
		}
	})

	t.Run("RequiresAddressAndState", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/properties", bytes.NewBufferString(`{"id":"x"}`))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/properties/nope", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		seedProperty(t, server, testListing("prop-del"))

		req := httptest.NewRequest(http.MethodDelete, "/properties/prop-del", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		req = httptest.NewRequest(http.MethodDelete, "/properties/prop-del", nil)
		rr = httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404 for second delete, got %d", rr.Code)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("ListBuiltins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count       int `json:"count"`
			CustomCount int `json:"customCount"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != 10 {
			t.Errorf("expected 10 builtin rules, got %d", resp.Count)
		}
	})

	t.Run("CreateCustomRule", func(t *testing.T) {
		body := `{
			"id": "min-suites",
			"name": "Minimum suite count",
			"severity": "medium",
			"expression": "suite_count >= 2",
			"enabled": true
		}`
		req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("RejectsInvalidExpression", func(t *testing.T) {
		body := `{
			"id": "broken",
			"name": "Broken rule",
			"expression": "suite_count >>> 2"
		}`
		req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("RequiresFields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBufferString(`{"id":"x"}`))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("Reload", func(t *testing.T) {
		body := `{
			"rules": [
				{"id": "only-rule", "name": "Only", "expression": "true", "enabled": true}
			]
		}`
		req := httptest.NewRequest(http.MethodPost, "/rules/reload", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		if got := server.Handler().evaluator.CustomRuleCount(); got != 1 {
			t.Errorf("expected 1 custom rule after reload, got %d", got)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("Health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp["status"] != "healthy" {
			t.Errorf("expected healthy, got %q", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version test-v1, got %q", resp["version"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("RequestIDHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})
}
