package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/openlease/harrier/internal/compliance"
	"github.com/openlease/harrier/internal/domain"
	"github.com/openlease/harrier/internal/matcher"
	"github.com/openlease/harrier/internal/worker"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	catalog   domain.Catalog
	cache     domain.Cache
	bus       domain.EventBus
	evaluator *compliance.Evaluator
	matcher   *matcher.Matcher
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(catalog domain.Catalog, cache domain.Cache, bus domain.EventBus, evaluator *compliance.Evaluator, m *matcher.Matcher, version string) *Handler {
	return &Handler{
		catalog:   catalog,
		cache:     cache,
		bus:       bus,
		evaluator: evaluator,
		matcher:   m,
		version:   version,
	}
}

// MatchRequest is the request body for POST /match.
type MatchRequest struct {
	Criteria *domain.Criteria `json:"criteria"`

	// Limit caps the candidate set pulled from the catalog. Zero means
	// no cap.
	Limit int `json:"limit,omitempty"`
}

// Match handles POST /match requests synchronously.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Criteria == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "criteria is required",
		})
		return
	}

	// Reject malformed criteria before touching the catalog
	if err := req.Criteria.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	candidates, err := worker.LoadCandidates(ctx, h.catalog, req.Criteria, req.Limit)
	if err != nil {
		slog.Error("failed to load candidates", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "catalog unavailable",
		})
		return
	}

	outcome, err := h.matcher.FindMatches(ctx, req.Criteria, candidates)
	if err != nil {
		slog.Error("match run failed", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	outcome.Metadata.TraceID = traceID

	if h.catalog != nil {
		if err := h.catalog.SaveOutcome(ctx, outcome); err != nil {
			slog.Error("failed to save outcome", "outcome_id", outcome.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, outcome)
}

// MatchAsync handles POST /match/async by queueing the run on the bus.
func (h *Handler) MatchAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Criteria == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "criteria is required",
		})
		return
	}
	if err := req.Criteria.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	queued := worker.MatchRequest{
		RequestID: uuid.New().String(),
		TraceID:   traceID,
		Criteria:  req.Criteria,
		Limit:     req.Limit,
	}
	payload, _ := json.Marshal(queued)

	if err := h.bus.Publish(ctx, domain.TopicMatchRequested, payload); err != nil {
		slog.Error("failed to queue match request", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue match request",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"requestId": queued.RequestID,
		"status":    "queued",
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check catalog health
	if h.catalog != nil {
		if err := h.catalog.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetOutcome retrieves a recorded matching run by ID.
func (h *Handler) GetOutcome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	outcomeID := chi.URLParam(r, "id")

	if outcomeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "outcome id is required",
		})
		return
	}

	if h.catalog == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "catalog not available",
		})
		return
	}

	outcome, err := h.catalog.GetOutcome(ctx, outcomeID)
	if err != nil {
		slog.Error("failed to get outcome", "id", outcomeID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "outcome not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// SaveProperty creates or updates a catalog listing.
func (h *Handler) SaveProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.catalog == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "catalog not available",
		})
		return
	}

	var p domain.Property
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Address == "" || p.State == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "address and state are required",
		})
		return
	}

	// Normalize raw listing rates like "$18.50/SF/YR" on ingest
	if p.RatePerSqft == 0 && p.RateText != "" {
		if rate, ok := domain.ParseRateText(p.RateText); ok {
			p.RatePerSqft = rate
		}
	}

	if err := h.catalog.SaveProperty(ctx, &p); err != nil {
		slog.Error("failed to save property", "id", p.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save property",
		})
		return
	}

	// Cached embeddings for the old listing are stale now
	if h.cache != nil {
		if err := h.cache.Delete(ctx, "emb:"+p.ID); err != nil {
			slog.Warn("failed to invalidate cached embedding", "id", p.ID, "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(map[string]string{"propertyId": p.ID, "updatedAt": time.Now().UTC().Format(time.RFC3339)})
		if err := h.bus.Publish(ctx, domain.TopicCatalogUpdated, payload); err != nil {
			slog.Error("failed to publish catalog update", "id", p.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, &p)
}

// GetProperty retrieves a catalog listing by ID.
func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	propertyID := chi.URLParam(r, "id")

	if propertyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "property id is required",
		})
		return
	}

	if h.catalog == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "catalog not available",
		})
		return
	}

	p, err := h.catalog.GetProperty(ctx, propertyID)
	if errors.Is(err, domain.ErrPropertyNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "property not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get property", "id", propertyID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get property",
		})
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// DeleteProperty removes a catalog listing.
func (h *Handler) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	propertyID := chi.URLParam(r, "id")

	if propertyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "property id is required",
		})
		return
	}

	if h.catalog == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "catalog not available",
		})
		return
	}

	if err := h.catalog.DeleteProperty(ctx, propertyID); err != nil {
		if errors.Is(err, domain.ErrPropertyNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "property not found",
			})
			return
		}
		slog.Error("failed to delete property", "id", propertyID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete property",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "property deleted",
	})
}

// ListRules returns the built-in rule set plus any custom rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules := h.evaluator.Rules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":       rules,
		"count":       len(rules),
		"customCount": h.evaluator.CustomRuleCount(),
	})
}

// CreateRule validates and loads a custom CEL compliance rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var cfg compliance.CustomRuleConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if cfg.ID == "" || cfg.Name == "" || cfg.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	// Validate the CEL expression by compiling it
	if err := h.evaluator.LoadCustomRule(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	slog.Info("custom rule loaded", "id", cfg.ID, "name", cfg.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule": cfg,
	})
}

// ReloadRulesRequest is the request body for POST /rules/reload.
type ReloadRulesRequest struct {
	Rules []*compliance.CustomRuleConfig `json:"rules"`
}

// ReloadRules replaces the whole custom rule set atomically.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	var req ReloadRulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.evaluator.ReloadCustomRules(req.Rules); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("custom rules reloaded", "count", len(req.Rules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(req.Rules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
