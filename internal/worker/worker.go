// Package worker provides async match processing from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/openlease/harrier/internal/domain"
	"github.com/openlease/harrier/internal/matcher"
	"github.com/openlease/harrier/internal/repository"
)

// Worker consumes match requests from the EventBus, runs them against
// the catalog and records the outcome.
type Worker struct {
	bus     domain.EventBus
	catalog domain.Catalog
	matcher *matcher.Matcher

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, catalog domain.Catalog, m *matcher.Matcher) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		catalog: catalog,
		matcher: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to the match request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicMatchRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started", "topic", domain.TopicMatchRequested)
	return nil
}

// MatchRequest is the message payload for an async matching run.
type MatchRequest struct {
	RequestID string           `json:"requestId,omitempty"`
	TraceID   string           `json:"traceId,omitempty"`
	Criteria  *domain.Criteria `json:"criteria"`
	Limit     int              `json:"limit,omitempty"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processRequest(ctx, msg)
}

// processRequest runs one matching request through the pipeline.
func (w *Worker) processRequest(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req MatchRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse match request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if req.Criteria == nil {
		slog.Error("match request has no criteria", "message_id", msg.ID)
		return nil
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = msg.ID
	}

	slog.Debug("processing match request",
		"request_id", requestID,
		"trace_id", req.TraceID,
	)

	// 1. Pull the candidate set with the coarse store query
	candidates, err := LoadCandidates(ctx, w.catalog, req.Criteria, req.Limit)
	if err != nil {
		slog.Error("failed to load candidates",
			"request_id", requestID,
			"error", err,
		)
		return err
	}

	// 2. Run the matching pipeline
	outcome, err := w.matcher.FindMatches(ctx, req.Criteria, candidates)
	if err != nil {
		slog.Error("match run failed",
			"request_id", requestID,
			"error", err,
		)
		return err
	}
	outcome.Metadata.TraceID = req.TraceID

	// 3. Record the outcome for audit
	if w.catalog != nil {
		if err := w.catalog.SaveOutcome(ctx, outcome); err != nil {
			slog.Error("failed to save outcome",
				"outcome_id", outcome.ID,
				"error", err,
			)
		}
	}

	slog.Info("match request processed",
		"request_id", requestID,
		"outcome_id", outcome.ID,
		"matches", len(outcome.Matches),
		"rejected", len(outcome.Rejected),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// LoadCandidates derives the coarse store query from the criteria and
// fetches the candidate set. Radius searches get a geohash pre-filter.
func LoadCandidates(ctx context.Context, catalog domain.Catalog, c *domain.Criteria, limit int) ([]*domain.Property, error) {
	q := domain.QueryFromCriteria(c)
	q.Limit = limit
	if c.Location.HasCenter() {
		q.GeohashPrefixes = repository.PrefixesForRadius(
			*c.Location.Latitude, *c.Location.Longitude, *c.Location.RadiusKm)
	}
	return catalog.ListProperties(ctx, q)
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
