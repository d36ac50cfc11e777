// Package telemetry records one entry per answered query and aggregates
// them into usage statistics.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bull/rag-assistant/internal/storage"
)

const (
	// DefaultCostPer1K is the estimated price in dollars per 1000 tokens.
	DefaultCostPer1K = 0.01

	// DefaultHistoryLimit bounds History when no limit is given.
	DefaultHistoryLimit = 50
)

// Outcome is the result of a query attempt: Success or Failure.
type Outcome interface {
	outcome()
}

type Success struct {
	Answer     string
	Latency    time.Duration
	TokenCount int
}

type Failure struct {
	Latency time.Duration
	Err     error
}

func (Success) outcome() {}
func (Failure) outcome() {}

// Stats summarizes every recorded query.
type Stats struct {
	TotalQueries int     `json:"total_queries"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
	SuccessRate  float64 `json:"success_rate"`
}

// Recorder writes telemetry records to the store.
type Recorder struct {
	store     storage.Store
	metrics   *Metrics
	costPer1K decimal.Decimal
	history   int
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Recorder)

func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithCostPer1K overrides DefaultCostPer1K.
func WithCostPer1K(cost float64) Option {
	return func(r *Recorder) {
		if cost >= 0 {
			r.costPer1K = decimal.NewFromFloat(cost)
		}
	}
}

// WithHistoryLimit overrides DefaultHistoryLimit.
func WithHistoryLimit(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.history = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRecorder(store storage.Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:     store,
		costPer1K: decimal.NewFromFloat(DefaultCostPer1K),
		history:   DefaultHistoryLimit,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record writes exactly one record for a query attempt. The record is
// returned even when the write fails so callers can log it.
func (r *Recorder) Record(ctx context.Context, query string, outcome Outcome) (*storage.TelemetryRecord, error) {
	rec := &storage.TelemetryRecord{
		ID:        uuid.NewString(),
		Query:     query,
		Timestamp: r.now().UTC(),
	}
	switch o := outcome.(type) {
	case Success:
		rec.Success = true
		rec.Answer = o.Answer
		rec.LatencyMS = toMillis(o.Latency)
		rec.TokenCount = o.TokenCount
	case Failure:
		rec.LatencyMS = toMillis(o.Latency)
		if o.Err != nil {
			rec.Error = o.Err.Error()
		}
	default:
		return nil, fmt.Errorf("unknown outcome %T", outcome)
	}

	if r.metrics != nil {
		r.metrics.observeQuery(rec.Success, rec.LatencyMS/1000, rec.TokenCount)
	}
	if err := r.store.InsertTelemetry(ctx, rec); err != nil {
		return rec, fmt.Errorf("insert telemetry: %w", err)
	}
	r.logger.Debug("Recorded query telemetry",
		"id", rec.ID,
		"success", rec.Success,
		"latency_ms", rec.LatencyMS,
		"tokens", rec.TokenCount)
	return rec, nil
}

// Stats aggregates all stored records. Tokens and cost count successful
// queries only; latency averages over every query.
func (r *Recorder) Stats(ctx context.Context) (*Stats, error) {
	records, err := r.store.ListTelemetry(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list telemetry: %w", err)
	}
	stats := &Stats{}
	if len(records) == 0 {
		return stats, nil
	}

	var latencySum float64
	successes := 0
	for _, rec := range records {
		latencySum += rec.LatencyMS
		if rec.Success {
			successes++
			stats.TotalTokens += rec.TokenCount
		}
	}

	total := len(records)
	stats.TotalQueries = total
	stats.AvgLatencyMS = latencySum / float64(total)
	stats.TotalCost = decimal.NewFromInt(int64(stats.TotalTokens)).
		Div(decimal.NewFromInt(1000)).
		Mul(r.costPer1K).
		InexactFloat64()
	stats.SuccessRate = decimal.NewFromInt(int64(successes)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(decimal.NewFromInt(100)).
		InexactFloat64()
	return stats, nil
}

// History returns the newest records first. Non-positive limits use the
// configured history limit.
func (r *Recorder) History(ctx context.Context, limit int) ([]*storage.TelemetryRecord, error) {
	if limit <= 0 {
		limit = r.history
	}
	records, err := r.store.ListTelemetry(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list telemetry: %w", err)
	}
	return records, nil
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
