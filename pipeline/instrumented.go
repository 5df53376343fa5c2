package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"nutrivision/chat"
)

// Responder answers one user turn.
type Responder interface {
	Respond(ctx context.Context, req Request) (Result, error)
}

// InstrumentedAssistant records turn metrics around a Responder.
type InstrumentedAssistant struct {
	next Responder

	turns        metric.Int64Counter
	failures     metric.Int64Counter
	llmCalls     metric.Int64Counter
	resolved     metric.Int64Counter
	unresolved   metric.Int64Counter
	promptSize   metric.Int64Gauge
	responseTime metric.Float64Histogram
}

func NewInstrumentedAssistant(next Responder, meter metric.Meter) (*InstrumentedAssistant, error) {
	ia := &InstrumentedAssistant{next: next}

	var err error
	if ia.turns, err = meter.Int64Counter("assistant_turns_total",
		metric.WithDescription("Total number of turns answered, by intent")); err != nil {
		return nil, fmt.Errorf("create turns counter: %w", err)
	}
	if ia.failures, err = meter.Int64Counter("assistant_turns_failed_total",
		metric.WithDescription("Total number of turns that failed, by error type")); err != nil {
		return nil, fmt.Errorf("create failures counter: %w", err)
	}
	if ia.llmCalls, err = meter.Int64Counter("llm_calls_total",
		metric.WithDescription("Total number of language model calls")); err != nil {
		return nil, fmt.Errorf("create llm calls counter: %w", err)
	}
	if ia.resolved, err = meter.Int64Counter("foods_resolved_total",
		metric.WithDescription("Total number of food mentions resolved against the reference index")); err != nil {
		return nil, fmt.Errorf("create resolved counter: %w", err)
	}
	if ia.unresolved, err = meter.Int64Counter("foods_unresolved_total",
		metric.WithDescription("Total number of food mentions without reference data")); err != nil {
		return nil, fmt.Errorf("create unresolved counter: %w", err)
	}
	if ia.promptSize, err = meter.Int64Gauge("prompt_size_bytes",
		metric.WithDescription("Size of the final prompt sent to the LLM in bytes")); err != nil {
		return nil, fmt.Errorf("create prompt size gauge: %w", err)
	}
	if ia.responseTime, err = meter.Float64Histogram("assistant_response_time_seconds",
		metric.WithDescription("Time taken to answer a turn in seconds")); err != nil {
		return nil, fmt.Errorf("create response time histogram: %w", err)
	}
	return ia, nil
}

func (ia *InstrumentedAssistant) Respond(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := ia.next.Respond(ctx, req)
	ia.responseTime.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		ia.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("error_type", errorType(err))))
		return res, err
	}

	intent := metric.WithAttributes(attribute.String("intent", string(res.Intent)))
	ia.turns.Add(ctx, 1, intent)
	ia.llmCalls.Add(ctx, int64(res.LLMCalls), intent)
	ia.resolved.Add(ctx, int64(len(res.Resolved)), intent)
	ia.unresolved.Add(ctx, int64(len(res.Unresolved)), intent)
	ia.promptSize.Record(ctx, int64(res.PromptBytes), intent)
	return res, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrMissingUser), errors.Is(err, ErrEmptyMessage):
		return "invalid_request"
	case errors.Is(err, chat.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}
