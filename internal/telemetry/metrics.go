package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/billstock"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Request metrics
	RequestsTotal       metric.Int64Counter
	RequestErrorsTotal  metric.Int64Counter
	RequestsQueuedTotal metric.Int64Counter

	// Session metrics
	RecoveriesTotal    metric.Int64Counter
	ForcedLogoutsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = newMetrics(otel.GetMeterProvider().Meter(meterName))
	})
	return metrics
}

// newMetrics creates and registers all metric instruments
func newMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{}

	m.RequestsTotal, _ = meter.Int64Counter(
		"billstock.requests.total",
		metric.WithDescription("Total number of API requests sent"),
		metric.WithUnit("{request}"),
	)

	m.RequestErrorsTotal, _ = meter.Int64Counter(
		"billstock.requests.errors.total",
		metric.WithDescription("Total number of failed API requests by error kind"),
		metric.WithUnit("{error}"),
	)

	m.RequestsQueuedTotal, _ = meter.Int64Counter(
		"billstock.requests.queued.total",
		metric.WithDescription("Total number of requests parked behind a session recovery"),
		metric.WithUnit("{request}"),
	)

	m.RecoveriesTotal, _ = meter.Int64Counter(
		"billstock.recoveries.total",
		metric.WithDescription("Total number of session recoveries by outcome"),
		metric.WithUnit("{recovery}"),
	)

	m.ForcedLogoutsTotal, _ = meter.Int64Counter(
		"billstock.sessions.forced_logout.total",
		metric.WithDescription("Total number of sessions ended without a user logout"),
		metric.WithUnit("{session}"),
	)

	return m
}

func (m *Metrics) RecordRequest(ctx context.Context) {
	m.RequestsTotal.Add(ctx, 1)
}

func (m *Metrics) RecordRequestError(ctx context.Context, kind string) {
	m.RequestErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordQueued(ctx context.Context) {
	m.RequestsQueuedTotal.Add(ctx, 1)
}

// RecordRecovery counts a recovery; outcome is "success" or "failure".
func (m *Metrics) RecordRecovery(ctx context.Context, outcome string) {
	m.RecoveriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordForcedLogout counts a session ended by expiry or a failed recovery.
func (m *Metrics) RecordForcedLogout(ctx context.Context, reason string) {
	m.ForcedLogoutsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
