package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Provider owns the meter provider and the Prometheus registry it exports to.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	registry      *prometheus.Registry
}

// NewProvider creates a meter provider backed by a dedicated Prometheus registry.
func NewProvider() (*Provider, error) {
	registry := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	return &Provider{
		meterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
		registry:      registry,
	}, nil
}

// MeterProvider returns the provider used to build instruments.
func (p *Provider) MeterProvider() metric.MeterProvider {
	return p.meterProvider
}

// Handler serves the registry in Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}

// Metrics records request, guard and login instruments.
type Metrics struct {
	requests     metric.Int64Counter
	duration     metric.Float64Histogram
	errors       metric.Int64Counter
	guard        metric.Int64Counter
	logins       metric.Int64Counter
	tokensIssued metric.Int64Counter
	throttled    metric.Int64Counter
}

// NewMetrics builds instruments prefixed with namespace.
func NewMetrics(provider metric.MeterProvider, namespace string) (*Metrics, error) {
	meter := provider.Meter(namespace)
	name := func(s string) string {
		if namespace == "" {
			return s
		}
		return namespace + "_" + s
	}

	var (
		m   Metrics
		err error
	)
	if m.requests, err = meter.Int64Counter(name("http_requests_total"),
		metric.WithDescription("HTTP requests served")); err != nil {
		return nil, fmt.Errorf("http_requests_total: %w", err)
	}
	if m.duration, err = meter.Float64Histogram(name("http_request_duration_seconds"),
		metric.WithDescription("HTTP request latency"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("http_request_duration_seconds: %w", err)
	}
	if m.errors, err = meter.Int64Counter(name("http_errors_total"),
		metric.WithDescription("HTTP error responses by code")); err != nil {
		return nil, fmt.Errorf("http_errors_total: %w", err)
	}
	if m.guard, err = meter.Int64Counter(name("guard_decisions_total"),
		metric.WithDescription("Access guard decisions")); err != nil {
		return nil, fmt.Errorf("guard_decisions_total: %w", err)
	}
	if m.logins, err = meter.Int64Counter(name("login_attempts_total"),
		metric.WithDescription("Login attempts by result")); err != nil {
		return nil, fmt.Errorf("login_attempts_total: %w", err)
	}
	if m.tokensIssued, err = meter.Int64Counter(name("tokens_issued_total"),
		metric.WithDescription("Tokens issued by role")); err != nil {
		return nil, fmt.Errorf("tokens_issued_total: %w", err)
	}
	if m.throttled, err = meter.Int64Counter(name("throttled_requests_total"),
		metric.WithDescription("Requests rejected by the login throttle")); err != nil {
		return nil, fmt.Errorf("throttled_requests_total: %w", err)
	}
	return &m, nil
}

// NewNoopMetrics returns metrics that record nothing.
func NewNoopMetrics() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider(), "")
	if err != nil {
		panic(err)
	}
	return m
}

// RecordRequest counts a served request and its latency.
func (m *Metrics) RecordRequest(ctx context.Context, route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}

// RecordError counts an error response by its code.
func (m *Metrics) RecordError(ctx context.Context, route, method, code string) {
	if m == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
		attribute.String("code", code),
	))
}

// RecordGuardDecision counts an access guard outcome.
func (m *Metrics) RecordGuardDecision(ctx context.Context, outcome, reason string) {
	if m == nil {
		return
	}
	m.guard.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	))
}

// RecordLogin counts a login attempt.
func (m *Metrics) RecordLogin(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordTokenIssued counts an issued token.
func (m *Metrics) RecordTokenIssued(ctx context.Context, role string) {
	if m == nil {
		return
	}
	m.tokensIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role)))
}

// RecordThrottled counts a throttled request.
func (m *Metrics) RecordThrottled(ctx context.Context, backend string) {
	if m == nil {
		return
	}
	m.throttled.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}
