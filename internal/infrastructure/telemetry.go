package infrastructure

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Telemetry handles all observability concerns: tracing and metrics
type Telemetry struct {
	TracerProvider     *sdktrace.TracerProvider
	MeterProvider      *sdkmetric.MeterProvider
	PrometheusExporter *prometheus.Exporter
	Tracer             trace.Tracer
	Meter              metric.Meter
	config             *TelemetryConfig
	logger             *zap.Logger
}

// TelemetryMetrics contains pre-created instruments. A nil *TelemetryMetrics
// is valid and records nothing, so components can run without telemetry.
type TelemetryMetrics struct {
	HTTPRequestDuration  metric.Float64Histogram
	HTTPRequestCount     metric.Int64Counter
	SubmissionsJudged    metric.Int64Counter
	JudgeDuration        metric.Float64Histogram
	JudgeFailures        metric.Int64Counter
	AttemptRejections    metric.Int64Counter
	RecomputeFailures    metric.Int64Counter
	LeaderboardRefreshes metric.Int64Counter
	LeaderboardCacheHits metric.Int64Counter
}

// NewTelemetry initializes OpenTelemetry with tracing and metrics
func NewTelemetry(ctx context.Context, config *TelemetryConfig, environment string, logger *zap.Logger) (*Telemetry, error) {
	if !config.Enabled {
		logger.Info("Telemetry disabled, using noop providers")
		return &Telemetry{
			Tracer: otel.Tracer(config.ServiceName),
			Meter:  otel.Meter(config.ServiceName),
			config: config,
			logger: logger,
		}, nil
	}

	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("deployment.environment", environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(config.OTLPEndpoint),
		otlptracehttp.WithInsecure(), // Use TLS in production
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(config.SampleRatio),
		)),
	)

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Telemetry initialized",
		zap.String("service", config.ServiceName),
		zap.String("version", config.ServiceVersion),
		zap.String("otlp_endpoint", config.OTLPEndpoint),
		zap.Float64("sample_ratio", config.SampleRatio),
	)

	return &Telemetry{
		TracerProvider:     tracerProvider,
		MeterProvider:      meterProvider,
		PrometheusExporter: promExporter,
		Tracer:             tracerProvider.Tracer(config.ServiceName),
		Meter:              meterProvider.Meter(config.ServiceName),
		config:             config,
		logger:             logger,
	}, nil
}

// CreateMetrics initializes all application metrics
func (t *Telemetry) CreateMetrics() (*TelemetryMetrics, error) {
	var (
		m   TelemetryMetrics
		err error
	)

	if m.HTTPRequestDuration, err = t.Meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestCount, err = t.Meter.Int64Counter(
		"http.request.count",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.SubmissionsJudged, err = t.Meter.Int64Counter(
		"contest.submissions.judged",
		metric.WithDescription("Submissions recorded, by verdict"),
	); err != nil {
		return nil, err
	}
	if m.JudgeDuration, err = t.Meter.Float64Histogram(
		"judge.run.duration",
		metric.WithDescription("Judge round-trip duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.JudgeFailures, err = t.Meter.Int64Counter(
		"judge.run.failures",
		metric.WithDescription("Judge calls that timed out or failed"),
	); err != nil {
		return nil, err
	}
	if m.AttemptRejections, err = t.Meter.Int64Counter(
		"contest.attempts.rejected",
		metric.WithDescription("Submissions rejected by the attempt cap"),
	); err != nil {
		return nil, err
	}
	if m.RecomputeFailures, err = t.Meter.Int64Counter(
		"contest.score.recompute_failures",
		metric.WithDescription("Failed participant score recomputations"),
	); err != nil {
		return nil, err
	}
	if m.LeaderboardRefreshes, err = t.Meter.Int64Counter(
		"contest.leaderboard.refreshes",
		metric.WithDescription("Leaderboard refreshes, by outcome"),
	); err != nil {
		return nil, err
	}
	if m.LeaderboardCacheHits, err = t.Meter.Int64Counter(
		"contest.leaderboard.cache_lookups",
		metric.WithDescription("Leaderboard cache lookups, by hit or miss"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordSubmission counts a persisted submission by status
func (m *TelemetryMetrics) RecordSubmission(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.SubmissionsJudged.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordJudgeRun records the latency of a judge call and counts failures
func (m *TelemetryMetrics) RecordJudgeRun(ctx context.Context, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.JudgeDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.Bool("ok", err == nil)))
	if err != nil {
		m.JudgeFailures.Add(ctx, 1)
	}
}

// RecordAttemptRejection counts a submission stopped by the attempt cap
func (m *TelemetryMetrics) RecordAttemptRejection(ctx context.Context) {
	if m == nil {
		return
	}
	m.AttemptRejections.Add(ctx, 1)
}

// RecordRecomputeFailure counts a failed score recomputation
func (m *TelemetryMetrics) RecordRecomputeFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.RecomputeFailures.Add(ctx, 1)
}

// RecordLeaderboardRefresh counts a refresh of one contest
func (m *TelemetryMetrics) RecordLeaderboardRefresh(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.LeaderboardRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", err == nil)))
}

// RecordLeaderboardLookup counts a cache lookup
func (m *TelemetryMetrics) RecordLeaderboardLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	m.LeaderboardCacheHits.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

// Shutdown gracefully shuts down telemetry providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			t.logger.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			t.logger.Error("Failed to shutdown meter provider", zap.Error(err))
		}
	}
	t.logger.Info("Telemetry shutdown complete")
	return nil
}
