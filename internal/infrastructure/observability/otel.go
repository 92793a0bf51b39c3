package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/agrilink/marketplace-backend"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount      metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	DBQueryDuration   metric.Float64Histogram
	BookingConflicts  metric.Int64Counter
	RatingsFlagged    metric.Int64Counter
	EventsEmitted     metric.Int64Counter
	EventsDeduplicate metric.Int64Counter
}

// Setup initializes OpenTelemetry
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	// Set up trace exporter
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	// Set up trace provider
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Shutdown function
	shutdown := func(ctx context.Context) error {
		return tracerProvider.Shutdown(ctx)
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestCount, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	dbQueryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	bookingConflicts, err := meter.Int64Counter(
		"booking.slot.conflict.count",
		metric.WithDescription("Number of rejected slot-claim attempts"),
	)
	if err != nil {
		return nil, err
	}

	ratingsFlagged, err := meter.Int64Counter(
		"rating.flagged.count",
		metric.WithDescription("Number of ratings flagged for moderation"),
	)
	if err != nil {
		return nil, err
	}

	eventsEmitted, err := meter.Int64Counter(
		"notification.event.emitted.count",
		metric.WithDescription("Number of side-effect events emitted"),
	)
	if err != nil {
		return nil, err
	}

	eventsDeduplicated, err := meter.Int64Counter(
		"notification.event.deduplicated.count",
		metric.WithDescription("Number of side-effect events suppressed by the idempotency guard"),
	)
	if err != nil {
		return nil, err
	}

	defaultMetrics = &Metrics{
		RequestCount:      requestCount,
		RequestDuration:   requestDuration,
		DBQueryDuration:   dbQueryDuration,
		BookingConflicts:  bookingConflicts,
		RatingsFlagged:    ratingsFlagged,
		EventsEmitted:     eventsEmitted,
		EventsDeduplicate: eventsDeduplicated,
	}
	return defaultMetrics, nil
}

// defaultMetrics backs the package-level counters used by the services.
// Nil until InitMetrics runs; the counter helpers are no-ops before that.
var defaultMetrics *Metrics

// CountBookingConflict records a rejected slot-claim attempt.
func CountBookingConflict(ctx context.Context) {
	if defaultMetrics != nil {
		defaultMetrics.BookingConflicts.Add(ctx, 1)
	}
}

// CountRatingFlagged records a rating flagged for moderation.
func CountRatingFlagged(ctx context.Context) {
	if defaultMetrics != nil {
		defaultMetrics.RatingsFlagged.Add(ctx, 1)
	}
}

// CountEventEmitted records an emitted side-effect event.
func CountEventEmitted(ctx context.Context, kind string) {
	if defaultMetrics != nil {
		defaultMetrics.EventsEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("event.kind", kind)))
	}
}

// CountEventDeduplicated records an event suppressed by the idempotency guard.
func CountEventDeduplicated(ctx context.Context) {
	if defaultMetrics != nil {
		defaultMetrics.EventsDeduplicate.Add(ctx, 1)
	}
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordRequestMetric records a request metric with attributes
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	metrics.RequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordDBMetric records a database operation metric
func RecordDBMetric(ctx context.Context, metrics *Metrics, operation string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
	}
	metrics.DBQueryDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}
