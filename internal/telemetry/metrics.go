package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	DocumentsIndexed    metric.Int64Counter
	ChunksUpserted      metric.Int64Counter
	IndexingDuration    metric.Float64Histogram
	RetrievalDuration   metric.Float64Histogram
	TokensUsed          metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
	OrphansReaped       metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("knowledge-base-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	documentsIndexed, err := meter.Int64Counter(
		"knowledge.documents.indexed",
		metric.WithDescription("Indexing passes by outcome"),
	)
	if err != nil {
		return nil, err
	}

	chunksUpserted, err := meter.Int64Counter(
		"knowledge.chunks.upserted",
		metric.WithDescription("Vector records upserted"),
	)
	if err != nil {
		return nil, err
	}

	indexingDuration, err := meter.Float64Histogram(
		"knowledge.indexing.duration",
		metric.WithDescription("Document indexing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	retrievalDuration, err := meter.Float64Histogram(
		"knowledge.retrieval.duration",
		metric.WithDescription("Retrieval pass duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	orphansReaped, err := meter.Int64Counter(
		"knowledge.orphans.reaped",
		metric.WithDescription("Orphaned vector sets deleted by the reaper"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		DocumentsIndexed:    documentsIndexed,
		ChunksUpserted:      chunksUpserted,
		IndexingDuration:    indexingDuration,
		RetrievalDuration:   retrievalDuration,
		TokensUsed:          tokensUsed,
		CircuitBreakerState: circuitBreakerState,
		OrphansReaped:       orphansReaped,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordIndexing records one indexing pass
func (m *Metrics) RecordIndexing(duration float64, chunks int, outcome string) {
	attrs := []attribute.KeyValue{
		attribute.String("indexing.outcome", outcome),
	}

	m.DocumentsIndexed.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.ChunksUpserted.Add(context.Background(), int64(chunks), metric.WithAttributes(attrs...))
	m.IndexingDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordRetrieval records one retrieval pass
func (m *Metrics) RecordRetrieval(duration float64, hits int) {
	attrs := []attribute.KeyValue{
		attribute.Int("retrieval.hits", hits),
	}

	m.RetrievalDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordOrphansReaped records reaper sweeps
func (m *Metrics) RecordOrphansReaped(count int64) {
	m.OrphansReaped.Add(context.Background(), count)
}
