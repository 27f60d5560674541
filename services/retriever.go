package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"knowledge-base-platform/internal/telemetry"
	"knowledge-base-platform/models"
)

// Retriever turns a natural-language query into an owner-scoped set of
// scored passages and the prompt that grounds generation on them.
type Retriever struct {
	embedder Embedder
	vectors  VectorIndex
	metrics  *telemetry.Metrics

	defaultTopK      int
	defaultThreshold float64
	maxQueryLength   int
}

func NewRetriever(embedder Embedder, vectors VectorIndex, metrics *telemetry.Metrics, defaultTopK int, defaultThreshold float64, maxQueryLength int) *Retriever {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if maxQueryLength <= 0 {
		maxQueryLength = 5000
	}
	return &Retriever{
		embedder:         embedder,
		vectors:          vectors,
		metrics:          metrics,
		defaultTopK:      defaultTopK,
		defaultThreshold: defaultThreshold,
		maxQueryLength:   maxQueryLength,
	}
}

// Search embeds the query and returns up to topK passages owned by
// ownerID with score >= threshold, best first. topK <= 0 and a negative
// threshold fall back to the configured defaults.
func (r *Retriever) Search(ctx context.Context, query, ownerID string, topK int, threshold float64) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	if len(query) > r.maxQueryLength {
		return nil, fmt.Errorf("%w: query exceeds %d characters", ErrInvalidQuery, r.maxQueryLength)
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}
	if threshold < 0 {
		threshold = r.defaultThreshold
	}

	start := time.Now()
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := r.vectors.Search(ctx, vec, ownerID, topK, threshold)
	if err != nil {
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.RecordRetrieval(time.Since(start).Seconds(), len(results))
	}
	return results, nil
}

// Retrieve runs Search and assembles the grounded prompt. A query that
// matches nothing still yields a valid context; the generator answers
// from an empty reference section and says so.
func (r *Retriever) Retrieve(ctx context.Context, query, ownerID string, topK int, threshold float64) (*models.RAGContext, error) {
	results, err := r.Search(ctx, query, ownerID, topK, threshold)
	if err != nil {
		return nil, err
	}
	return &models.RAGContext{
		Query:    query,
		Passages: results,
		Prompt:   BuildPrompt(query, results),
	}, nil
}

// BuildPrompt renders the reference material block followed by the
// question. Each passage is delimited and carries its title and score
// so the model can weigh and cite sources.
func BuildPrompt(query string, passages []models.SearchResult) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant. Answer the question using only the reference material below. ")
	b.WriteString("If the material does not contain the answer, say you don't know.\n\n")
	b.WriteString("Reference material:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "\n--- Source %d: %s (relevance %.0f%%) ---\n", i+1, p.Title, p.Score*100)
		b.WriteString(p.Content)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
