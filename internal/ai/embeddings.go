package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"knowledge-base-platform/internal/config"
	"knowledge-base-platform/internal/logger"
	"knowledge-base-platform/services"
	"knowledge-base-platform/utils"
)

// Known embedding model dimensions. Anything unlisted falls back to
// the configured VECTOR_DIM.
var modelDimensions = map[string]int{
	"text-embedding-004":   768,
	"embedding-001":        768,
	"gemini-embedding-001": 3072,
}

// EmbeddingClient converts text into fixed-dimension vectors via the
// Gemini embedding model. One shared client per process, injected where
// needed; Close releases the underlying connection.
type EmbeddingClient struct {
	client    *genai.Client
	model     string
	dim       int
	rdb       *redis.Client
	cacheTTL  time.Duration
	useCache  bool
	callLimit time.Duration
}

var _ services.Embedder = (*EmbeddingClient)(nil)

// NewEmbeddingClient creates the shared embedding client. rdb may be
// nil to disable the content-hash cache.
func NewEmbeddingClient(cfg *config.Config, rdb *redis.Client) (*EmbeddingClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings: %w", services.ErrAuth)
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	dim, ok := modelDimensions[cfg.EmbeddingsModel]
	if !ok {
		dim = cfg.VectorDimensions
	}

	return &EmbeddingClient{
		client:    client,
		model:     cfg.EmbeddingsModel,
		dim:       dim,
		rdb:       rdb,
		cacheTTL:  time.Duration(cfg.EmbeddingCacheTTL) * time.Second,
		useCache:  cfg.EmbeddingCacheEnabled && rdb != nil,
		callLimit: 30 * time.Second,
	}, nil
}

// Dimensions is the vector dimension of the configured model. It must
// match the vector index's declared field dimension; the mismatch is
// checked at schema creation, not per insert.
func (ec *EmbeddingClient) Dimensions() int {
	return ec.dim
}

// Embed returns the embedding vector for one text.
func (ec *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.ErrEmptyInput
	}

	if vec, ok := ec.cacheGet(ctx, text); ok {
		return vec, nil
	}

	ctx, cancel := context.WithTimeout(ctx, ec.callLimit)
	defer cancel()

	model := ec.client.EmbeddingModel(ec.model)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, classifyError("embed", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embed: no embedding returned")
	}

	ec.cacheSet(ctx, text, resp.Embedding.Values)
	return resp.Embedding.Values, nil
}

// EmbedBatch embeds all texts in one remote call. The result is
// index-correspondent with the input: element i belongs to texts[i].
func (ec *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, services.ErrEmptyInput
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, services.ErrEmptyInput
		}
	}

	ctx, cancel := context.WithTimeout(ctx, ec.callLimit)
	defer cancel()

	model := ec.client.EmbeddingModel(ec.model)
	batch := model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, classifyError("embed batch", err)
	}
	if len(resp.Embeddings) != len(texts) {
		// Integrity check: never silently truncate or pad.
		return nil, fmt.Errorf("embed batch returned %d vectors for %d texts: %w",
			len(resp.Embeddings), len(texts), services.ErrEmbeddingCountMismatch)
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("embed batch: empty vector at index %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Close releases the underlying genai connection.
func (ec *EmbeddingClient) Close() error {
	if ec.client != nil {
		return ec.client.Close()
	}
	return nil
}

func (ec *EmbeddingClient) cacheKey(text string) string {
	return fmt.Sprintf("emb:%s:%s", ec.model, utils.ContentHash(text))
}

func (ec *EmbeddingClient) cacheGet(ctx context.Context, text string) ([]float32, bool) {
	if !ec.useCache {
		return nil, false
	}
	raw, err := ec.rdb.Get(ctx, ec.cacheKey(text)).Bytes()
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

func (ec *EmbeddingClient) cacheSet(ctx context.Context, text string, vec []float32) {
	if !ec.useCache {
		return
	}
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := ec.rdb.Set(ctx, ec.cacheKey(text), raw, ec.cacheTTL).Err(); err != nil {
		logger.Debug("embedding cache write failed", "error", err)
	}
}
