package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"knowledge-base-platform/internal/config"
	"knowledge-base-platform/internal/logger"
	"knowledge-base-platform/internal/telemetry"
	"knowledge-base-platform/models"
	"knowledge-base-platform/services"
)

// GeminiGenerator drives chat-completion calls against Gemini with a
// circuit breaker and request-rate limiting. One shared instance per
// process; Close releases the connection.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	metrics     *telemetry.Metrics
	callLimit   time.Duration
}

var _ services.Generator = (*GeminiGenerator)(nil)

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// NewGeminiGenerator creates the shared generation client. metrics may
// be nil.
func NewGeminiGenerator(cfg *config.Config, metrics *telemetry.Metrics) (*GeminiGenerator, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(cfg.GeminiTier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			if metrics != nil {
				metrics.RecordCircuitBreakerState(name, to.String())
			}
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10)

	return &GeminiGenerator{
		client:      client,
		model:       cfg.GenerationModel,
		breaker:     breaker,
		rateLimiter: rateLimiter,
		metrics:     metrics,
		callLimit:   2 * time.Minute,
	}, nil
}

// promptFor picks the generation prompt for a retrieval context. An
// empty passage set means plain mode: answer from the query alone
// rather than failing the request.
func promptFor(rc models.RAGContext) (prompt string, ragMode bool) {
	if len(rc.Passages) > 0 && rc.Prompt != "" {
		return rc.Prompt, true
	}
	return rc.Query, false
}

// Answer runs one blocking generation call. A RAG-mode transient
// failure degrades to plain mode before giving up; auth failures and a
// tripped breaker surface as ErrGeneratorUnavailable.
func (g *GeminiGenerator) Answer(ctx context.Context, rc models.RAGContext) (services.Answer, error) {
	tracer := otel.Tracer("gemini-generator")
	ctx, span := tracer.Start(ctx, "gemini.generate")
	defer span.End()

	prompt, ragMode := promptFor(rc)
	span.SetAttributes(
		attribute.Bool("gemini.rag_mode", ragMode),
		attribute.Int("gemini.context_passages", len(rc.Passages)),
		attribute.String("gemini.model", g.model),
	)

	answer, err := g.generate(ctx, prompt)
	if err != nil && ragMode && services.IsRetryable(err) {
		// Deliberate fallback branch: retrieval context failed the
		// model, retry once without it.
		logger.Warn("RAG-mode generation failed, degrading to plain mode", "error", err)
		span.SetAttributes(attribute.Bool("gemini.degraded", true))
		answer, err = g.generate(ctx, rc.Query)
	}
	if err != nil {
		span.SetAttributes(attribute.String("gemini.error", err.Error()))
		return services.Answer{}, err
	}

	if g.metrics != nil {
		g.metrics.RecordTokensUsed(int64(answer.TokensUsed), g.model)
	}
	return answer, nil
}

func (g *GeminiGenerator) generate(ctx context.Context, prompt string) (services.Answer, error) {
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return services.Answer{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.callLimit)
	defer cancel()

	result, err := g.breaker.Execute(func() (interface{}, error) {
		model := g.generativeModel()
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, classifyError("generate", err)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return services.Answer{}, fmt.Errorf("%w: circuit breaker open", services.ErrGeneratorUnavailable)
		}
		if errors.Is(err, services.ErrAuth) {
			return services.Answer{}, err
		}
		return services.Answer{}, fmt.Errorf("%w: %v", services.ErrGeneratorUnavailable, err)
	}

	resp := result.(*genai.GenerateContentResponse)
	return services.Answer{
		Text:       responseText(resp),
		Model:      g.model,
		TokensUsed: extractTokenUsage(resp),
	}, nil
}

// AnswerStream streams one generation call, forwarding each upstream
// chunk to onChunk as soon as it arrives. The returned answer is the
// exact concatenation of the delivered chunks; a mid-stream failure
// returns whatever was already flushed together with the error.
func (g *GeminiGenerator) AnswerStream(ctx context.Context, rc models.RAGContext, onChunk func(text string)) (services.Answer, error) {
	tracer := otel.Tracer("gemini-generator")
	ctx, span := tracer.Start(ctx, "gemini.generate_stream")
	defer span.End()

	prompt, ragMode := promptFor(rc)
	span.SetAttributes(
		attribute.Bool("gemini.rag_mode", ragMode),
		attribute.String("gemini.model", g.model),
	)

	if err := g.rateLimiter.Wait(ctx); err != nil {
		return services.Answer{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.callLimit)
	defer cancel()

	model := g.generativeModel()
	iter := model.GenerateContentStream(ctx, genai.Text(prompt))

	// The first upstream read doubles as stream establishment and runs
	// through the breaker: an open breaker fast-fails before any chunk
	// is produced, and establishment failures count toward tripping it.
	var finished bool
	first, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := iter.Next()
		if err == iterator.Done {
			finished = true
			return (*genai.GenerateContentResponse)(nil), nil
		}
		if err != nil {
			return nil, classifyError("generate stream", err)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: circuit breaker open", services.ErrGeneratorUnavailable)
		}
		span.SetAttributes(attribute.String("gemini.error", err.Error()))
		return services.Answer{Model: g.model}, err
	}
	pending := first.(*genai.GenerateContentResponse)

	var tokens int
	collect := func(resp *genai.GenerateContentResponse) string {
		if resp.UsageMetadata != nil {
			tokens = int(resp.UsageMetadata.TotalTokenCount)
		}
		return responseText(resp)
	}
	text, err := forwardStream(func() (string, error) {
		if finished {
			return "", io.EOF
		}
		if pending != nil {
			resp := pending
			pending = nil
			return collect(resp), nil
		}
		resp, err := iter.Next()
		if err == iterator.Done {
			return "", io.EOF
		}
		if err != nil {
			return "", classifyError("generate stream", err)
		}
		return collect(resp), nil
	}, onChunk)

	answer := services.Answer{Text: text, Model: g.model, TokensUsed: tokens}
	if answer.TokensUsed == 0 {
		answer.TokensUsed = estimateTokens(prompt, text)
	}
	if err != nil {
		span.SetAttributes(attribute.String("gemini.error", err.Error()))
		// Chunks already flushed to the caller stand; only the error
		// is appended to the stream.
		return answer, err
	}

	if g.metrics != nil {
		g.metrics.RecordTokensUsed(int64(answer.TokensUsed), g.model)
	}
	return answer, nil
}

func (g *GeminiGenerator) generativeModel() *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.7)
	model.SetMaxOutputTokens(2048)
	return model
}

// Close the client
func (g *GeminiGenerator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// forwardStream pumps an incremental text source into onChunk and
// returns the concatenation. next signals completion with io.EOF.
// Empty increments are not forwarded.
func forwardStream(next func() (string, error), onChunk func(string)) (string, error) {
	var b strings.Builder
	for {
		text, err := next()
		if text != "" {
			if onChunk != nil {
				onChunk(text)
			}
			b.WriteString(text)
		}
		if err != nil {
			if err == io.EOF {
				return b.String(), nil
			}
			return b.String(), err
		}
	}
}

// responseText flattens the text parts of a generation response.
func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}

// Extract token usage from Gemini response
func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}

	// Fallback: ~4 characters per token for Gemini
	estimated := len(responseText(resp)) / 4
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}

func estimateTokens(prompt, answer string) int {
	estimated := (len(prompt) + len(answer)) / 4
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}
