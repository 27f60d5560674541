package ai

import (
	"context"
	"errors"
	"io"
	"testing"

	"google.golang.org/api/googleapi"

	"knowledge-base-platform/internal/config"
	"knowledge-base-platform/models"
	"knowledge-base-platform/services"
)

func scriptedSource(chunks []string, final error) func() (string, error) {
	i := 0
	return func() (string, error) {
		if i < len(chunks) {
			ch := chunks[i]
			i++
			return ch, nil
		}
		if final != nil {
			return "", final
		}
		return "", io.EOF
	}
}

func TestForwardStreamConcatenates(t *testing.T) {
	var got []string
	text, err := forwardStream(scriptedSource([]string{"The ", "answer ", "is 42."}, nil), func(s string) {
		got = append(got, s)
	})
	if err != nil {
		t.Fatalf("forwardStream: %v", err)
	}
	if text != "The answer is 42." {
		t.Fatalf("concatenation mismatch: %q", text)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 forwarded chunks, got %d", len(got))
	}
}

func TestForwardStreamSkipsEmptyIncrements(t *testing.T) {
	var got []string
	text, err := forwardStream(scriptedSource([]string{"a", "", "b", ""}, nil), func(s string) {
		got = append(got, s)
	})
	if err != nil {
		t.Fatalf("forwardStream: %v", err)
	}
	if text != "ab" {
		t.Fatalf("want %q, got %q", "ab", text)
	}
	if len(got) != 2 {
		t.Fatalf("empty increments must not be forwarded, got %d chunks", len(got))
	}
}

func TestForwardStreamPartialOnError(t *testing.T) {
	upstream := errors.New("stream reset")
	text, err := forwardStream(scriptedSource([]string{"partial "}, upstream), nil)
	if !errors.Is(err, upstream) {
		t.Fatalf("want upstream error, got %v", err)
	}
	if text != "partial " {
		t.Fatalf("flushed text must be returned with the error, got %q", text)
	}
}

func TestForwardStreamEmptyStream(t *testing.T) {
	text, err := forwardStream(scriptedSource(nil, nil), nil)
	if err != nil || text != "" {
		t.Fatalf("empty stream: got %q, %v", text, err)
	}
}

// An open breaker must stop a streaming call before any chunk is
// produced, the same way it stops blocking calls.
func TestAnswerStreamFastFailsWhenBreakerOpen(t *testing.T) {
	cfg := &config.Config{
		GeminiAPIKey:    "test-key",
		GenerationModel: "gemini-2.0-flash",
		GeminiTier:      "tier1",
	}
	g, err := NewGeminiGenerator(cfg, nil)
	if err != nil {
		t.Fatalf("NewGeminiGenerator: %v", err)
	}
	defer g.Close()

	boom := errors.New("upstream down")
	for i := 0; i < 5; i++ {
		g.breaker.Execute(func() (interface{}, error) { return nil, boom })
	}

	var chunks int
	_, err = g.AnswerStream(context.Background(), models.RAGContext{Query: "hello"}, func(string) {
		chunks++
	})
	if !errors.Is(err, services.ErrGeneratorUnavailable) {
		t.Fatalf("open breaker must surface ErrGeneratorUnavailable, got %v", err)
	}
	if chunks != 0 {
		t.Fatalf("no chunk may be emitted on fast-fail, got %d", chunks)
	}
}

func TestClassifyErrorAuth(t *testing.T) {
	for _, code := range []int{401, 403} {
		err := classifyError("generate", &googleapi.Error{Code: code, Message: "denied"})
		if !errors.Is(err, services.ErrAuth) {
			t.Fatalf("code %d must classify as auth, got %v", code, err)
		}
		if services.IsRetryable(err) {
			t.Fatalf("auth errors must not be retryable")
		}
	}
}

func TestClassifyErrorAuthByMessage(t *testing.T) {
	err := classifyError("embed", errors.New("googleapi: Error 400: API key not valid. Please pass a valid API key."))
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("API key message must classify as auth, got %v", err)
	}
}

func TestClassifyErrorTransient(t *testing.T) {
	err := classifyError("generate", &googleapi.Error{Code: 503, Message: "overloaded"})
	if errors.Is(err, services.ErrAuth) {
		t.Fatalf("503 is not an auth failure")
	}
	if !services.IsRetryable(err) {
		t.Fatalf("503 must stay retryable")
	}
}

func TestPromptForModes(t *testing.T) {
	rc := models.RAGContext{
		Query:    "q",
		Passages: []models.SearchResult{{ID: "a_0", Title: "A"}},
		Prompt:   "grounded prompt",
	}
	if prompt, rag := promptFor(rc); !rag || prompt != "grounded prompt" {
		t.Fatalf("passages present: want RAG mode with assembled prompt, got rag=%v %q", rag, prompt)
	}

	plain := models.RAGContext{Query: "just the question"}
	if prompt, rag := promptFor(plain); rag || prompt != "just the question" {
		t.Fatalf("no passages: want plain mode with the raw query, got rag=%v %q", rag, prompt)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := estimateTokens("", ""); got != 1 {
		t.Fatalf("floor must be 1 token, got %d", got)
	}
	if got := estimateTokens("12345678", "12345678"); got != 4 {
		t.Fatalf("want 4 tokens for 16 chars, got %d", got)
	}
}

func TestRateLimitTiers(t *testing.T) {
	free := getRateLimits("free")
	tier1 := getRateLimits("tier1")
	if free.RPM >= tier1.RPM {
		t.Fatalf("paid tier must allow more requests: free=%d tier1=%d", free.RPM, tier1.RPM)
	}
	if unknown := getRateLimits("mystery"); unknown != free {
		t.Fatalf("unknown tier must fall back to free limits")
	}
}
