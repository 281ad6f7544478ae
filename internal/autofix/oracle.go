package autofix

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/lokoweb3/skillbot/internal/resilience"
)

// oracleRateLimit caps patch-synthesis calls; auto-fix generation is a
// background concern and should never compete with interactive traffic
// for API quota.
const oracleRateLimit = rate.Limit(0.5) // one call every 2s

// Oracle is a single callable (prompt) -> response text, the spec's
// external LLM interface. No network or credential state is owned by
// the core beyond this seam.
type Oracle func(ctx context.Context, prompt string) (string, error)

// AnthropicOracle wraps the Anthropic Messages API as an Oracle, using
// a resilience.Retrier for backoff/circuit-breaking the way the
// teacher's Supervisor wraps every Messages.New call in
// retryWithBackoff (internal/ai/supervisor.go).
type AnthropicOracle struct {
	client  anthropic.Client
	model   string
	retrier *resilience.Retrier
	limiter *rate.Limiter
}

// NewAnthropicOracle constructs an AnthropicOracle. apiKey defaults to
// the ANTHROPIC_API_KEY environment variable when empty (the SDK
// resolves it internally via option.WithAPIKey's fallback).
func NewAnthropicOracle(apiKey, model string) *AnthropicOracle {
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &AnthropicOracle{
		client:  anthropic.NewClient(opts...),
		model:   model,
		retrier: resilience.NewRetrier(resilience.DefaultRetryConfig()),
		limiter: rate.NewLimiter(oracleRateLimit, 1),
	}
}

// Call implements Oracle.
func (o *AnthropicOracle) Call(ctx context.Context, prompt string) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("autofix: rate limiter: %w", err)
	}

	var responseText string
	err := o.retrier.Do(ctx, "autofix-patch-synthesis", func(attemptCtx context.Context) error {
		resp, apiErr := o.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(o.model),
			MaxTokens: 4096,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		responseText = text.String()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("autofix: oracle call failed: %w", err)
	}
	return responseText, nil
}

var (
	explanationRegex = regexp.MustCompile(`(?s)EXPLANATION:\s*(.*?)(?:` + "```" + `|$)`)
	codeFenceRegex   = regexp.MustCompile("(?s)```(?:[a-zA-Z]*)\\s*\\n?(.*?)\\n?```")
)

// SynthesisResult is what ParseOracleResponse extracts.
type SynthesisResult struct {
	Explanation string
	FixedCode   string
}

// ParseOracleResponse parses an oracle's free-text response into an
// EXPLANATION section and a fenced code block, per the spec. Absence
// of a code block is a synthesis failure.
func ParseOracleResponse(text string) (SynthesisResult, error) {
	var result SynthesisResult

	if m := explanationRegex.FindStringSubmatch(text); m != nil {
		result.Explanation = strings.TrimSpace(m[1])
	}

	m := codeFenceRegex.FindStringSubmatch(text)
	if m == nil {
		return result, fmt.Errorf("autofix: oracle response contains no fenced code block")
	}
	result.FixedCode = m[1]
	return result, nil
}
