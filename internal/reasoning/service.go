// Package reasoning is the adapter for the LLM reasoning service. All
// model calls in the system go through Complete, and all model output is
// parsed through Decode, so prompt transport and response hygiene live in
// exactly one place.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrUnavailable indicates the reasoning service could not be reached
	// or refused the call. Callers treat this as node-local and fall back.
	ErrUnavailable = errors.New("reasoning service unavailable")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyPrompt indicates an empty prompt.
	ErrEmptyPrompt = errors.New("empty prompt")
)

// Config holds configuration for the reasoning service.
type Config struct {
	// BaseURL is the OpenAI-compatible completions endpoint. Works for
	// OpenAI itself and for local inference servers.
	BaseURL string

	// Model is the completion model to use.
	Model string

	// APIKey is required for hosted providers, optional for local servers.
	APIKey string

	// Timeout bounds a single completion call.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Service provides LLM completions.
type Service struct {
	llm    llms.Model
	config Config
}

// NewService creates a reasoning service with the given configuration.
func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	apiKey := config.APIKey
	if apiKey == "" {
		// langchaingo requires a token, use placeholder for local servers
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &Service{llm: llm, config: config}, nil
}

// Complete sends a single prompt and returns the raw model output. The
// configured timeout is applied here, at the adapter boundary.
func (s *Service) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	var opts []llms.CallOption
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}
