// Package llm wraps the OpenAI chat completion API behind a single
// structured-output call.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

var (
	// ErrEmptyResponse is returned when the model produced no choices or content
	ErrEmptyResponse = errors.New("llm returned an empty response")

	// ErrTruncated is returned when the completion stopped on the token limit
	ErrTruncated = errors.New("llm response truncated")

	// ErrRefused is returned when the model refused to answer
	ErrRefused = errors.New("llm refused the request")

	// ErrMalformedResponse is returned when the content does not decode into the target type
	ErrMalformedResponse = errors.New("llm response malformed")
)

// Config holds LLM client configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// Client requests strongly typed completions
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      *slog.Logger
}

// NewClient creates a new LLM client
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Complete sends system and prompt to the model, constraining the reply to
// the JSON schema derived from out, and decodes the reply into out.
func (c *Client) Complete(ctx context.Context, system, prompt, schemaName string, out any) error {
	schema, err := jsonschema.GenerateSchemaForType(out)
	if err != nil {
		return fmt.Errorf("failed to generate response schema: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create chat completion: %w", err)
	}

	c.logger.Debug("LLM completion finished",
		slog.String("schema", schemaName),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
		slog.Duration("latency", time.Since(start)),
	)

	if len(resp.Choices) == 0 {
		return ErrEmptyResponse
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return fmt.Errorf("%w: %s", ErrRefused, choice.Message.Refusal)
	}
	if choice.FinishReason == openai.FinishReasonLength {
		return ErrTruncated
	}
	if choice.Message.Content == "" {
		return ErrEmptyResponse
	}

	if err := json.Unmarshal([]byte(choice.Message.Content), out); err != nil {
		return fmt.Errorf("%w: failed to decode structured response: %v", ErrMalformedResponse, err)
	}

	return nil
}
