// Package llm wraps the answer-generation model behind a small client. Any
// OpenAI-compatible chat API works, including Ollama's /v1 endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Config contains LLM client configuration.
type Config struct {
	Model    string
	Endpoint string // OpenAI-compatible base URL
	APIKey   string
	Timeout  time.Duration
}

// Client generates answers from a chat model.
type Client struct {
	client *openai.Client
	model  string
}

// New creates a new LLM client.
func New(cfg Config) *Client {
	apiKey := cfg.APIKey
	if apiKey == "" {
		// go-openai rejects requests with an empty key even when the
		// server (Ollama) ignores authentication.
		apiKey = "unused"
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate produces a complete answer for the prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Stream produces an answer incrementally, calling fn with each content
// delta as it arrives. fn returning an error aborts the stream.
func (c *Client) Stream(ctx context.Context, prompt string, fn func(delta string) error) error {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return fmt.Errorf("chat stream failed: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("chat stream receive failed: %w", err)
		}

		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			if err := fn(delta); err != nil {
				return err
			}
		}
	}
}

// CheckConnection verifies the endpoint is reachable by listing models.
func (c *Client) CheckConnection(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("llm endpoint not reachable: %w", err)
	}
	return nil
}

// ListModels returns the model names available at the endpoint.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.ID)
	}
	return names, nil
}
