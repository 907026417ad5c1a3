// Package openai wraps the embeddings and chat completion endpoints used by
// the similarity index and the deck advisor.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	DefaultEmbeddingModel  = "text-embedding-3-small"
	DefaultCompletionModel = "gpt-4o-mini"
	EmbeddingDimensions    = 1536
)

var ErrNoAPIKey = errors.New("openai: api key not configured")

type Config struct {
	APIKey          string
	BaseURL         string // optional, for compatible gateways
	EmbeddingModel  string
	CompletionModel string
	Dimensions      int // expected embedding length, EmbeddingDimensions when zero
}

type Client struct {
	api             *goopenai.Client
	embeddingModel  string
	completionModel string
	dimensions      int
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	c := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.CompletionModel == "" {
		cfg.CompletionModel = DefaultCompletionModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = EmbeddingDimensions
	}
	return &Client{
		api:             goopenai.NewClientWithConfig(c),
		embeddingModel:  cfg.EmbeddingModel,
		completionModel: cfg.CompletionModel,
		dimensions:      cfg.Dimensions,
	}, nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: goopenai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("create embedding: empty response")
	}
	if n := len(resp.Data[0].Embedding); n != c.dimensions {
		return nil, fmt.Errorf("create embedding: got %d dimensions, want %d", n, c.dimensions)
	}
	return resp.Data[0].Embedding, nil
}

// Complete runs one system+user chat turn and returns the first choice's text,
// which may be empty.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     c.completionModel,
		MaxTokens: maxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
