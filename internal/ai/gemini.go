package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient talks to Gemini models through the genai SDK, either with an
// API key (Gemini API) or through Vertex AI.
type GeminiClient struct {
	config *ClientConfig
	client *genai.Client
}

// NewGeminiClient creates a new client for the Gemini API or Vertex AI.
func NewGeminiClient(ctx context.Context, config *ClientConfig) (*GeminiClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	cc := genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if config.Provider == ProviderVertexAI {
		cc.Backend = genai.BackendVertexAI
		if config.EmbedModel == "" {
			config.EmbedModel = "text-embedding-005"
		}
		if config.SummaryModel == "" {
			config.SummaryModel = "gemini-2.0-flash"
		}
		if config.Location == "" && strings.TrimSpace(config.APIKey) == "" {
			config.Location = "us-central1"
		}
	} else {
		if strings.TrimSpace(config.APIKey) == "" {
			return nil, errors.New("failed to create Gemini client: PROVIDER_API_KEY unset")
		}
		if config.EmbedModel == "" {
			config.EmbedModel = "text-embedding-004"
		}
		if config.SummaryModel == "" {
			config.SummaryModel = "gemini-1.5-flash"
		}
		if config.AnswerModel == "" {
			config.AnswerModel = "gemini-1.5-pro"
		}
	}
	if config.AnswerModel == "" {
		config.AnswerModel = config.SummaryModel
	}
	if config.Dim == 0 {
		config.Dim = 768
	}

	if strings.TrimSpace(config.APIKey) != "" {
		cc.APIKey = config.APIKey
	}
	if config.BaseURL != "" {
		cc.HTTPOptions.BaseURL = config.BaseURL
	}
	if cc.Backend == genai.BackendVertexAI {
		if strings.TrimSpace(config.ProjectID) != "" {
			cc.Project = config.ProjectID
		}
		if strings.TrimSpace(config.Location) != "" {
			cc.Location = config.Location
		}
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		config: config,
		client: client,
	}, nil
}

// Embed returns the embedding of text, checked against the configured
// dimension. Contexts marked with WithQuery embed as retrieval queries.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := int32(c.config.Dim)
	cfg := genai.EmbedContentConfig{
		TaskType:             "RETRIEVAL_DOCUMENT",
		OutputDimensionality: &dim,
	}
	if IsQuery(ctx) {
		cfg.TaskType = "RETRIEVAL_QUERY"
	}

	res, err := c.client.Models.EmbedContent(ctx, c.config.EmbedModel, genai.Text(text), &cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if res == nil || len(res.Embeddings) == 0 || res.Embeddings[0] == nil {
		return nil, errors.New("no embedding returned")
	}

	values := res.Embeddings[0].Values
	if len(values) != c.config.Dim {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(values), c.config.Dim)
	}
	return values, nil
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	temp := float32(0.2)
	cfg := genai.GenerateContentConfig{Temperature: &temp}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.SummaryModel, genai.Text(prompt), &cfg)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("no text returned")
	}
	return text, nil
}

// GenerateStream streams the answer model's output. Cancelling ctx aborts
// the underlying request.
func (c *GeminiClient) GenerateStream(ctx context.Context, prompt string) (*Stream, error) {
	model := c.config.AnswerModel
	return NewStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		for resp, err := range c.client.Models.GenerateContentStream(ctx, model, genai.Text(prompt), nil) {
			if err != nil {
				return fmt.Errorf("streaming generation failed: %w", err)
			}
			if text := resp.Text(); text != "" {
				if !emit(text) {
					return ctx.Err()
				}
			}
		}
		return nil
	}), nil
}

func (c *GeminiClient) Dim() int {
	return c.config.Dim
}
