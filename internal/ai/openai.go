package ai

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const openAIBaseURL = "https://api.openai.com/v1"

type OpenAIClient struct {
	config  *ClientConfig
	client  *openai.Client
	baseURL string
}

func NewOpenAIClient(config *ClientConfig) *OpenAIClient {
	// Set default models if not provided
	if config.EmbedModel == "" {
		config.EmbedModel = string(openai.SmallEmbedding3)
	}
	if config.SummaryModel == "" {
		config.SummaryModel = openai.GPT4oMini
	}
	if config.AnswerModel == "" {
		config.AnswerModel = config.SummaryModel
	}
	if config.Dim == 0 {
		switch openai.EmbeddingModel(config.EmbedModel) {
		case openai.LargeEmbedding3:
			config.Dim = 3072
		default:
			// text-embedding-3-small and text-embedding-ada-002
			config.Dim = 1536
		}
	}

	transport := &http.Transport{}

	// Check for environment variable to skip TLS verification (for corporate proxies, etc.)
	if skipTLS, _ := strconv.ParseBool(os.Getenv("CODELORE_SKIP_TLS_VERIFY")); skipTLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	baseURL := openAIBaseURL
	if config.BaseURL != "" {
		baseURL = strings.TrimRight(config.BaseURL, "/")
	}
	// No client-wide timeout: answer streams may outlive it. Callers bound
	// each request through ctx.
	return newOpenAIClient(config, baseURL, &http.Client{Transport: transport})
}

func newOpenAIClient(config *ClientConfig, baseURL string, hc *http.Client) *OpenAIClient {
	cfg := openai.DefaultConfig(config.APIKey)
	cfg.BaseURL = baseURL
	if strings.HasPrefix(config.APIKey, "sk-proj-") && config.ProjectID != "" {
		scoped := *hc
		scoped.Transport = projectTransport{base: hc.Transport, project: config.ProjectID}
		hc = &scoped
	}
	cfg.HTTPClient = hc

	return &OpenAIClient{
		config:  config,
		client:  openai.NewClientWithConfig(cfg),
		baseURL: baseURL,
	}
}

// projectTransport scopes project keys to their OpenAI project.
type projectTransport struct {
	base    http.RoundTripper
	project string
}

func (t projectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.Header.Set("OpenAI-Project", t.project)
	return base.RoundTrip(req)
}

// Embed implements the embedding functionality
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.config.APIKey == "" {
		return nil, errors.New("PROVIDER_API_KEY unset")
	}

	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.config.EmbedModel),
	}
	// Only text-embedding-3 models accept a reduced dimension.
	if strings.HasPrefix(c.config.EmbedModel, "text-embedding-3") {
		req.Dimensions = c.config.Dim
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding")
	}
	return resp.Data[0].Embedding, nil
}

// Generate runs a chat completion with the summary model.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.config.APIKey == "" {
		return "", errors.New("PROVIDER_API_KEY unset")
	}

	resp, err := c.client.CreateChatCompletion(ctx, c.chatRequest(c.config.SummaryModel, prompt))
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateStream runs a streaming chat completion with the answer model and
// forwards each delta.
func (c *OpenAIClient) GenerateStream(ctx context.Context, prompt string) (*Stream, error) {
	if c.config.APIKey == "" {
		return nil, errors.New("PROVIDER_API_KEY unset")
	}

	return NewStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		req := c.chatRequest(c.config.AnswerModel, prompt)
		req.Stream = true
		stream, err := c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return fmt.Errorf("openai stream: %w", err)
		}
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("openai stream: %w", err)
			}
			for _, ch := range chunk.Choices {
				if ch.Delta.Content == "" {
					continue
				}
				if !emit(ch.Delta.Content) {
					return ctx.Err()
				}
			}
		}
	}), nil
}

func (c *OpenAIClient) Dim() int {
	return c.config.Dim
}

func (c *OpenAIClient) chatRequest(model, prompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	}
}
