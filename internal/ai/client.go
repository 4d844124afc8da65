package ai

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
)

// Client is the contract every generative-AI provider implements.
// Generate uses the summary model; GenerateStream uses the answer model.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string) (*Stream, error)
	Dim() int
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderGemini   Provider = "gemini"
	ProviderVertexAI Provider = "vertexai"
	ProviderOpenAI   Provider = "openai"
	ProviderStub     Provider = "stub"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey       string
	EmbedModel   string
	SummaryModel string
	AnswerModel  string
	Dim          int
	ProjectID    string
	Provider     Provider
	Location     string
	// BaseURL overrides the provider endpoint, e.g. for a proxy.
	BaseURL string
}

const defaultStubDim = 64

type queryKey struct{}

// WithQuery marks embeddings requested with ctx as search queries rather
// than indexed documents. Providers with asymmetric embeddings use it to
// pick the task type.
func WithQuery(ctx context.Context) context.Context {
	return context.WithValue(ctx, queryKey{}, true)
}

// IsQuery reports whether ctx was marked by WithQuery.
func IsQuery(ctx context.Context) bool {
	q, _ := ctx.Value(queryKey{}).(bool)
	return q
}

// NewClient creates a new AI client based on configuration
func NewClient(ctx context.Context, config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch Provider(strings.ToLower(string(config.Provider))) {
	case ProviderGemini, "google":
		return NewGeminiClient(ctx, config)
	case ProviderVertexAI:
		config.Provider = ProviderVertexAI
		return NewGeminiClient(ctx, config)
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderStub, "":
		if config.Dim == 0 {
			config.Dim = defaultStubDim
		}
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubClient is an offline Client. Embeddings hash words into buckets so
// related texts still land near each other.
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	return &StubClient{dim: dim}
}

func (s *StubClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, s.dim)
	if s.dim == 0 {
		return vec, nil
	}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(s.dim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec, nil
}

// Generate returns the first descriptive comment line of the prompt's code,
// or a generic description.
func (s *StubClient) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lines := strings.Split(prompt, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			if len(line) > 10 {
				return line, nil
			}
		}
	}
	return "Summary of " + firstLine(prompt), nil
}

func (s *StubClient) GenerateStream(ctx context.Context, prompt string) (*Stream, error) {
	answer := "This answer was produced by the stub provider; configure a real provider to get grounded answers."
	return NewStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		for _, w := range strings.SplitAfter(answer, " ") {
			if !emit(w) {
				return ctx.Err()
			}
		}
		return nil
	}), nil
}

// Dim returns the embedding dimension
func (s *StubClient) Dim() int {
	return s.dim
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
