package ai

import (
	"context"
	"strings"
	"sync"
	"testing"
)

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		config      *ClientConfig
		expectError bool
		errorMsg    string
		checkType   func(t *testing.T, c Client)
	}{
		{
			name:        "nil config",
			config:      nil,
			expectError: true,
			errorMsg:    "client config is required",
		},
		{
			name:   "stub provider",
			config: &ClientConfig{Provider: ProviderStub, Dim: 16},
			checkType: func(t *testing.T, c Client) {
				if _, ok := c.(*StubClient); !ok {
					t.Errorf("Expected *StubClient, got %T", c)
				}
				if c.Dim() != 16 {
					t.Errorf("Expected Dim 16, got %d", c.Dim())
				}
			},
		},
		{
			name:   "stub provider defaults dimension",
			config: &ClientConfig{Provider: ProviderStub},
			checkType: func(t *testing.T, c Client) {
				if c.Dim() != defaultStubDim {
					t.Errorf("Expected Dim %d, got %d", defaultStubDim, c.Dim())
				}
			},
		},
		{
			name:   "openai provider",
			config: &ClientConfig{Provider: ProviderOpenAI, APIKey: "k"},
			checkType: func(t *testing.T, c Client) {
				if _, ok := c.(*OpenAIClient); !ok {
					t.Errorf("Expected *OpenAIClient, got %T", c)
				}
			},
		},
		{
			name:   "gemini provider with key",
			config: &ClientConfig{Provider: ProviderGemini, APIKey: "k"},
			checkType: func(t *testing.T, c Client) {
				if _, ok := c.(*GeminiClient); !ok {
					t.Errorf("Expected *GeminiClient, got %T", c)
				}
			},
		},
		{
			name:        "gemini provider without key",
			config:      &ClientConfig{Provider: ProviderGemini},
			expectError: true,
			errorMsg:    "PROVIDER_API_KEY unset",
		},
		{
			name:        "unsupported provider",
			config:      &ClientConfig{Provider: "nope"},
			expectError: true,
			errorMsg:    "unsupported provider: nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(ctx, tt.config)
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			tt.checkType(t, c)
		})
	}
}

func TestStubClient_Embed(t *testing.T) {
	c := NewStubClient(32)
	ctx := context.Background()

	a, err := c.Embed(ctx, "parse the config file")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(a) != 32 {
		t.Fatalf("Expected 32 dimensions, got %d", len(a))
	}

	b, _ := c.Embed(ctx, "parse the config file")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("Expected deterministic embeddings for identical input")
		}
	}

	empty, _ := c.Embed(ctx, "")
	for _, v := range empty {
		if v != 0 {
			t.Fatal("Expected zero vector for empty text")
		}
	}
}

func TestStubClient_EmbedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewStubClient(4).Embed(ctx, "x"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestStubClient_Generate(t *testing.T) {
	c := NewStubClient(4)
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"comment line wins", "file main.go\n// Package main wires the server\nfunc main() {}", "// Package main wires the server"},
		{"short comment ignored", "header\n// short\ncode", "Summary of header"},
		{"no comments", "plain text", "Summary of plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Generate(context.Background(), tt.prompt)
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestStubClient_GenerateStream(t *testing.T) {
	s, err := NewStubClient(4).GenerateStream(context.Background(), "question")
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}
	text, err := Collect(s)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if !strings.HasPrefix(text, "This answer was produced by the stub provider") {
		t.Errorf("Unexpected stream text %q", text)
	}
}

func TestStubClientConcurrency(t *testing.T) {
	c := NewStubClient(8)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Embed(context.Background(), "concurrent text"); err != nil {
				t.Errorf("Embed failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestClientInterfaceCompliance(t *testing.T) {
	var _ Client = (*StubClient)(nil)
	var _ Client = (*OpenAIClient)(nil)
	var _ Client = (*GeminiClient)(nil)
}
