package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// mockClient implements Client with overridable function fields.
type mockClient struct {
	embedFunc    func(ctx context.Context, text string) ([]float32, error)
	generateFunc func(ctx context.Context, prompt string) (string, error)
	streamFunc   func(ctx context.Context, prompt string) (*Stream, error)
	dim          int
}

func (m *mockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedFunc != nil {
		return m.embedFunc(ctx, text)
	}
	return []float32{1, 0, 0}, nil
}

func (m *mockClient) Generate(ctx context.Context, prompt string) (string, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, prompt)
	}
	return "summary", nil
}

func (m *mockClient) GenerateStream(ctx context.Context, prompt string) (*Stream, error) {
	if m.streamFunc != nil {
		return m.streamFunc(ctx, prompt)
	}
	return NewStubClient(4).GenerateStream(ctx, prompt)
}

func (m *mockClient) Dim() int { return m.dim }

func TestService_SummarizeCodeTruncates(t *testing.T) {
	var prompt string
	svc := NewService(&mockClient{generateFunc: func(ctx context.Context, p string) (string, error) {
		prompt = p
		return "  reads files  ", nil
	}})

	source := strings.Repeat("a", MaxCodeSummaryInput) + strings.Repeat("Z", 500)
	got := svc.SummarizeCode(context.Background(), "big.go", source)
	if got != "reads files" {
		t.Errorf("Expected trimmed summary, got %q", got)
	}
	if strings.Contains(prompt, "Z") {
		t.Error("Expected characters past the cap to be dropped from the prompt")
	}
	if !strings.Contains(prompt, strings.Repeat("a", MaxCodeSummaryInput)) {
		t.Error("Expected the first characters of the source in the prompt")
	}
	if !strings.Contains(prompt, "big.go") {
		t.Error("Expected file name in the prompt")
	}
}

func TestService_SummarizeCodeFailureYieldsEmpty(t *testing.T) {
	svc := NewService(&mockClient{generateFunc: func(ctx context.Context, p string) (string, error) {
		return "", errors.New("provider down")
	}})
	if got := svc.SummarizeCode(context.Background(), "a.go", "package a"); got != "" {
		t.Errorf("Expected empty summary on failure, got %q", got)
	}
}

func TestService_SummarizeCommitDiff(t *testing.T) {
	var prompt string
	svc := NewService(&mockClient{generateFunc: func(ctx context.Context, p string) (string, error) {
		prompt = p
		return "* changed store.go", nil
	}})

	got, err := svc.SummarizeCommitDiff(context.Background(), "+added line")
	if err != nil {
		t.Fatalf("SummarizeCommitDiff failed: %v", err)
	}
	if got != "* changed store.go" {
		t.Errorf("Unexpected summary %q", got)
	}
	if !strings.Contains(prompt, "+added line") {
		t.Error("Expected diff in the prompt")
	}

	failing := NewService(&mockClient{generateFunc: func(ctx context.Context, p string) (string, error) {
		return "", errors.New("quota")
	}})
	if _, err := failing.SummarizeCommitDiff(context.Background(), "d"); err == nil || !strings.Contains(err.Error(), "summarize diff") {
		t.Errorf("Expected wrapped error, got %v", err)
	}
}

func TestService_Embed(t *testing.T) {
	svc := NewService(&mockClient{embedFunc: func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("bad input")
	}})
	if _, err := svc.Embed(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "embed: bad input") {
		t.Errorf("Expected wrapped embed error, got %v", err)
	}

	ok := NewService(&mockClient{dim: 3})
	vec, err := ok.Embed(context.Background(), "x")
	if err != nil || len(vec) != 3 {
		t.Errorf("Expected 3-dim vector, got %v, %v", vec, err)
	}
	if ok.Dim() != 3 {
		t.Errorf("Expected Dim 3, got %d", ok.Dim())
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
