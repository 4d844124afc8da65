package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// MaxCodeSummaryInput bounds the characters of source submitted for a file summary.
const MaxCodeSummaryInput = 10_000

const codeSummaryPrompt = `You are a senior software engineer who specialises in onboarding new developers onto projects.
You are explaining the purpose of the file %s.
Here is the code:
---
%s
---
Give a summary no more than 100 words of the code above.`

const commitSummaryPrompt = `You are an expert programmer summarising a git diff.
Lines starting with "+" were added, lines starting with "-" were removed, other lines are context.
Write the summary as a short list of bullet points, one per notable change, mentioning the files touched.
Do not repeat the diff.

%s`

// Service is the summarize/embed adapter shared by indexing, commit sync
// and answering. It adds no retries or rate limiting.
type Service struct {
	client Client
}

func NewService(client Client) *Service {
	return &Service{client: client}
}

// SummarizeCode summarizes a source file. The source is cut to its first
// MaxCodeSummaryInput characters. Provider failures yield "".
func (s *Service) SummarizeCode(ctx context.Context, fileName, source string) string {
	code := truncateRunes(source, MaxCodeSummaryInput)
	out, err := s.client.Generate(ctx, fmt.Sprintf(codeSummaryPrompt, fileName, code))
	if err != nil {
		log.Warn().Err(err).Str("file", fileName).Msg("code summary failed")
		return ""
	}
	return strings.TrimSpace(out)
}

// SummarizeCommitDiff summarizes a unified diff. Errors propagate.
func (s *Service) SummarizeCommitDiff(ctx context.Context, diff string) (string, error) {
	out, err := s.client.Generate(ctx, fmt.Sprintf(commitSummaryPrompt, diff))
	if err != nil {
		return "", fmt.Errorf("summarize diff: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Embed returns the provider embedding of text. Errors propagate.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.client.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vec, nil
}

// GenerateStream streams an answer for prompt.
func (s *Service) GenerateStream(ctx context.Context, prompt string) (*Stream, error) {
	return s.client.GenerateStream(ctx, prompt)
}

func (s *Service) Dim() int {
	return s.client.Dim()
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
