package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/codelore/internal/ai"
	"github.com/seanblong/codelore/internal/apperr"
	"github.com/seanblong/codelore/pkg/models"
)

// CandidateStore loads the indexed files of a project, nearest first.
type CandidateStore interface {
	ListEmbeddings(ctx context.Context, projectID string, query []float32, limit int) ([]models.SourceCodeEmbedding, error)
}

// Generator embeds questions and streams answers.
type Generator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GenerateStream(ctx context.Context, prompt string) (*ai.Stream, error)
}

// Options tunes retrieval.
type Options struct {
	TopK           int
	MinSimilarity  float64
	CandidateLimit int
}

type Service struct {
	AI    Generator
	Store CandidateStore
	Opts  Options
}

// NewService creates a new answering service with the provided AI adapter and store
func NewService(gen Generator, store CandidateStore, opts Options) *Service {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &Service{AI: gen, Store: store, Opts: opts}
}

// Answer is a streamed response and the files it was grounded on.
type Answer struct {
	Stream     *ai.Stream
	References []models.FileReference
}

const answerPrompt = `You are a helpful assistant that helps developers understand their codebase.
Answer the following question based on the context provided:

Context:
%s

Question: %s

Provide a detailed and accurate response based on the context.`

// Ask retrieves the files most similar to question and streams an answer
// grounded on them. Retrieval failures are returned before any streaming.
func (s *Service) Ask(ctx context.Context, projectID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperr.Invalid("question is required")
	}

	qvec, err := s.AI.Embed(ai.WithQuery(ctx), question)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnavailable, "question could not be embedded")
	}

	candidates, err := s.Store.ListEmbeddings(ctx, projectID, qvec, s.Opts.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	ranked := Rank(qvec, candidates, s.Opts.TopK, s.Opts.MinSimilarity)
	log.Debug().Str("project", projectID).Int("candidates", len(candidates)).Int("context", len(ranked)).Msg("retrieved context")

	refs := make([]models.FileReference, len(ranked))
	for i, r := range ranked {
		refs[i] = models.FileReference{
			FileName:   r.FileName,
			SourceCode: r.SourceCode,
			Summary:    r.Summary,
			Similarity: r.Similarity,
		}
	}

	stream, err := s.AI.GenerateStream(ctx, BuildPrompt(question, refs))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnavailable, "answer could not be generated")
	}
	return &Answer{Stream: stream, References: refs}, nil
}

// BuildPrompt lays out refs in order as answer context for question.
func BuildPrompt(question string, refs []models.FileReference) string {
	var b strings.Builder
	for _, r := range refs {
		fmt.Fprintf(&b, "source: %s\ncode content: %s\nsummary of file: %s\n\n", r.FileName, r.SourceCode, r.Summary)
	}
	return fmt.Sprintf(answerPrompt, b.String(), question)
}
