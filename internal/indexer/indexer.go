package indexer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/codelore/pkg/models"
)

const defaultConcurrency = 8

// EmbeddingStore persists indexed files.
type EmbeddingStore interface {
	UpsertEmbedding(ctx context.Context, e models.SourceCodeEmbedding) error
}

// Summarizer produces the summary and embedding of a file.
type Summarizer interface {
	SummarizeCode(ctx context.Context, fileName, source string) string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result reports the outcome of one indexing run.
type Result struct {
	Files  int `json:"files"`
	Stored int `json:"stored"`
	Failed int `json:"failed"`
}

// Indexer handles indexing of a code repository.
type Indexer struct {
	Store       EmbeddingStore
	AI          Summarizer
	Loader      RepoLoader
	Concurrency int
}

// New creates a new Indexer instance.
func New(store EmbeddingStore, ai Summarizer, loader RepoLoader, concurrency int) *Indexer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Indexer{Store: store, AI: ai, Loader: loader, Concurrency: concurrency}
}

// IndexRepository loads every file of repoURL, summarizes and embeds it and
// stores one row per file for projectID. Only a loader failure is returned;
// per-file failures are logged and counted.
func (ix *Indexer) IndexRepository(ctx context.Context, projectID, repoURL, token string) (Result, error) {
	files, err := ix.Loader.Load(ctx, repoURL, token)
	if err != nil {
		return Result{}, err
	}
	res := ix.IndexFiles(ctx, projectID, files)
	log.Info().Str("project", projectID).Str("repo", repoURL).
		Int("files", res.Files).Int("stored", res.Stored).Int("failed", res.Failed).
		Msg("indexing finished")
	return res, nil
}

// IndexFiles runs the summarize, embed and store steps over files with a
// bounded worker pool. No ordering is guaranteed.
func (ix *Indexer) IndexFiles(ctx context.Context, projectID string, files []File) Result {
	numWorkers := ix.Concurrency
	if numWorkers <= 0 {
		numWorkers = defaultConcurrency
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}
	log.Debug().Int("workers", numWorkers).Int("files", len(files)).Msg("starting concurrent indexing")

	var stored, failed atomic.Int64
	workChan := make(chan File, numWorkers*2)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for f := range workChan {
				if ix.processFile(ctx, projectID, f) {
					stored.Add(1)
				} else {
					failed.Add(1)
				}
			}
			log.Debug().Int("worker", workerID).Msg("worker finished")
		}(i)
	}

	sent := 0
send:
	for _, f := range files {
		select {
		case workChan <- f:
			sent++
		case <-ctx.Done():
			break send
		}
	}
	close(workChan)
	wg.Wait()

	return Result{
		Files:  len(files),
		Stored: int(stored.Load()),
		Failed: int(failed.Load()) + len(files) - sent,
	}
}

// processFile summarizes, embeds and stores one file. A failed summary is
// stored as "" and a failed embedding as NULL; only a failed write reports false.
func (ix *Indexer) processFile(ctx context.Context, projectID string, f File) bool {
	summary := ix.AI.SummarizeCode(ctx, f.Path, f.Content)

	var vec []float32
	if summary != "" {
		v, err := ix.AI.Embed(ctx, summary)
		if err != nil {
			log.Warn().Err(err).Str("path", f.Path).Msg("embedding failed, storing without vector")
		} else {
			vec = v
		}
	}

	row := models.SourceCodeEmbedding{
		ProjectID:  projectID,
		FileName:   f.Path,
		SourceCode: f.Content,
		Summary:    summary,
		Embedding:  vec,
	}
	if err := ix.Store.UpsertEmbedding(ctx, row); err != nil {
		log.Error().Err(err).Str("path", f.Path).Msg("upsert failed")
		return false
	}
	log.Debug().Str("path", f.Path).Bool("embedded", vec != nil).Msg("indexed file")
	return true
}
