// Package commits keeps a project's recent commit history summarized.
package commits

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/codelore/internal/apperr"
	"github.com/seanblong/codelore/internal/github"
	"github.com/seanblong/codelore/pkg/models"
	"golang.org/x/sync/errgroup"
)

// MaxRecent is how many of the newest commits are considered per sync.
const MaxRecent = 15

const defaultConcurrency = 4

// Source lists commits and fetches their diffs.
type Source interface {
	ListCommits(ctx context.Context, repo github.Repo) ([]github.CommitInfo, error)
	CommitDiff(ctx context.Context, repoURL, hash string) (string, error)
}

// Summarizer turns a diff into a short summary.
type Summarizer interface {
	SummarizeCommitDiff(ctx context.Context, diff string) (string, error)
}

// Store is the persistence used by Syncer.
type Store interface {
	GetProject(ctx context.Context, projectID string) (models.Project, error)
	CommitHashes(ctx context.Context, projectID string) (map[string]bool, error)
	InsertCommits(ctx context.Context, projectID string, commits []models.Commit) ([]models.Commit, error)
}

type Syncer struct {
	store       Store
	source      Source
	summarizer  Summarizer
	concurrency int
}

func NewSyncer(store Store, source Source, summarizer Summarizer, concurrency int) *Syncer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Syncer{store: store, source: source, summarizer: summarizer, concurrency: concurrency}
}

// Sync summarizes and stores the project's recent commits that are not yet
// stored. It returns only the commits inserted by this call.
func (s *Syncer) Sync(ctx context.Context, projectID string) ([]models.Commit, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.RepoURL == "" {
		return nil, apperr.NotFound("project %s has no repository url", projectID)
	}
	repo, err := github.ParseRepoURL(project.RepoURL)
	if err != nil {
		return nil, err
	}

	listed, err := s.source.ListCommits(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	recent := Recent(listed, MaxRecent)

	known, err := s.store.CommitHashes(ctx, projectID)
	if err != nil {
		return nil, err
	}
	pending := make([]github.CommitInfo, 0, len(recent))
	for _, c := range recent {
		if !known[c.Hash] {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		log.Debug().Str("project", projectID).Msg("no new commits")
		return []models.Commit{}, nil
	}

	summaries := s.summarize(ctx, project.RepoURL, pending)

	rows := make([]models.Commit, len(pending))
	for i, c := range pending {
		rows[i] = models.Commit{
			ProjectID:    projectID,
			Hash:         c.Hash,
			Message:      c.Message,
			AuthorName:   c.AuthorName,
			AuthorAvatar: c.AuthorAvatar,
			Date:         c.Date,
			Summary:      summaries[i],
		}
	}
	inserted, err := s.store.InsertCommits(ctx, projectID, rows)
	if err != nil {
		return nil, err
	}
	log.Info().Str("project", projectID).Int("new", len(inserted)).Int("skipped", len(rows)-len(inserted)).Msg("commits synced")
	return inserted, nil
}

// summarize fetches and summarizes every diff. A failure leaves "" for that
// commit and never fails the sync.
func (s *Syncer) summarize(ctx context.Context, repoURL string, pending []github.CommitInfo) []string {
	out := make([]string, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, c := range pending {
		g.Go(func() error {
			diff, err := s.source.CommitDiff(gctx, repoURL, c.Hash)
			if err != nil {
				log.Warn().Err(err).Str("commit", c.Hash).Msg("diff fetch failed")
				return nil
			}
			sum, err := s.summarizer.SummarizeCommitDiff(gctx, diff)
			if err != nil {
				log.Warn().Err(err).Str("commit", c.Hash).Msg("commit summary failed")
				return nil
			}
			out[i] = sum
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Recent orders commits newest author date first and keeps at most n.
// Ties keep the provider order.
func Recent(in []github.CommitInfo, n int) []github.CommitInfo {
	out := make([]github.CommitInfo, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
