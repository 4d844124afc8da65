package commits

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/seanblong/codelore/internal/apperr"
	"github.com/seanblong/codelore/internal/github"
	"github.com/seanblong/codelore/pkg/models"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

type mockSource struct {
	listFunc func(ctx context.Context, repo github.Repo) ([]github.CommitInfo, error)
	diffFunc func(ctx context.Context, repoURL, hash string) (string, error)
}

func (m *mockSource) ListCommits(ctx context.Context, repo github.Repo) ([]github.CommitInfo, error) {
	return m.listFunc(ctx, repo)
}

func (m *mockSource) CommitDiff(ctx context.Context, repoURL, hash string) (string, error) {
	if m.diffFunc != nil {
		return m.diffFunc(ctx, repoURL, hash)
	}
	return "diff of " + hash, nil
}

type mockSummarizer struct {
	fn func(ctx context.Context, diff string) (string, error)
}

func (m *mockSummarizer) SummarizeCommitDiff(ctx context.Context, diff string) (string, error) {
	if m.fn != nil {
		return m.fn(ctx, diff)
	}
	return "summary: " + diff, nil
}

// memStore enforces (project, hash) uniqueness like the database does.
type memStore struct {
	mu       sync.Mutex
	project  models.Project
	projErr  error
	commits  map[string]models.Commit
	inserted int
}

func newMemStore(repoURL string) *memStore {
	return &memStore{
		project: models.Project{ID: "p1", RepoURL: repoURL},
		commits: map[string]models.Commit{},
	}
}

func (m *memStore) GetProject(ctx context.Context, projectID string) (models.Project, error) {
	if m.projErr != nil {
		return models.Project{}, m.projErr
	}
	return m.project, nil
}

func (m *memStore) CommitHashes(ctx context.Context, projectID string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for h := range m.commits {
		out[h] = true
	}
	return out, nil
}

func (m *memStore) InsertCommits(ctx context.Context, projectID string, rows []models.Commit) ([]models.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Commit{}
	for _, c := range rows {
		if _, ok := m.commits[c.Hash]; ok {
			continue
		}
		m.commits[c.Hash] = c
		out = append(out, c)
	}
	m.inserted += len(out)
	return out, nil
}

func makeCommits(n int, base time.Time) []github.CommitInfo {
	out := make([]github.CommitInfo, n)
	for i := range out {
		// Listed oldest first to exercise sorting.
		out[i] = github.CommitInfo{
			Hash:       fmt.Sprintf("c%02d", i),
			Message:    fmt.Sprintf("commit %d", i),
			AuthorName: "dev",
			Date:       base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestRecent(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []github.CommitInfo{
		{Hash: "a", Date: base},
		{Hash: "b", Date: base.Add(time.Hour)},
		{Hash: "c", Date: base.Add(time.Hour)},
		{Hash: "d", Date: base.Add(2 * time.Hour)},
	}
	got := Recent(in, 3)
	want := []string{"d", "b", "c"}
	if len(got) != 3 {
		t.Fatalf("Expected 3, got %d", len(got))
	}
	for i, h := range want {
		if got[i].Hash != h {
			t.Errorf("position %d: expected %s, got %s", i, h, got[i].Hash)
		}
	}
	if in[0].Hash != "a" {
		t.Error("Expected input to be left untouched")
	}
}

func TestSync_FirstRunStoresNewest15(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	listed := makeCommits(20, base)
	st := newMemStore("https://github.com/acme/demo")
	src := &mockSource{listFunc: func(ctx context.Context, repo github.Repo) ([]github.CommitInfo, error) {
		if repo.Owner != "acme" || repo.Name != "demo" {
			t.Errorf("Unexpected repo %+v", repo)
		}
		return listed, nil
	}}

	s := NewSyncer(st, src, &mockSummarizer{}, 3)
	got, err := s.Sync(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(got) != MaxRecent {
		t.Fatalf("Expected %d commits, got %d", MaxRecent, len(got))
	}
	if got[0].Hash != "c19" {
		t.Errorf("Expected newest first, got %s", got[0].Hash)
	}
	for _, old := range []string{"c00", "c01", "c02", "c03", "c04"} {
		if _, ok := st.commits[old]; ok {
			t.Errorf("Expected %s to be outside the recent window", old)
		}
	}
	if got[0].Summary != "summary: diff of c19" {
		t.Errorf("Unexpected summary %q", got[0].Summary)
	}

	// Unchanged remote: nothing new.
	again, err := s.Sync(context.Background(), "p1")
	if err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("Expected no new commits, got %d", len(again))
	}
	if st.inserted != MaxRecent {
		t.Errorf("Expected %d rows total, got %d", MaxRecent, st.inserted)
	}
}

func TestSync_OnlyNewCommitsAfterPush(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	listed := makeCommits(15, base)
	st := newMemStore("https://github.com/acme/demo")
	src := &mockSource{listFunc: func(ctx context.Context, repo github.Repo) ([]github.CommitInfo, error) {
		return listed, nil
	}}
	s := NewSyncer(st, src, &mockSummarizer{}, 2)
	if _, err := s.Sync(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}

	listed = append(listed, github.CommitInfo{Hash: "new1", Date: base.Add(time.Hour)}, github.CommitInfo{Hash: "new2", Date: base.Add(2 * time.Hour)})
	got, err := s.Sync(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(got) != 2 || got[0].Hash != "new2" || got[1].Hash != "new1" {
		t.Errorf("Expected [new2 new1], got %+v", got)
	}
}

func TestSync_SummaryFailuresYieldEmpty(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st := newMemStore("https://github.com/acme/demo")
	src := &mockSource{
		listFunc: func(ctx context.Context, repo github.Repo) ([]github.CommitInfo, error) {
			return makeCommits(3, base), nil
		},
		diffFunc: func(ctx context.Context, repoURL, hash string) (string, error) {
			if hash == "c00" {
				return "", errors.New("404")
			}
			return "d-" + hash, nil
		},
	}
	sum := &mockSummarizer{fn: func(ctx context.Context, diff string) (string, error) {
		if diff == "d-c01" {
			return "", errors.New("quota")
		}
		return "ok", nil
	}}

	got, err := NewSyncer(st, src, sum, 5).Sync(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 commits, got %d", len(got))
	}
	for _, c := range got {
		want := "ok"
		if c.Hash == "c00" || c.Hash == "c01" {
			want = ""
		}
		if c.Summary != want {
			t.Errorf("%s: expected summary %q, got %q", c.Hash, want, c.Summary)
		}
	}
}

func TestSync_Errors(t *testing.T) {
	t.Run("missing project", func(t *testing.T) {
		st := newMemStore("")
		st.projErr = apperr.NotFound("project p1 not found")
		_, err := NewSyncer(st, &mockSource{}, &mockSummarizer{}, 1).Sync(context.Background(), "p1")
		if !apperr.Is(err, apperr.CodeNotFound) {
			t.Errorf("Expected not found, got %v", err)
		}
	})

	t.Run("no repository url", func(t *testing.T) {
		_, err := NewSyncer(newMemStore(""), &mockSource{}, &mockSummarizer{}, 1).Sync(context.Background(), "p1")
		if !apperr.Is(err, apperr.CodeNotFound) {
			t.Errorf("Expected not found, got %v", err)
		}
	})

	t.Run("malformed url is rejected before listing", func(t *testing.T) {
		src := &mockSource{listFunc: func(ctx context.Context, repo github.Repo) ([]github.CommitInfo, error) {
			t.Error("ListCommits must not be called")
			return nil, nil
		}}
		_, err := NewSyncer(newMemStore("not a url"), src, &mockSummarizer{}, 1).Sync(context.Background(), "p1")
		if !apperr.Is(err, apperr.CodeInvalid) {
			t.Errorf("Expected validation error, got %v", err)
		}
	})

	t.Run("listing failure propagates", func(t *testing.T) {
		src := &mockSource{listFunc: func(ctx context.Context, repo github.Repo) ([]github.CommitInfo, error) {
			return nil, apperr.New(apperr.CodeUnavailable, "rate limited")
		}}
		_, err := NewSyncer(newMemStore("https://github.com/acme/demo"), src, &mockSummarizer{}, 1).Sync(context.Background(), "p1")
		if !apperr.Is(err, apperr.CodeUnavailable) {
			t.Errorf("Expected unavailable, got %v", err)
		}
	})
}
