package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/seanblong/codelore/internal/apperr"
	"github.com/seanblong/codelore/pkg/models"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const testDim = 3

// newTestStore starts a pgvector container and returns a migrated Store.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	zerolog.SetGlobalLevel(zerolog.Disabled)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "pgvector/pgvector:pg16",
		postgres.WithDatabase("codelore"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	s, err := New(ctx, url)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.Migrate(ctx, testDim); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// Second run must be a no-op.
	if err := s.Migrate(ctx, testDim); err != nil {
		t.Fatalf("Migrate twice: %v", err)
	}
	return s
}

func seedProject(t *testing.T, s *Store) (models.User, models.Project) {
	t.Helper()
	ctx := context.Background()
	u, err := s.UpsertUser(ctx, models.User{ID: "octocat", Name: "Octo Cat"})
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	p, err := s.CreateProject(ctx, u.ID, "demo", "https://github.com/acme/demo")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return u, p
}

func TestStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("users and credits", func(t *testing.T) {
		u, err := s.UpsertUser(ctx, models.User{ID: "alice", Email: "a@example.com"})
		if err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
		if u.Credits != DefaultCredits {
			t.Errorf("Expected %d credits, got %d", DefaultCredits, u.Credits)
		}
		u, err = s.UpsertUser(ctx, models.User{ID: "alice", Name: "Alice"})
		if err != nil {
			t.Fatalf("UpsertUser again: %v", err)
		}
		if u.Email != "a@example.com" || u.Name != "Alice" {
			t.Errorf("Expected merged profile, got %+v", u)
		}
		if _, err := s.GetCredits(ctx, "nobody"); !apperr.Is(err, apperr.CodeNotFound) {
			t.Errorf("Expected not found, got %v", err)
		}
	})

	t.Run("projects and membership", func(t *testing.T) {
		u, p := seedProject(t, s)
		ok, err := s.IsMember(ctx, p.ID, u.ID)
		if err != nil || !ok {
			t.Fatalf("Expected creator to be a member, got %v, %v", ok, err)
		}
		if ok, _ := s.IsMember(ctx, "not-a-uuid", u.ID); ok {
			t.Error("Expected malformed id to not be a member")
		}

		if _, err := s.UpsertUser(ctx, models.User{ID: "bob"}); err != nil {
			t.Fatal(err)
		}
		if err := s.AddMember(ctx, p.ID, "bob"); err != nil {
			t.Fatalf("AddMember: %v", err)
		}
		if err := s.AddMember(ctx, p.ID, "bob"); err != nil {
			t.Fatalf("AddMember twice: %v", err)
		}
		members, err := s.ListMembers(ctx, p.ID)
		if err != nil || len(members) != 2 {
			t.Fatalf("Expected 2 members, got %d, %v", len(members), err)
		}

		if err := s.ArchiveProject(ctx, p.ID); err != nil {
			t.Fatalf("ArchiveProject: %v", err)
		}
		if _, err := s.GetProject(ctx, p.ID); !apperr.Is(err, apperr.CodeNotFound) {
			t.Errorf("Expected archived project to be not found, got %v", err)
		}
		list, _ := s.ListProjects(ctx, u.ID)
		for _, lp := range list {
			if lp.ID == p.ID {
				t.Error("Expected archived project to be hidden")
			}
		}
		if err := s.ArchiveProject(ctx, p.ID); !apperr.Is(err, apperr.CodeNotFound) {
			t.Errorf("Expected second archive to be not found, got %v", err)
		}
	})

	t.Run("embeddings upsert and order", func(t *testing.T) {
		_, p := seedProject(t, s)
		rows := []models.SourceCodeEmbedding{
			{ProjectID: p.ID, FileName: "a.go", SourceCode: "package a", Summary: "a", Embedding: []float32{1, 0, 0}},
			{ProjectID: p.ID, FileName: "b.go", SourceCode: "package b", Summary: "b", Embedding: []float32{0, 1, 0}},
			{ProjectID: p.ID, FileName: "c.go", SourceCode: "package c", Summary: ""},
		}
		for _, r := range rows {
			if err := s.UpsertEmbedding(ctx, r); err != nil {
				t.Fatalf("UpsertEmbedding: %v", err)
			}
		}
		rows[0].SourceCode = "package a // v2"
		if err := s.UpsertEmbedding(ctx, rows[0]); err != nil {
			t.Fatalf("UpsertEmbedding again: %v", err)
		}

		n, err := s.CountEmbeddings(ctx, p.ID)
		if err != nil || n != 3 {
			t.Fatalf("Expected 3 rows after re-index, got %d, %v", n, err)
		}

		got, err := s.ListEmbeddings(ctx, p.ID, []float32{0, 1, 0}, 10)
		if err != nil {
			t.Fatalf("ListEmbeddings: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("Expected 3 candidates, got %d", len(got))
		}
		if got[0].FileName != "b.go" {
			t.Errorf("Expected nearest b.go first, got %s", got[0].FileName)
		}
		if got[2].FileName != "c.go" || got[2].Embedding != nil {
			t.Errorf("Expected NULL embedding last, got %s %v", got[2].FileName, got[2].Embedding)
		}
		for _, e := range got {
			if e.FileName == "a.go" && e.SourceCode != "package a // v2" {
				t.Errorf("Expected upserted source, got %q", e.SourceCode)
			}
		}

		one, err := s.ListEmbeddings(ctx, p.ID, []float32{0, 1, 0}, 1)
		if err != nil || len(one) != 1 || one[0].FileName != "b.go" {
			t.Errorf("Expected only b.go with limit 1, got %+v, %v", one, err)
		}
		all, err := s.ListEmbeddings(ctx, p.ID, []float32{0, 1, 0}, 0)
		if err != nil || len(all) != 3 {
			t.Errorf("Expected all 3 rows with limit 0, got %d, %v", len(all), err)
		}
	})

	t.Run("commits are unique per project", func(t *testing.T) {
		_, p := seedProject(t, s)
		now := time.Now().UTC().Truncate(time.Second)
		batch := []models.Commit{
			{Hash: "h1", Message: "one", AuthorName: "x", Date: now.Add(-time.Hour)},
			{Hash: "h2", Message: "two", AuthorName: "y", Date: now, Summary: "* two"},
		}
		first, err := s.InsertCommits(ctx, p.ID, batch)
		if err != nil || len(first) != 2 {
			t.Fatalf("Expected 2 inserted, got %d, %v", len(first), err)
		}
		again, err := s.InsertCommits(ctx, p.ID, append(batch, models.Commit{Hash: "h3", Message: "three", AuthorName: "z", Date: now}))
		if err != nil {
			t.Fatalf("InsertCommits again: %v", err)
		}
		if len(again) != 1 || again[0].Hash != "h3" {
			t.Errorf("Expected only h3 inserted, got %+v", again)
		}

		hashes, _ := s.CommitHashes(ctx, p.ID)
		if len(hashes) != 3 || !hashes["h1"] {
			t.Errorf("Unexpected hashes %v", hashes)
		}
		list, err := s.ListCommits(ctx, p.ID)
		if err != nil || len(list) != 3 {
			t.Fatalf("Expected 3 commits, got %d, %v", len(list), err)
		}
		if list[len(list)-1].Hash != "h1" {
			t.Errorf("Expected oldest last, got %s", list[len(list)-1].Hash)
		}
	})

	t.Run("questions keep references", func(t *testing.T) {
		u, p := seedProject(t, s)
		saved, err := s.SaveQuestion(ctx, models.Question{
			ProjectID: p.ID, UserID: u.ID, Question: "q?", Answer: "a.",
			FileReferences: []models.FileReference{{FileName: "a.go", Similarity: 0.9}},
		})
		if err != nil {
			t.Fatalf("SaveQuestion: %v", err)
		}
		list, err := s.ListQuestions(ctx, p.ID)
		if err != nil || len(list) != 1 {
			t.Fatalf("Expected 1 question, got %d, %v", len(list), err)
		}
		if list[0].ID != saved.ID || len(list[0].FileReferences) != 1 || list[0].FileReferences[0].FileName != "a.go" {
			t.Errorf("Unexpected question %+v", list[0])
		}
	})

	t.Run("meetings lifecycle", func(t *testing.T) {
		_, p := seedProject(t, s)
		m, err := s.CreateMeeting(ctx, p.ID, "standup.mp3", "https://files.example.com/standup.mp3")
		if err != nil {
			t.Fatalf("CreateMeeting: %v", err)
		}
		if m.Status != models.MeetingProcessing {
			t.Errorf("Expected PROCESSING, got %s", m.Status)
		}
		issues := []models.Issue{
			{Start: "00:00", End: "01:00", Gist: "g1", Headline: "Kickoff", Summary: "s1"},
			{Start: "01:00", End: "02:30", Gist: "g2", Headline: "Wrap", Summary: "s2"},
		}
		if err := s.CompleteMeeting(ctx, m.ID, "Kickoff", issues); err != nil {
			t.Fatalf("CompleteMeeting: %v", err)
		}
		got, err := s.GetMeeting(ctx, m.ID)
		if err != nil {
			t.Fatalf("GetMeeting: %v", err)
		}
		if got.Status != models.MeetingCompleted || got.Name != "Kickoff" || got.IssueCount != 2 {
			t.Errorf("Unexpected meeting %+v", got)
		}
		list, _ := s.ListMeetings(ctx, p.ID)
		if len(list) != 1 || list[0].IssueCount != 2 {
			t.Errorf("Unexpected meeting list %+v", list)
		}
		if err := s.DeleteMeeting(ctx, m.ID); err != nil {
			t.Fatalf("DeleteMeeting: %v", err)
		}
		if _, err := s.GetMeeting(ctx, m.ID); !apperr.Is(err, apperr.CodeNotFound) {
			t.Errorf("Expected deleted meeting to be not found, got %v", err)
		}
	})
}

func TestMigrateRejectsBadDimension(t *testing.T) {
	s := &Store{}
	if err := s.Migrate(context.Background(), 0); err == nil {
		t.Error("Expected error for zero dimension")
	}
}
