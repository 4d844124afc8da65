package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/seanblong/codelore/pkg/models"
)

// CommitHashes returns the set of commit hashes already stored for a project.
func (s *Store) CommitHashes(ctx context.Context, projectID string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT commit_hash FROM commits WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list commit hashes: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out[h] = true
	}
	return out, rows.Err()
}

// InsertCommits stores commits in one statement. Hashes already present for
// the project are skipped by the unique constraint; the returned slice holds
// only the commits that were inserted, in input order.
func (s *Store) InsertCommits(ctx context.Context, projectID string, commits []models.Commit) ([]models.Commit, error) {
	if len(commits) == 0 {
		return []models.Commit{}, nil
	}

	n := len(commits)
	ids := make([]string, n)
	hashes := make([]string, n)
	messages := make([]string, n)
	authors := make([]string, n)
	avatars := make([]string, n)
	dates := make([]time.Time, n)
	summaries := make([]string, n)
	for i, c := range commits {
		ids[i] = uuid.NewString()
		hashes[i] = c.Hash
		messages[i] = c.Message
		authors[i] = c.AuthorName
		avatars[i] = c.AuthorAvatar
		dates[i] = c.Date
		summaries[i] = c.Summary
	}

	const q = `
		INSERT INTO commits (id, project_id, commit_hash, commit_message, commit_author_name,
		                     commit_author_avatar, commit_date, summary)
		SELECT t.id, $1, t.hash, t.message, t.author, t.avatar, t.date, t.summary
		FROM unnest($2::uuid[], $3::text[], $4::text[], $5::text[], $6::text[], $7::timestamptz[], $8::text[])
		     AS t(id, hash, message, author, avatar, date, summary)
		ON CONFLICT (project_id, commit_hash) DO NOTHING
		RETURNING commit_hash, id, created_at`
	rows, err := s.pool.Query(ctx, q, projectID, ids, hashes, messages, authors, avatars, dates, summaries)
	if err != nil {
		return nil, fmt.Errorf("insert commits: %w", err)
	}
	defer rows.Close()

	type inserted struct {
		id      string
		created time.Time
	}
	got := map[string]inserted{}
	for rows.Next() {
		var h string
		var in inserted
		if err := rows.Scan(&h, &in.id, &in.created); err != nil {
			return nil, err
		}
		got[h] = in
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("insert commits: %w", err)
	}

	out := make([]models.Commit, 0, len(got))
	for _, c := range commits {
		in, ok := got[c.Hash]
		if !ok {
			continue
		}
		c.ID = in.id
		c.ProjectID = projectID
		c.CreatedAt = in.created
		out = append(out, c)
		delete(got, c.Hash)
	}
	return out, nil
}

// ListCommits returns a project's commits, newest commit date first.
func (s *Store) ListCommits(ctx context.Context, projectID string) ([]models.Commit, error) {
	const q = `
		SELECT id, project_id, commit_hash, commit_message, commit_author_name,
		       commit_author_avatar, commit_date, summary, created_at
		FROM commits
		WHERE project_id = $1
		ORDER BY commit_date DESC`
	rows, err := s.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer rows.Close()

	out := []models.Commit{}
	for rows.Next() {
		var c models.Commit
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Hash, &c.Message, &c.AuthorName,
			&c.AuthorAvatar, &c.Date, &c.Summary, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
