package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/seanblong/codelore/internal/apperr"
	"github.com/seanblong/codelore/pkg/models"
)

// DefaultCredits is the balance granted on first sign-in.
const DefaultCredits = 150

// UpsertUser creates the user or refreshes its profile fields. Credits are
// never reset on an existing row.
func (s *Store) UpsertUser(ctx context.Context, u models.User) (models.User, error) {
	const q = `
		INSERT INTO users (id, email, name, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			email      = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
			name       = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
			avatar_url = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), users.avatar_url)
		RETURNING id, email, name, avatar_url, credits, created_at`
	var out models.User
	err := s.pool.QueryRow(ctx, q, u.ID, u.Email, u.Name, u.AvatarURL).
		Scan(&out.ID, &out.Email, &out.Name, &out.AvatarURL, &out.Credits, &out.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return out, nil
}

// GetCredits returns the credit balance of userID.
func (s *Store) GetCredits(ctx context.Context, userID string) (int, error) {
	var credits int
	err := s.pool.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1`, userID).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("user %s not found", userID)
	}
	if err != nil {
		return 0, fmt.Errorf("get credits: %w", err)
	}
	return credits, nil
}

// CreateProject inserts a project and makes userID its first member.
func (s *Store) CreateProject(ctx context.Context, userID, name, repoURL string) (models.Project, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Project{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p := models.Project{ID: uuid.NewString(), Name: name, RepoURL: repoURL}
	err = tx.QueryRow(ctx,
		`INSERT INTO projects (id, name, repo_url) VALUES ($1, $2, $3) RETURNING created_at`,
		p.ID, p.Name, p.RepoURL,
	).Scan(&p.CreatedAt)
	if err != nil {
		return models.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO project_members (user_id, project_id) VALUES ($1, $2)`, userID, p.ID,
	); err != nil {
		return models.Project{}, fmt.Errorf("insert member: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Project{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

// GetProject returns an active project. Archived projects are not found.
func (s *Store) GetProject(ctx context.Context, projectID string) (models.Project, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return models.Project{}, apperr.NotFound("project %s not found", projectID)
	}
	const q = `SELECT id, name, repo_url, created_at FROM projects WHERE id = $1 AND deleted_at IS NULL`
	var p models.Project
	err := s.pool.QueryRow(ctx, q, projectID).Scan(&p.ID, &p.Name, &p.RepoURL, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Project{}, apperr.NotFound("project %s not found", projectID)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects returns the active projects userID belongs to, newest first.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	const q = `
		SELECT p.id, p.name, p.repo_url, p.created_at
		FROM projects p
		JOIN project_members m ON m.project_id = p.id
		WHERE m.user_id = $1 AND p.deleted_at IS NULL
		ORDER BY p.created_at DESC`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.RepoURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ArchiveProject soft-deletes a project.
func (s *Store) ArchiveProject(ctx context.Context, projectID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, projectID)
	if err != nil {
		return fmt.Errorf("archive project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("project %s not found", projectID)
	}
	return nil
}

// AddMember adds userID to the project. Joining twice is a no-op.
func (s *Store) AddMember(ctx context.Context, projectID, userID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO project_members (user_id, project_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, projectID)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// IsMember reports whether userID belongs to an active project.
func (s *Store) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return false, nil
	}
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM project_members m
			JOIN projects p ON p.id = m.project_id
			WHERE m.project_id = $1 AND m.user_id = $2 AND p.deleted_at IS NULL
		)`
	var ok bool
	if err := s.pool.QueryRow(ctx, q, projectID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

// ListMembers returns the users of a project in join order.
func (s *Store) ListMembers(ctx context.Context, projectID string) ([]models.User, error) {
	const q = `
		SELECT u.id, u.email, u.name, u.avatar_url, u.credits, u.created_at
		FROM users u
		JOIN project_members m ON m.user_id = u.id
		WHERE m.project_id = $1
		ORDER BY m.created_at`
	rows, err := s.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.Credits, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
