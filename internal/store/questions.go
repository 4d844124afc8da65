package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/seanblong/codelore/pkg/models"
)

// SaveQuestion stores an answered question with its file references.
func (s *Store) SaveQuestion(ctx context.Context, q models.Question) (models.Question, error) {
	refs := q.FileReferences
	if refs == nil {
		refs = []models.FileReference{}
	}
	raw, err := json.Marshal(refs)
	if err != nil {
		return models.Question{}, fmt.Errorf("encode references: %w", err)
	}

	q.ID = uuid.NewString()
	q.FileReferences = refs
	err = s.pool.QueryRow(ctx, `
		INSERT INTO questions (id, project_id, user_id, question, answer, file_references)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		q.ID, q.ProjectID, q.UserID, q.Question, q.Answer, raw,
	).Scan(&q.CreatedAt)
	if err != nil {
		return models.Question{}, fmt.Errorf("save question: %w", err)
	}
	return q, nil
}

// ListQuestions returns a project's saved questions, newest first.
func (s *Store) ListQuestions(ctx context.Context, projectID string) ([]models.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, user_id, question, answer, file_references, created_at
		FROM questions
		WHERE project_id = $1
		ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	out := []models.Question{}
	for rows.Next() {
		var q models.Question
		var raw []byte
		if err := rows.Scan(&q.ID, &q.ProjectID, &q.UserID, &q.Question, &q.Answer, &raw, &q.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &q.FileReferences); err != nil {
			return nil, fmt.Errorf("decode references of %s: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
