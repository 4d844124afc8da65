package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/seanblong/codelore/pkg/models"
)

// UpsertEmbedding stores one indexed file. Re-indexing the same file name
// replaces its content. A nil embedding is stored as NULL.
func (s *Store) UpsertEmbedding(ctx context.Context, e models.SourceCodeEmbedding) error {
	var vec any
	if len(e.Embedding) > 0 {
		vec = pgvector.NewVector(e.Embedding)
	} else {
		vec = (*pgvector.Vector)(nil)
	}

	const q = `
		INSERT INTO source_code_embeddings (id, project_id, file_name, source_code, summary, summary_embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (project_id, file_name) DO UPDATE SET
			source_code       = EXCLUDED.source_code,
			summary           = EXCLUDED.summary,
			summary_embedding = EXCLUDED.summary_embedding`
	_, err := s.pool.Exec(ctx, q, uuid.NewString(), e.ProjectID, e.FileName, e.SourceCode, e.Summary, vec)
	if err != nil {
		return fmt.Errorf("upsert embedding %s: %w", e.FileName, err)
	}
	return nil
}

// ListEmbeddings returns up to limit candidate rows for a project, nearest
// to query first by cosine distance. Rows without an embedding sort last.
// A limit of zero or less returns every row.
func (s *Store) ListEmbeddings(ctx context.Context, projectID string, query []float32, limit int) ([]models.SourceCodeEmbedding, error) {
	var lim any // NULL is LIMIT ALL
	if limit > 0 {
		lim = limit
	}
	const q = `
		SELECT id, project_id, file_name, source_code, summary, summary_embedding, created_at
		FROM source_code_embeddings
		WHERE project_id = $1
		ORDER BY summary_embedding <=> $2 NULLS LAST, file_name
		LIMIT $3`
	rows, err := s.pool.Query(ctx, q, projectID, pgvector.NewVector(query), lim)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	out := []models.SourceCodeEmbedding{}
	for rows.Next() {
		var e models.SourceCodeEmbedding
		var vec *pgvector.Vector
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.FileName, &e.SourceCode, &e.Summary, &vec, &e.CreatedAt); err != nil {
			return nil, err
		}
		if vec != nil {
			e.Embedding = vec.Slice()
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountEmbeddings returns the number of indexed files of a project.
func (s *Store) CountEmbeddings(ctx context.Context, projectID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM source_code_embeddings WHERE project_id = $1`, projectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}
