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

// CreateMeeting registers an uploaded recording in PROCESSING state.
func (s *Store) CreateMeeting(ctx context.Context, projectID, name, url string) (models.Meeting, error) {
	m := models.Meeting{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		URL:       url,
		Status:    models.MeetingProcessing,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO meetings (id, project_id, name, url, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		m.ID, m.ProjectID, m.Name, m.URL, string(m.Status),
	).Scan(&m.CreatedAt)
	if err != nil {
		return models.Meeting{}, fmt.Errorf("create meeting: %w", err)
	}
	return m, nil
}

// GetMeeting returns a meeting with its issues in start order.
func (s *Store) GetMeeting(ctx context.Context, meetingID string) (models.Meeting, error) {
	if _, err := uuid.Parse(meetingID); err != nil {
		return models.Meeting{}, apperr.NotFound("meeting %s not found", meetingID)
	}
	var m models.Meeting
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT id, project_id, name, url, status, created_at
		FROM meetings WHERE id = $1`, meetingID,
	).Scan(&m.ID, &m.ProjectID, &m.Name, &m.URL, &status, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Meeting{}, apperr.NotFound("meeting %s not found", meetingID)
	}
	if err != nil {
		return models.Meeting{}, fmt.Errorf("get meeting: %w", err)
	}
	m.Status = models.MeetingStatus(status)

	rows, err := s.pool.Query(ctx, `
		SELECT id, meeting_id, start_at, end_at, gist, headline, summary, created_at
		FROM issues WHERE meeting_id = $1
		ORDER BY start_at, created_at`, meetingID)
	if err != nil {
		return models.Meeting{}, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	m.Issues = []models.Issue{}
	for rows.Next() {
		var is models.Issue
		if err := rows.Scan(&is.ID, &is.MeetingID, &is.Start, &is.End, &is.Gist, &is.Headline, &is.Summary, &is.CreatedAt); err != nil {
			return models.Meeting{}, err
		}
		m.Issues = append(m.Issues, is)
	}
	m.IssueCount = len(m.Issues)
	return m, rows.Err()
}

// ListMeetings returns a project's meetings, newest first, with issue counts.
func (s *Store) ListMeetings(ctx context.Context, projectID string) ([]models.Meeting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.project_id, m.name, m.url, m.status, m.created_at, count(i.id)
		FROM meetings m
		LEFT JOIN issues i ON i.meeting_id = m.id
		WHERE m.project_id = $1
		GROUP BY m.id
		ORDER BY m.created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	out := []models.Meeting{}
	for rows.Next() {
		var m models.Meeting
		var status string
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Name, &m.URL, &status, &m.CreatedAt, &m.IssueCount); err != nil {
			return nil, err
		}
		m.Status = models.MeetingStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CompleteMeeting stores issues, marks the meeting COMPLETED and renames it,
// all in one transaction. An empty name keeps the current one.
func (s *Store) CompleteMeeting(ctx context.Context, meetingID, name string, issues []models.Issue) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, is := range issues {
		batch.Queue(`
			INSERT INTO issues (id, meeting_id, start_at, end_at, gist, headline, summary)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.NewString(), meetingID, is.Start, is.End, is.Gist, is.Headline, is.Summary)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert issues: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE meetings SET status = $2, name = COALESCE(NULLIF($3, ''), name)
		WHERE id = $1`, meetingID, string(models.MeetingCompleted), name)
	if err != nil {
		return fmt.Errorf("complete meeting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("meeting %s not found", meetingID)
	}
	return tx.Commit(ctx)
}

// DeleteMeeting removes a meeting and its issues.
func (s *Store) DeleteMeeting(ctx context.Context, meetingID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, meetingID)
	if err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("meeting %s not found", meetingID)
	}
	return nil
}
