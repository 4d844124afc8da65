package models

import "time"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}

type Project struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	RepoURL   string     `json:"repo_url"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// SourceCodeEmbedding is one indexed file of a project.
type SourceCodeEmbedding struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	FileName   string    `json:"file_name"`
	SourceCode string    `json:"source_code"`
	Summary    string    `json:"summary"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

type Commit struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Hash         string    `json:"commit_hash"`
	Message      string    `json:"commit_message"`
	AuthorName   string    `json:"commit_author_name"`
	AuthorAvatar string    `json:"commit_author_avatar"`
	Date         time.Time `json:"commit_date"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileReference is a retrieved file cited by an answer.
type FileReference struct {
	FileName   string  `json:"file_name"`
	SourceCode string  `json:"source_code"`
	Summary    string  `json:"summary"`
	Similarity float64 `json:"similarity"`
}

type Question struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"project_id"`
	UserID         string          `json:"user_id"`
	Question       string          `json:"question"`
	Answer         string          `json:"answer"`
	FileReferences []FileReference `json:"file_references"`
	CreatedAt      time.Time       `json:"created_at"`
}

type MeetingStatus string

const (
	MeetingProcessing MeetingStatus = "PROCESSING"
	MeetingCompleted  MeetingStatus = "COMPLETED"
)

type Meeting struct {
	ID         string        `json:"id"`
	ProjectID  string        `json:"project_id"`
	Name       string        `json:"name"`
	URL        string        `json:"url"`
	Status     MeetingStatus `json:"status"`
	IssueCount int           `json:"issue_count"`
	Issues     []Issue       `json:"issues,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Issue is one transcript chapter of a meeting.
type Issue struct {
	ID        string    `json:"id"`
	MeetingID string    `json:"meeting_id"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	Gist      string    `json:"gist"`
	Headline  string    `json:"headline"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}
