package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/codelore/internal/apperr"
	"github.com/seanblong/codelore/internal/auth"
	"github.com/seanblong/codelore/internal/indexer"
	"github.com/seanblong/codelore/internal/search"
	"github.com/seanblong/codelore/pkg/models"
)

const (
	readTimeout    = 5 * time.Second
	writeTimeout   = 10 * time.Second
	syncTimeout    = 2 * time.Minute
	askTimeout     = 2 * time.Minute
	indexTimeout   = 15 * time.Minute
	processTimeout = 15 * time.Minute

	maxBodyBytes = 1 << 20
)

// Store is the persistence the HTTP layer needs.
type Store interface {
	Ping(ctx context.Context) error

	UpsertUser(ctx context.Context, u models.User) (models.User, error)
	GetCredits(ctx context.Context, userID string) (int, error)

	CreateProject(ctx context.Context, userID, name, repoURL string) (models.Project, error)
	GetProject(ctx context.Context, projectID string) (models.Project, error)
	ListProjects(ctx context.Context, userID string) ([]models.Project, error)
	ArchiveProject(ctx context.Context, projectID string) error
	AddMember(ctx context.Context, projectID, userID string) error
	IsMember(ctx context.Context, projectID, userID string) (bool, error)
	ListMembers(ctx context.Context, projectID string) ([]models.User, error)

	ListCommits(ctx context.Context, projectID string) ([]models.Commit, error)

	SaveQuestion(ctx context.Context, q models.Question) (models.Question, error)
	ListQuestions(ctx context.Context, projectID string) ([]models.Question, error)

	CreateMeeting(ctx context.Context, projectID, name, url string) (models.Meeting, error)
	GetMeeting(ctx context.Context, meetingID string) (models.Meeting, error)
	ListMeetings(ctx context.Context, projectID string) ([]models.Meeting, error)
	DeleteMeeting(ctx context.Context, meetingID string) error
}

type RepoIndexer interface {
	IndexRepository(ctx context.Context, projectID, repoURL, token string) (indexer.Result, error)
}

type CommitSyncer interface {
	Sync(ctx context.Context, projectID string) ([]models.Commit, error)
}

type Answerer interface {
	Ask(ctx context.Context, projectID, question string) (*search.Answer, error)
}

type MeetingProcessor interface {
	Process(ctx context.Context, meetingID string) (models.Meeting, error)
}

// Deps wires a Server. GithubToken is used for indexing when a request
// does not carry its own token.
type Deps struct {
	Store       Store
	Indexer     RepoIndexer
	Commits     CommitSyncer
	Answers     Answerer
	Meetings    MeetingProcessor
	Auth        *auth.Authenticator
	GithubToken string
}

type Server struct {
	store       Store
	indexer     RepoIndexer
	commits     CommitSyncer
	answers     Answerer
	meetings    MeetingProcessor
	auth        *auth.Authenticator
	githubToken string
}

func New(d Deps) *Server {
	a := d.Auth
	if a == nil {
		a = auth.New(auth.Config{})
	}
	return &Server{
		store:       d.Store,
		indexer:     d.Indexer,
		commits:     d.Commits,
		answers:     d.Answers,
		meetings:    d.Meetings,
		auth:        a,
		githubToken: d.GithubToken,
	}
}

// Routes returns the full HTTP surface.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	s.registerAuth(mux)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/credits", s.handleCredits)

	api.HandleFunc("POST /api/projects", s.handleCreateProject)
	api.HandleFunc("GET /api/projects", s.handleListProjects)
	api.HandleFunc("POST /api/projects/{id}/archive", s.member(s.handleArchiveProject))
	api.HandleFunc("POST /api/projects/{id}/join", s.handleJoinProject)
	api.HandleFunc("GET /api/projects/{id}/members", s.member(s.handleListMembers))

	api.HandleFunc("GET /api/projects/{id}/commits", s.member(s.handleListCommits))
	api.HandleFunc("POST /api/projects/{id}/commits/poll", s.member(s.handlePollCommits))

	api.HandleFunc("POST /api/projects/{id}/questions/ask", s.member(s.handleAsk))
	api.HandleFunc("POST /api/projects/{id}/questions", s.member(s.handleSaveQuestion))
	api.HandleFunc("GET /api/projects/{id}/questions", s.member(s.handleListQuestions))

	api.HandleFunc("POST /api/projects/{id}/meetings", s.member(s.handleCreateMeeting))
	api.HandleFunc("GET /api/projects/{id}/meetings", s.member(s.handleListMeetings))
	api.HandleFunc("GET /api/meetings/{id}", s.handleGetMeeting)
	api.HandleFunc("POST /api/meetings/{id}/process", s.handleProcessMeeting)
	api.HandleFunc("DELETE /api/meetings/{id}", s.handleDeleteMeeting)

	mux.Handle("/api/", s.auth.Middleware(s.withUser(api)))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type userKey struct{}

// withUser records the authenticated caller as a user row so membership and
// question rows can reference it.
func (s *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gu := auth.UserFromContext(r.Context())
		if gu == nil || gu.Login == "" {
			writeError(w, r, apperr.New(apperr.CodeUnauthorized, "authentication required"))
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
		u, err := s.store.UpsertUser(ctx, models.User{
			ID:        gu.Login,
			Email:     gu.Email,
			Name:      gu.Name,
			AvatarURL: gu.AvatarURL,
		})
		cancel()
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
	})
}

func caller(r *http.Request) models.User {
	u, _ := r.Context().Value(userKey{}).(models.User)
	return u
}

// member rejects callers that do not belong to the {id} project before the
// handler runs.
func (s *Server) member(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkMember(r, r.PathValue("id")); err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r)
	}
}

func (s *Server) checkMember(r *http.Request, projectID string) error {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	ok, err := s.store.IsMember(ctx, projectID, caller(r).ID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.CodeForbidden, "you don't have access to this project")
	}
	return nil
}

// decodeJSON reads a bounded request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("request body is required")
		}
		return apperr.Invalid("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	ev := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		ev = hlog.FromRequest(r).Error()
	}
	ev.Err(err).Int("status", status).Msg("request failed")
	writeJSON(w, r, status, map[string]string{
		"error": apperr.Message(err),
		"code":  string(apperr.CodeOf(err)),
	})
}
