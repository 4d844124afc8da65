package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/codelore/internal/apperr"
	"github.com/seanblong/codelore/internal/github"
	"github.com/seanblong/codelore/internal/indexer"
	"github.com/seanblong/codelore/pkg/models"
)

type createProjectRequest struct {
	Name        string `json:"name"`
	RepoURL     string `json:"repo_url"`
	GithubToken string `json:"github_token,omitempty"`
}

type createProjectResponse struct {
	Project models.Project `json:"project"`
	Index   indexer.Result `json:"index"`
	Commits int            `json:"commits"`
}

// handleCreateProject stores the project, indexes its repository and syncs
// its recent commits. A commit sync failure is logged and does not fail the
// request.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.RepoURL = strings.TrimSpace(req.RepoURL)
	if req.Name == "" {
		writeError(w, r, apperr.Invalid("name is required"))
		return
	}
	if _, err := github.ParseRepoURL(req.RepoURL); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), indexTimeout)
	defer cancel()
	logger := hlog.FromRequest(r)

	p, err := s.store.CreateProject(ctx, caller(r).ID, req.Name, req.RepoURL)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token := req.GithubToken
	if token == "" {
		token = s.githubToken
	}
	res, err := s.indexer.IndexRepository(ctx, p.ID, p.RepoURL, token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	commits, err := s.commits.Sync(ctx, p.ID)
	if err != nil {
		logger.Warn().Err(err).Str("project", p.ID).Msg("initial commit sync failed")
	}
	logger.Info().Str("project", p.ID).Int("files", res.Files).Int("stored", res.Stored).Int("commits", len(commits)).Msg("project created")
	writeJSON(w, r, http.StatusCreated, createProjectResponse{Project: p, Index: res, Commits: len(commits)})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	projects, err := s.store.ListProjects(ctx, caller(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, projects)
}

func (s *Server) handleArchiveProject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	if err := s.store.ArchiveProject(ctx, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleJoinProject backs invite links: any signed-in caller holding the
// project id becomes a member.
func (s *Server) handleJoinProject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	id := r.PathValue("id")
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.AddMember(ctx, p.ID, caller(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	members, err := s.store.ListMembers(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, members)
}

// handleListCommits syncs first so the list includes anything pushed since
// the last visit. Sync errors only get logged.
func (s *Server) handleListCommits(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	syncCtx, cancel := context.WithTimeout(r.Context(), syncTimeout)
	if _, err := s.commits.Sync(syncCtx, id); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("project", id).Msg("commit sync failed")
	}
	cancel()

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	commits, err := s.store.ListCommits(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, commits)
}

func (s *Server) handlePollCommits(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), syncTimeout)
	defer cancel()
	inserted, err := s.commits.Sync(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"success": true, "count": len(inserted)})
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	credits, err := s.store.GetCredits(ctx, caller(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{"credits": credits})
}
