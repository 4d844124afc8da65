package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/seanblong/codelore/internal/apperr"
	"github.com/seanblong/codelore/pkg/models"
)

type createMeetingRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (s *Server) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req createMeetingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.URL = strings.TrimSpace(req.URL)
	if req.Name == "" {
		writeError(w, r, apperr.Invalid("name is required"))
		return
	}
	if u, err := url.Parse(req.URL); err != nil || (u.Scheme != "https" && u.Scheme != "http" && u.Scheme != "data") {
		writeError(w, r, apperr.Invalid("url must be an http(s) or data url"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	m, err := s.store.CreateMeeting(ctx, r.PathValue("id"), req.Name, req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, m)
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	ms, err := s.store.ListMeetings(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ms)
}

// meeting loads {id} and checks the caller belongs to its project.
func (s *Server) meeting(r *http.Request) (models.Meeting, error) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	m, err := s.store.GetMeeting(ctx, r.PathValue("id"))
	if err != nil {
		return models.Meeting{}, err
	}
	if err := s.checkMember(r, m.ProjectID); err != nil {
		return models.Meeting{}, err
	}
	return m, nil
}

func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	m, err := s.meeting(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, m)
}

func (s *Server) handleProcessMeeting(w http.ResponseWriter, r *http.Request) {
	m, err := s.meeting(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), processTimeout)
	defer cancel()
	done, err := s.meetings.Process(ctx, m.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, done)
}

func (s *Server) handleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	m, err := s.meeting(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	if err := s.store.DeleteMeeting(ctx, m.ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
