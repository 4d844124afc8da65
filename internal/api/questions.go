package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/codelore/internal/apperr"
	"github.com/seanblong/codelore/pkg/models"
)

type askRequest struct {
	Question string `json:"question"`
}

// handleAsk streams an answer as server-sent events: one "references" event,
// a "token" event per fragment, then "done" or "error". Disconnecting
// cancels generation.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, apperr.New(apperr.CodeInternal, "streaming unsupported"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), askTimeout)
	defer cancel()

	answer, err := s.answers.Ask(ctx, r.PathValue("id"), req.Question)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	logger := hlog.FromRequest(r)
	refs := answer.References
	if refs == nil {
		refs = []models.FileReference{}
	}
	if err := writeEvent(w, "references", refs); err != nil {
		logger.Debug().Err(err).Msg("client went away")
		return
	}
	flusher.Flush()

	for frag := range answer.Stream.C {
		if err := writeEvent(w, "token", frag); err != nil {
			logger.Debug().Err(err).Msg("client went away")
			return
		}
		flusher.Flush()
	}

	if err := answer.Stream.Err(); err != nil {
		logger.Warn().Err(err).Msg("answer stream failed")
		_ = writeEvent(w, "error", map[string]string{"error": "answer generation failed"})
	} else {
		_ = writeEvent(w, "done", struct{}{})
	}
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	return err
}

type saveQuestionRequest struct {
	Question       string                 `json:"question"`
	Answer         string                 `json:"answer"`
	FileReferences []models.FileReference `json:"file_references"`
}

func (s *Server) handleSaveQuestion(w http.ResponseWriter, r *http.Request) {
	var req saveQuestionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		writeError(w, r, apperr.Invalid("question and answer are required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	q, err := s.store.SaveQuestion(ctx, models.Question{
		ProjectID:      r.PathValue("id"),
		UserID:         caller(r).ID,
		Question:       req.Question,
		Answer:         req.Answer,
		FileReferences: req.FileReferences,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, q)
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	qs, err := s.store.ListQuestions(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, qs)
}
