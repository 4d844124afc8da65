// Package meetings turns uploaded meeting recordings into issues.
package meetings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	assemblyAIBaseURL   = "https://api.assemblyai.com/v2"
	defaultPollInterval = 3 * time.Second
)

// Chapter is one auto-generated section of a transcript. Offsets are in
// milliseconds.
type Chapter struct {
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Gist     string `json:"gist"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
}

// Transcript is a completed transcription.
type Transcript struct {
	Text     string    `json:"text"`
	Chapters []Chapter `json:"chapters"`
}

// Transcriber converts an audio URL into a chaptered transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (Transcript, error)
}

// AssemblyAI is a REST client for the AssemblyAI transcription API.
type AssemblyAI struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	http         *http.Client
}

func NewAssemblyAI(apiKey string) *AssemblyAI {
	return &AssemblyAI{
		apiKey:       apiKey,
		baseURL:      assemblyAIBaseURL,
		pollInterval: defaultPollInterval,
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

type transcriptJob struct {
	ID       string    `json:"id"`
	Status   string    `json:"status"`
	Error    string    `json:"error"`
	Text     string    `json:"text"`
	Chapters []Chapter `json:"chapters"`
}

// Transcribe submits audioURL with auto chapters enabled and polls until the
// job completes, fails, or ctx is done.
func (a *AssemblyAI) Transcribe(ctx context.Context, audioURL string) (Transcript, error) {
	payload := map[string]any{
		"audio_url":     audioURL,
		"auto_chapters": true,
	}
	var job transcriptJob
	if err := a.do(ctx, http.MethodPost, "/transcript", payload, &job); err != nil {
		return Transcript{}, fmt.Errorf("submit transcript: %w", err)
	}
	log.Debug().Str("transcript", job.ID).Msg("transcription submitted")

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		switch job.Status {
		case "completed":
			return Transcript{Text: job.Text, Chapters: job.Chapters}, nil
		case "error":
			return Transcript{}, fmt.Errorf("transcription failed: %s", job.Error)
		}
		select {
		case <-ctx.Done():
			return Transcript{}, ctx.Err()
		case <-ticker.C:
		}
		if err := a.do(ctx, http.MethodGet, "/transcript/"+job.ID, nil, &job); err != nil {
			return Transcript{}, fmt.Errorf("poll transcript: %w", err)
		}
	}
}

func (a *AssemblyAI) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", a.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("assemblyai status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("assemblyai status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
