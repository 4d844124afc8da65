package meetings

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/codelore/pkg/models"
)

// placeholderKey is the sample value shipped in example env files.
const placeholderKey = "your_api_key_here"

// charsPerMinute estimates spoken length when no chapters are returned.
const charsPerMinute = 150

// Extractor turns a recording into issues. It never fails: missing or bad
// credentials and provider errors produce explanatory placeholder issues.
type Extractor struct {
	apiKey      string
	transcriber Transcriber
}

// NewExtractor uses transcriber when apiKey is a usable credential.
func NewExtractor(apiKey string, transcriber Transcriber) *Extractor {
	return &Extractor{apiKey: strings.TrimSpace(apiKey), transcriber: transcriber}
}

// Issues returns one issue per transcript chapter of audioURL.
func (e *Extractor) Issues(ctx context.Context, audioURL string) []models.Issue {
	switch {
	case e.apiKey == "" || e.transcriber == nil:
		log.Warn().Msg("no AssemblyAI API key configured, returning test transcript")
		return dummyIssues(audioURL)
	case e.apiKey == placeholderKey:
		log.Error().Msg("AssemblyAI API key is the sample placeholder")
		return []models.Issue{{
			Start:    "00:00",
			End:      "00:30",
			Gist:     "API Key Error",
			Headline: "Invalid AssemblyAI API Key",
			Summary:  "You need to replace 'your_api_key_here' with your actual AssemblyAI API key.",
		}}
	}

	t, err := e.transcriber.Transcribe(ctx, audioURL)
	if err != nil {
		log.Error().Err(err).Msg("transcription failed")
		return []models.Issue{{
			Start:    "00:00",
			End:      "01:00",
			Gist:     "Processing Error",
			Headline: "Error Processing Meeting",
			Summary:  fmt.Sprintf("There was an error processing the meeting: %v", err),
		}}
	}

	if len(t.Chapters) == 0 {
		minutes := int(math.Max(1, math.Round(float64(len(t.Text))/charsPerMinute)))
		text := t.Text
		if text == "" {
			text = "No transcript text available"
		}
		return []models.Issue{{
			Start:    "00:00",
			End:      fmt.Sprintf("%02d:00", minutes),
			Gist:     "Full Transcript",
			Headline: "Meeting Transcript",
			Summary:  text,
		}}
	}

	out := make([]models.Issue, len(t.Chapters))
	for i, c := range t.Chapters {
		out[i] = models.Issue{
			Start:    FormatOffset(c.Start),
			End:      FormatOffset(c.End),
			Gist:     orDefault(c.Gist, "Discussion Point"),
			Headline: orDefault(c.Headline, "Discussion Point"),
			Summary:  orDefault(c.Summary, "No summary available"),
		}
	}
	return out
}

// FormatOffset renders milliseconds as MM:SS.
func FormatOffset(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func dummyIssues(audioURL string) []models.Issue {
	return []models.Issue{
		{
			Start:    "00:00",
			End:      "01:30",
			Gist:     "Introduction",
			Headline: "Meeting starts with introductions",
			Summary: fmt.Sprintf("This is a test transcript for %s. The real transcript will appear when you add a valid AssemblyAI API key.",
				audioFileName(audioURL)),
		},
		{
			Start:    "01:30",
			End:      "03:45",
			Gist:     "Project Overview",
			Headline: "Discussion of project goals",
			Summary:  "Project goals were discussed including timelines and resources. The team agreed on next steps.",
		},
		{
			Start:    "03:45",
			End:      "05:20",
			Gist:     "Action Items",
			Headline: "Team assigned action items",
			Summary:  "Various tasks were assigned to team members with deadlines for the next meeting.",
		},
	}
}

// audioFileName is the last path segment of a URL, or "audio-file" for
// data URLs and URLs without one.
func audioFileName(audioURL string) string {
	if strings.HasPrefix(audioURL, "data:") {
		return "audio-file"
	}
	parts := strings.Split(audioURL, "/")
	if last := parts[len(parts)-1]; last != "" {
		return last
	}
	return "audio-file"
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
