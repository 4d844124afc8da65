package meetings

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/codelore/pkg/models"
)

// Store is the persistence used by Processor.
type Store interface {
	GetMeeting(ctx context.Context, meetingID string) (models.Meeting, error)
	CompleteMeeting(ctx context.Context, meetingID, name string, issues []models.Issue) error
}

// IssueSource produces the issues of a recording.
type IssueSource interface {
	Issues(ctx context.Context, audioURL string) []models.Issue
}

type Processor struct {
	store  Store
	source IssueSource
}

func NewProcessor(store Store, source IssueSource) *Processor {
	return &Processor{store: store, source: source}
}

// Process transcribes a meeting, stores its issues, marks it COMPLETED and
// renames it after the first headline. Only storage errors are returned.
func (p *Processor) Process(ctx context.Context, meetingID string) (models.Meeting, error) {
	m, err := p.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return models.Meeting{}, err
	}

	issues := p.source.Issues(ctx, m.URL)
	if len(issues) == 0 {
		issues = []models.Issue{{
			Start:    "00:00",
			End:      "00:00",
			Gist:     "Processing Error",
			Headline: "No summaries generated",
			Summary:  "The system could not generate summaries from this audio file. This could be due to audio quality or format issues.",
		}}
	}

	name := issues[0].Headline
	if name == "" {
		name = "Processed Meeting"
	}
	if err := p.store.CompleteMeeting(ctx, meetingID, name, issues); err != nil {
		return models.Meeting{}, err
	}
	log.Info().Str("meeting", meetingID).Int("issues", len(issues)).Msg("meeting processed")
	return p.store.GetMeeting(ctx, meetingID)
}
