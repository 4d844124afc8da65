package config

import (
	"strings"

	"github.com/seanblong/codelore/internal/ai"
)

// ClientConfig maps the provider section onto an AI client configuration.
func ClientConfig(s Specification) *ai.ClientConfig {
	return &ai.ClientConfig{
		APIKey:       s.APIKey,
		EmbedModel:   s.EmbedModel,
		SummaryModel: s.SummaryModel,
		AnswerModel:  s.AnswerModel,
		Dim:          s.Dim,
		ProjectID:    s.ProjectID,
		Location:     s.Location,
		BaseURL:      strings.TrimSpace(s.BaseURL),
		Provider:     ai.Provider(strings.ToLower(strings.TrimSpace(s.Provider))),
	}
}
