package config

import (
	"testing"

	"github.com/seanblong/codelore/internal/ai"
)

func TestClientConfig(t *testing.T) {
	s := Specification{
		Provider:     " VertexAI ",
		APIKey:       "k",
		EmbedModel:   "text-embedding-005",
		SummaryModel: "gemini-2.0-flash",
		AnswerModel:  "gemini-2.5-pro",
		Dim:          768,
		ProjectID:    "proj",
		Location:     "europe-west4",
		BaseURL:      " https://proxy.internal/ ",
	}
	got := ClientConfig(s)
	want := ai.ClientConfig{
		APIKey:       "k",
		EmbedModel:   "text-embedding-005",
		SummaryModel: "gemini-2.0-flash",
		AnswerModel:  "gemini-2.5-pro",
		Dim:          768,
		ProjectID:    "proj",
		Location:     "europe-west4",
		BaseURL:      "https://proxy.internal/",
		Provider:     ai.ProviderVertexAI,
	}
	if *got != want {
		t.Errorf("Expected %+v, got %+v", want, *got)
	}
}
