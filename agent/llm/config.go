package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

// Config holds settings for the OpenAI-compatible completion and
// embedding endpoints. OpenRouter is the default host; any compatible
// endpoint works via BaseURL.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	// Optional per-role model overrides. Empty means Model.
	ClassifierModel string `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	ResearchModel   string `envconfig:"RESEARCH_MODEL" split_words:"true"`
	ChatModel       string `envconfig:"CHAT_MODEL" split_words:"true"`

	// Embeddings usually need a direct OpenAI-compatible embeddings host.
	EmbeddingBaseURL string `envconfig:"EMBEDDING_BASE_URL" split_words:"true"`
	EmbeddingAPIKey  string `envconfig:"EMBEDDING_API_KEY" split_words:"true"`
	EmbeddingModel   string `envconfig:"EMBEDDING_MODEL" split_words:"true" default:"text-embedding-3-small"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}
