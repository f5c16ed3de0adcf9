// Package embedding builds the vector.Embedder selected by configuration.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"

	"talentrag/apps/backend/internal/adapter/gemini"
	"talentrag/apps/backend/internal/settings"
	"talentrag/apps/backend/internal/vector"
)

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

const (
	defaultOllamaURL   = "http://localhost:11434/api"
	defaultOllamaModel = "nomic-embed-text"
)

type Config struct {
	Provider     string
	Model        string
	BaseURL      string
	GeminiAPIKey string
	OpenAIAPIKey string
}

// Funcs adapts a single-text chromem embedding func to vector.Embedder.
type Funcs struct {
	fn chromem.EmbeddingFunc
}

func NewFuncs(fn chromem.EmbeddingFunc) *Funcs {
	return &Funcs{fn: fn}
}

func (f *Funcs) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.fn(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// New returns the embedder for cfg.Provider. The gemini embedder reads its
// key from settings first and falls back to cfg.GeminiAPIKey.
func New(cfg Config, settingsSvc *settings.Service) (vector.Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGemini:
		return gemini.NewDynamicEmbedder(settingsSvc, cfg.GeminiAPIKey, cfg.Model), nil
	case ProviderOllama:
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
		return NewFuncs(chromem.NewEmbeddingFuncOllama(model, strings.TrimRight(baseURL, "/"))), nil
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai embedder needs OPENAI_API_KEY")
		}
		model := chromem.EmbeddingModelOpenAI3Small
		if cfg.Model != "" {
			model = chromem.EmbeddingModelOpenAI(cfg.Model)
		}
		return NewFuncs(chromem.NewEmbeddingFuncOpenAI(cfg.OpenAIAPIKey, model)), nil
	}
	return nil, fmt.Errorf("unknown embed provider %q", cfg.Provider)
}
