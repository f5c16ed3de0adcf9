package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"talentrag/apps/backend/internal/settings"
)

// DynamicEmbedder reads the API key from settings on every call, so a key
// changed through PUT /settings takes effect without a restart. A key set
// in the environment is used while settings hold none.
type DynamicEmbedder struct {
	settingsSvc *settings.Service
	fallbackKey string
	model       string
	client      *genai.Client
	currentKey  string
	mu          sync.RWMutex
	clientOpts  []option.ClientOption
}

func NewDynamicEmbedder(svc *settings.Service, fallbackKey, model string, opts ...option.ClientOption) *DynamicEmbedder {
	if model == "" {
		model = DefaultModel
	}
	return &DynamicEmbedder{
		settingsSvc: svc,
		fallbackKey: fallbackKey,
		model:       model,
		clientOpts:  opts,
	}
}

func (e *DynamicEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s, err := e.settingsSvc.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	key := s.GeminiAPIKey
	if key == "" {
		key = e.fallbackKey
	}
	if key == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}

	client, err := e.getClient(ctx, key)
	if err != nil {
		return nil, err
	}
	return embedBatch(ctx, client, e.model, texts)
}

func (e *DynamicEmbedder) getClient(ctx context.Context, key string) (*genai.Client, error) {
	e.mu.RLock()
	if e.client != nil && e.currentKey == key {
		defer e.mu.RUnlock()
		return e.client, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double check
	if e.client != nil && e.currentKey == key {
		return e.client, nil
	}

	if e.client != nil {
		if err := e.client.Close(); err != nil {
			slog.Warn("failed to close previous genai client", "error", err)
		}
	}

	opts := append(e.clientOpts, option.WithAPIKey(key))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	e.client = client
	e.currentKey = key
	return client, nil
}
