package settings

import (
	"context"
	"fmt"

	"talentrag/apps/backend/internal/apperr"
)

// Settings are the runtime-editable knobs kept in the single settings row.
type Settings struct {
	ID           int    `json:"-"`
	GeminiAPIKey string `json:"gemini_api_key"`
	SearchTopK   int    `json:"search_top_k"`
	FactsTopK    int    `json:"facts_top_k"`
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	if set.SearchTopK < 1 || set.FactsTopK < 1 {
		return fmt.Errorf("%w: top_k values must be positive", apperr.ErrValidation)
	}
	return s.repo.Update(ctx, set)
}
