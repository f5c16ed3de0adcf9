package facts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"talentrag/apps/backend/internal/apperr"
	"talentrag/apps/backend/internal/retrieval"
	"talentrag/apps/backend/internal/settings"
	"talentrag/apps/backend/internal/vector"
)

const DefaultTopK = 3

// Collections is the part of vector.Manager a chat's fact store needs.
type Collections interface {
	FactsCollection(chatID string) (string, error)
	GetOrCreate(ctx context.Context, name string) (*vector.Collection, error)
	Store(ctx context.Context, name string, texts []string, metadatas []vector.Metadata, ids []string) error
	Update(ctx context.Context, name string, ids []string, metadatas []vector.Metadata) error
	Reset(ctx context.Context, name string) error
}

type Searcher interface {
	Search(ctx context.Context, collection string, req retrieval.Request) ([]vector.Match, error)
}

type SettingsProvider interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// Fact is one statement remembered for a chat. Meta may be nested; it is
// stored flattened with dotted keys.
type Fact struct {
	ID   string         `json:"id"`
	Text string         `json:"text"`
	Meta map[string]any `json:"meta"`
}

type SearchInput struct {
	Query   string             `json:"query"`
	TopK    int                `json:"top_k"`
	Where   map[string]any     `json:"where"`
	Filters []retrieval.Filter `json:"filters"`
}

type CollectionInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Service struct {
	collections Collections
	planner     Searcher
	settings    SettingsProvider
}

func NewService(c Collections, p Searcher, s SettingsProvider) *Service {
	return &Service{collections: c, planner: p, settings: s}
}

// FactID derives the id of a fact stored without one. The same text in the
// same chat always gets the same id, so re-adding it overwrites.
func FactID(chatID, text string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chatID+"\x00"+text)).String()
}

func (s *Service) Ensure(ctx context.Context, chatID string) (*CollectionInfo, error) {
	name, err := s.collections.FactsCollection(chatID)
	if err != nil {
		return nil, err
	}
	c, err := s.collections.GetOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	count, err := c.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &CollectionInfo{Name: name, Count: count}, nil
}

// Add stores facts and returns their ids in input order.
func (s *Service) Add(ctx context.Context, chatID string, facts []Fact) ([]string, error) {
	name, err := s.collections.FactsCollection(chatID)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return nil, fmt.Errorf("%w: at least one fact is required", apperr.ErrValidation)
	}

	texts := make([]string, len(facts))
	metadatas := make([]vector.Metadata, len(facts))
	ids := make([]string, len(facts))
	for i, f := range facts {
		if strings.TrimSpace(f.Text) == "" {
			return nil, fmt.Errorf("%w: text is required", apperr.ErrValidation)
		}
		texts[i] = f.Text
		metadatas[i] = vector.Flatten("", f.Meta)
		ids[i] = f.ID
		if ids[i] == "" {
			ids[i] = FactID(chatID, f.Text)
		}
	}

	if err := s.collections.Store(ctx, name, texts, metadatas, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Service) Search(ctx context.Context, chatID string, in SearchInput) ([]vector.Match, error) {
	name, err := s.collections.FactsCollection(chatID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", apperr.ErrValidation)
	}
	where, err := retrieval.ParseWhere(in.Where)
	if err != nil {
		return nil, err
	}

	topK := in.TopK
	if topK == 0 {
		topK = s.defaultTopK(ctx)
	}
	return s.planner.Search(ctx, name, retrieval.Request{
		QueryText: in.Query,
		Filters:   in.Filters,
		Where:     where,
		TopK:      topK,
	})
}

// UpdateMeta merges metadatas[i] into the fact ids[i].
func (s *Service) UpdateMeta(ctx context.Context, chatID string, ids []string, metadatas []map[string]any) (int, error) {
	name, err := s.collections.FactsCollection(chatID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 || len(ids) != len(metadatas) {
		return 0, fmt.Errorf("%w: ids and metadatas must be same-length arrays", apperr.ErrValidation)
	}
	flat := make([]vector.Metadata, len(metadatas))
	for i, m := range metadatas {
		flat[i] = vector.Flatten("", m)
		if err := flat[i].Validate(); err != nil {
			return 0, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
		}
	}
	if err := s.collections.Update(ctx, name, ids, flat); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Drop deletes the chat's collection with everything in it.
func (s *Service) Drop(ctx context.Context, chatID string) (string, error) {
	name, err := s.collections.FactsCollection(chatID)
	if err != nil {
		return "", err
	}
	return name, s.collections.Reset(ctx, name)
}

func (s *Service) defaultTopK(ctx context.Context) int {
	if s.settings == nil {
		return DefaultTopK
	}
	set, err := s.settings.Get(ctx)
	if err != nil || set.FactsTopK <= 0 {
		return DefaultTopK
	}
	return set.FactsTopK
}
