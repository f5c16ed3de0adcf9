package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"talentrag/apps/backend/internal/apperr"
	"talentrag/apps/backend/internal/config"
	"talentrag/apps/backend/internal/ingest"
	"talentrag/apps/backend/internal/middleware"
	"talentrag/apps/backend/internal/retrieval"
	"talentrag/apps/backend/internal/settings"
	"talentrag/apps/backend/internal/text"
	"talentrag/apps/backend/internal/vector"
	"talentrag/apps/backend/internal/worker"
)

const DefaultTopK = 5

type Ingester interface {
	Ingest(ctx context.Context, collection string, doc ingest.Document) (*ingest.Result, error)
}

type Searcher interface {
	Search(ctx context.Context, collection string, req retrieval.Request) ([]vector.Match, error)
}

type Collections interface {
	Default() string
	Reset(ctx context.Context, name string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type SettingsProvider interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// QueryInput is a search over one collection. An empty QueryText turns the
// search into a metadata scan.
type QueryInput struct {
	Collection string             `json:"collection"`
	QueryText  string             `json:"query_text"`
	Filters    []retrieval.Filter `json:"filters"`
	Where      map[string]any     `json:"where"`
	TopK       int                `json:"top_k"`
}

type Service struct {
	pipeline    Ingester
	planner     Searcher
	collections Collections
	pub         EventPublisher
	settings    SettingsProvider
}

func NewService(p Ingester, s Searcher, c Collections, pub EventPublisher, st SettingsProvider) *Service {
	return &Service{pipeline: p, planner: s, collections: c, pub: pub, settings: st}
}

func (s *Service) collection(name string) string {
	if strings.TrimSpace(name) == "" {
		return s.collections.Default()
	}
	return name
}

func (s *Service) Ingest(ctx context.Context, collection string, doc ingest.Document) (*ingest.Result, error) {
	return s.pipeline.Ingest(ctx, s.collection(collection), doc)
}

// Enqueue checks what can be checked without touching the index and
// publishes the document for the ingest worker.
func (s *Service) Enqueue(ctx context.Context, collection string, doc ingest.Document) error {
	if s.pub == nil {
		return fmt.Errorf("async ingestion is not configured")
	}
	if strings.TrimSpace(doc.SourceID) == "" {
		return fmt.Errorf("%w: source_id is required", apperr.ErrValidation)
	}
	if !doc.SourceType.Valid() {
		return fmt.Errorf("%w: unknown source_type %q", apperr.ErrValidation, doc.SourceType)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return apperr.ErrExtractionEmpty
	}

	body, err := json.Marshal(worker.IngestPayload{
		Collection:    s.collection(collection),
		Document:      doc,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return err
	}
	if err := s.pub.Publish(config.TopicIngestDocument, body); err != nil {
		return fmt.Errorf("publish ingest task: %w", err)
	}
	slog.InfoContext(ctx, "document queued", "source_id", doc.SourceID, "source_type", doc.SourceType)
	return nil
}

func (s *Service) Query(ctx context.Context, in QueryInput) ([]vector.Match, error) {
	where, err := retrieval.ParseWhere(in.Where)
	if err != nil {
		return nil, err
	}
	topK := in.TopK
	if topK == 0 {
		topK = s.defaultTopK(ctx)
	}
	return s.planner.Search(ctx, s.collection(in.Collection), retrieval.Request{
		QueryText: in.QueryText,
		Filters:   in.Filters,
		Where:     where,
		TopK:      topK,
	})
}

// Reset drops every record of the collection and returns its name.
func (s *Service) Reset(ctx context.Context, collection string) (string, error) {
	name := s.collection(collection)
	return name, s.collections.Reset(ctx, name)
}

func (s *Service) defaultTopK(ctx context.Context) int {
	if s.settings == nil {
		return DefaultTopK
	}
	set, err := s.settings.Get(ctx)
	if err != nil || set.SearchTopK <= 0 {
		return DefaultTopK
	}
	return set.SearchTopK
}

// sourceType normalizes a request's source type.
func sourceType(raw string) text.SourceType {
	return text.SourceType(strings.ToLower(strings.TrimSpace(raw)))
}
