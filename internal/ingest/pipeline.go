package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"talentrag/apps/backend/internal/apperr"
	"talentrag/apps/backend/internal/extract"
	"talentrag/apps/backend/internal/keylock"
	"talentrag/apps/backend/internal/text"
	"talentrag/apps/backend/internal/vector"
)

const DefaultLookupLimit = 1000

// Document is one source document to index.
type Document struct {
	SourceID     string          `json:"source_id"`
	SourceType   text.SourceType `json:"source_type"`
	DocumentName string          `json:"document_name"`
	Content      string          `json:"content"`
}

type Result struct {
	SourceID       string         `json:"source_id"`
	Chunks         int            `json:"chunks"`
	StructuredData map[string]any `json:"structured_data"`
	Cached         bool           `json:"cached"`
}

// Store is the part of vector.Manager the pipeline writes through.
type Store interface {
	LookupExisting(ctx context.Context, name string, match map[string]any, limit int) ([]vector.Match, error)
	Store(ctx context.Context, name string, texts []string, metadatas []vector.Metadata, ids []string) error
}

type Pipeline struct {
	store       Store
	dispatcher  *text.Dispatcher
	fields      *extract.Registry
	lookupLimit int
	locks       *keylock.Map
}

func NewPipeline(store Store, dispatcher *text.Dispatcher, fields *extract.Registry, lookupLimit int) *Pipeline {
	if lookupLimit <= 0 {
		lookupLimit = DefaultLookupLimit
	}
	return &Pipeline{
		store:       store,
		dispatcher:  dispatcher,
		fields:      fields,
		lookupLimit: lookupLimit,
		locks:       keylock.New(),
	}
}

// ChunkID is the record id of chunk index of a document. Re-ingesting the
// same document yields the same ids.
func ChunkID(sourceID string, sourceType text.SourceType, index int) string {
	return fmt.Sprintf("%s_%s_%d", sourceID, sourceType, index)
}

// Ingest indexes doc into collection unless a document with the same
// source id and type is already there, in which case it returns the stored
// chunk count with Cached set and writes nothing. Ingests of one identity
// into one collection are serialised.
func (p *Pipeline) Ingest(ctx context.Context, collection string, doc Document) (*Result, error) {
	doc.SourceID = strings.TrimSpace(doc.SourceID)
	if collection == "" {
		return nil, fmt.Errorf("%w: collection is required", apperr.ErrValidation)
	}
	if doc.SourceID == "" {
		return nil, fmt.Errorf("%w: source_id is required", apperr.ErrValidation)
	}
	if !doc.SourceType.Valid() {
		return nil, fmt.Errorf("%w: unknown source_type %q", apperr.ErrValidation, doc.SourceType)
	}

	structured := p.fields.Extract(doc.SourceType, doc.Content)
	flat := vector.Flatten("structured_data", structured)

	unlock := p.locks.Lock(collection + "\x00" + doc.SourceID + "\x00" + string(doc.SourceType))
	defer unlock()

	existing, err := p.store.LookupExisting(ctx, collection, map[string]any{
		"source_id":   doc.SourceID,
		"source_type": string(doc.SourceType),
	}, p.lookupLimit)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		slog.InfoContext(ctx, "document already indexed",
			"collection", collection, "source_id", doc.SourceID, "source_type", doc.SourceType, "chunks", len(existing))
		return &Result{SourceID: doc.SourceID, Chunks: len(existing), StructuredData: structured, Cached: true}, nil
	}

	chunks := p.dispatcher.Dispatch(doc.SourceType, doc.Content)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s %s produced no chunks", apperr.ErrExtractionEmpty, doc.SourceType, doc.SourceID)
	}

	metadatas := make([]vector.Metadata, len(chunks))
	ids := make([]string, len(chunks))
	for i := range chunks {
		metadatas[i] = vector.Metadata{
			"source_id":     doc.SourceID,
			"source_type":   string(doc.SourceType),
			"document_name": doc.DocumentName,
			"chunk_index":   i,
		}.Merge(flat)
		ids[i] = ChunkID(doc.SourceID, doc.SourceType, i)
	}

	if err := p.store.Store(ctx, collection, chunks, metadatas, ids); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "document indexed",
		"collection", collection, "source_id", doc.SourceID, "source_type", doc.SourceType, "chunks", len(chunks))
	return &Result{SourceID: doc.SourceID, Chunks: len(chunks), StructuredData: structured}, nil
}
