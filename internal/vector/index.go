package vector

import "context"

// Metadata is the flat scalar mapping stored with every record.
type Metadata map[string]any

// Record is one persisted chunk.
type Record struct {
	ID       string
	Text     string
	Metadata Metadata
	Vector   []float32
}

// Match is a record returned from a scan or a similarity query. Distance is
// only set for similarity queries (cosine distance, lower is closer).
type Match struct {
	ID       string   `json:"id"`
	Text     string   `json:"document"`
	Metadata Metadata `json:"metadata"`
	Distance *float32 `json:"distance,omitempty"`
}

// Index is the external vector store. Collections use cosine distance.
// DeleteCollection must succeed when the collection does not exist.
type Index interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string) error
	DeleteCollection(ctx context.Context, name string) error
	Add(ctx context.Context, name string, records []Record) error
	Get(ctx context.Context, name string, where *Where, limit int) ([]Match, error)
	Query(ctx context.Context, name string, vector []float32, where *Where, topK int) ([]Match, error)
	Update(ctx context.Context, name string, ids []string, metadatas []Metadata) error
	Count(ctx context.Context, name string) (int, error)
}

// Embedder maps texts to vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
