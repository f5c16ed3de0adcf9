package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalid         = errors.New("invalid configuration")
)

const (
	BackendWeaviate = "weaviate"
	BackendMemory   = "memory"
)

type Config struct {
	DBHost        string `envconfig:"DB_HOST" default:"postgres"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"talentrag"`
	DBPass        string `envconfig:"DB_PASS" default:"password"`
	DBName        string `envconfig:"DB_NAME" default:"talentrag"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Vector index
	VectorBackend  string `envconfig:"VECTOR_BACKEND" default:"weaviate"`
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd    string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost      string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP      string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	NSQMaxMsgSize int64  `envconfig:"NSQ_MAX_MSG_SIZE" default:"10485760"` // 10MB

	EnableAPI          bool `envconfig:"ENABLE_API" default:"true"`
	EnableIngestWorker bool `envconfig:"ENABLE_INGEST_WORKER" default:"false"`
	IngestConcurrency  int  `envconfig:"INGEST_CONCURRENCY" default:"8"`

	// Embeddings
	EmbedProvider string `envconfig:"EMBED_PROVIDER" default:"gemini"`
	EmbedModel    string `envconfig:"EMBED_MODEL"`
	EmbedBaseURL  string `envconfig:"EMBED_BASE_URL"`
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`

	// Optional second ranking pass over similarity results
	RerankProvider string `envconfig:"RERANK_PROVIDER" default:"none"`
	RerankAPIKey   string `envconfig:"RERANK_API_KEY"`
	RerankBaseURL  string `envconfig:"RERANK_BASE_URL"`

	// Chunking and collections
	ChunkSize         int    `envconfig:"CHUNK_SIZE" default:"800"`
	ChunkOverlap      int    `envconfig:"CHUNK_OVERLAP" default:"120"`
	DefaultCollection string `envconfig:"DEFAULT_COLLECTION" default:"resumes"`
	FactsPrefix       string `envconfig:"FACTS_PREFIX" default:"facts__"`
	MaxCollections    int    `envconfig:"MAX_COLLECTIONS" default:"256"`
	ScanLimit         int    `envconfig:"SCAN_LIMIT" default:"1000"`
	DedupLookupLimit  int    `envconfig:"DEDUP_LOOKUP_LIMIT" default:"1000"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"20"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"./uploads"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// env vars set in the shell win over both files
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.DefaultCollection == "" {
		return fmt.Errorf("%w: DEFAULT_COLLECTION", ErrMissingRequired)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive", ErrInvalid)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be in [0, CHUNK_SIZE)", ErrInvalid)
	}
	if c.MaxCollections <= 0 {
		return fmt.Errorf("%w: MAX_COLLECTIONS must be positive", ErrInvalid)
	}
	if c.ScanLimit <= 0 || c.DedupLookupLimit <= 0 {
		return fmt.Errorf("%w: SCAN_LIMIT and DEDUP_LOOKUP_LIMIT must be positive", ErrInvalid)
	}

	switch c.VectorBackend {
	case BackendWeaviate, BackendMemory:
	default:
		return fmt.Errorf("%w: VECTOR_BACKEND %q", ErrInvalid, c.VectorBackend)
	}
	switch c.EmbedProvider {
	case "gemini", "ollama", "openai":
	default:
		return fmt.Errorf("%w: EMBED_PROVIDER %q", ErrInvalid, c.EmbedProvider)
	}
	switch c.RerankProvider {
	case "", "none":
	case "jina", "cohere":
		if c.RerankAPIKey == "" {
			return fmt.Errorf("%w: RERANK_API_KEY", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: RERANK_PROVIDER %q", ErrInvalid, c.RerankProvider)
	}
	return nil
}
