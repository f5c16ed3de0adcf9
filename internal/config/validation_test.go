package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"talentrag/apps/backend/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		DBHost:            "localhost",
		DBUser:            "user",
		DBName:            "db",
		VectorBackend:     config.BackendMemory,
		EmbedProvider:     "gemini",
		ChunkSize:         800,
		ChunkOverlap:      120,
		DefaultCollection: "resumes",
		MaxCollections:    16,
		ScanLimit:         100,
		DedupLookupLimit:  100,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *config.Config)
		errIs  error
	}{
		{name: "Valid Config", modify: func(c *config.Config) {}},
		{name: "Missing DBHost", modify: func(c *config.Config) { c.DBHost = "" }, errIs: config.ErrMissingRequired},
		{name: "Missing DBUser", modify: func(c *config.Config) { c.DBUser = "" }, errIs: config.ErrMissingRequired},
		{name: "Missing DBName", modify: func(c *config.Config) { c.DBName = "" }, errIs: config.ErrMissingRequired},
		{name: "Missing default collection", modify: func(c *config.Config) { c.DefaultCollection = "" }, errIs: config.ErrMissingRequired},
		{name: "Zero chunk size", modify: func(c *config.Config) { c.ChunkSize = 0 }, errIs: config.ErrInvalid},
		{name: "Overlap equals size", modify: func(c *config.Config) { c.ChunkOverlap = 800 }, errIs: config.ErrInvalid},
		{name: "Negative overlap", modify: func(c *config.Config) { c.ChunkOverlap = -1 }, errIs: config.ErrInvalid},
		{name: "Zero registry capacity", modify: func(c *config.Config) { c.MaxCollections = 0 }, errIs: config.ErrInvalid},
		{name: "Zero dedup limit", modify: func(c *config.Config) { c.DedupLookupLimit = 0 }, errIs: config.ErrInvalid},
		{name: "Unknown backend", modify: func(c *config.Config) { c.VectorBackend = "faiss" }, errIs: config.ErrInvalid},
		{name: "Unknown provider", modify: func(c *config.Config) { c.EmbedProvider = "cohere" }, errIs: config.ErrInvalid},
		{name: "Reranker with key", modify: func(c *config.Config) { c.RerankProvider = "jina"; c.RerankAPIKey = "k" }},
		{name: "Reranker without key", modify: func(c *config.Config) { c.RerankProvider = "cohere" }, errIs: config.ErrMissingRequired},
		{name: "Unknown reranker", modify: func(c *config.Config) { c.RerankProvider = "bm25" }, errIs: config.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.errIs == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.errIs)
		})
	}
}
