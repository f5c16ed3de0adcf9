package resume

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"talentrag/apps/backend/internal/apperr"
	"talentrag/apps/backend/internal/extract"
	"talentrag/apps/backend/internal/identity"
	"talentrag/apps/backend/internal/retrieval"
	"talentrag/apps/backend/internal/text"
	"talentrag/apps/backend/internal/vector"
)

const (
	MaxSearchResults = 20
	MaxNameResults   = 50
	defaultResults   = 5
)

type Collections interface {
	Default() string
	Store(ctx context.Context, name string, texts []string, metadatas []vector.Metadata, ids []string) error
	Reset(ctx context.Context, name string) error
}

type Searcher interface {
	Search(ctx context.Context, collection string, req retrieval.Request) ([]vector.Match, error)
}

type Options struct {
	UploadDir    string
	ChunkSize    int
	ChunkOverlap int
}

type Service struct {
	repo        Repository
	collections Collections
	planner     Searcher
	opts        Options
}

func NewService(repo Repository, c Collections, p Searcher, opts Options) *Service {
	if opts.UploadDir == "" {
		opts.UploadDir = "./uploads"
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 800
		opts.ChunkOverlap = 120
	}
	return &Service{repo: repo, collections: c, planner: p, opts: opts}
}

// Upload extracts the file's text, keeps the original under the upload
// directory and indexes plain-text chunks tagged with the candidate's
// identity into the default collection.
func (s *Service) Upload(ctx context.Context, filename string, data []byte, name string) (*Upload, error) {
	if filename == "" {
		filename = "resume"
	}
	content, err := extract.Text(filename, data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: no text in %s", apperr.ErrExtractionEmpty, filename)
	}

	collection := s.collections.Default()
	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	dup, err := s.repo.ExistsByHash(ctx, collection, hash)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicate
	}

	chunks := text.ChunkText(content, s.opts.ChunkSize, s.opts.ChunkOverlap)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks from %s", apperr.ErrExtractionEmpty, filename)
	}

	cand := identity.Resolve(name)
	u := &Upload{
		UID:         strings.ReplaceAll(uuid.New().String(), "-", ""),
		Collection:  collection,
		Filename:    filename,
		ContentHash: hash,
		Name:        cand.RawName,
		NameNorm:    cand.NormalizedName,
		CandidateID: cand.CandidateID,
		Chunks:      len(chunks),
	}

	u.Path, err = s.saveFile(u.UID, filename, data)
	if err != nil {
		return nil, err
	}

	metadatas := make([]vector.Metadata, len(chunks))
	ids := make([]string, len(chunks))
	for i := range chunks {
		metadatas[i] = vector.Metadata{
			"source":       u.Path,
			"filename":     filename,
			"uid":          u.UID,
			"chunk_index":  i,
			"name":         u.Name,
			"name_norm":    u.NameNorm,
			"candidate_id": u.CandidateID,
		}
		ids[i] = fmt.Sprintf("%s_%d", u.UID, i)
	}

	if err := s.collections.Store(ctx, collection, chunks, metadatas, ids); err != nil {
		s.removeFile(u.Path)
		return nil, err
	}
	if err := s.repo.Save(ctx, u); err != nil {
		// chunks are already searchable, only the upload log is missing
		slog.ErrorContext(ctx, "failed to record resume upload", "error", err, "uid", u.UID)
		return u, nil
	}

	slog.InfoContext(ctx, "resume indexed", "uid", u.UID, "filename", filename, "chunks", len(chunks), "candidate_id", u.CandidateID)
	return u, nil
}

// Search ranks resume chunks against query. A candidate id filter wins over
// a name filter.
func (s *Service) Search(ctx context.Context, query string, n int, name, candidateID string) ([]vector.Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", apperr.ErrValidation)
	}
	if n == 0 {
		n = defaultResults
	}
	if n < 1 || n > MaxSearchResults {
		return nil, fmt.Errorf("%w: n must be between 1 and %d", apperr.ErrValidation, MaxSearchResults)
	}

	var where *vector.Where
	switch {
	case candidateID != "":
		where = vector.Clause("candidate_id", vector.OpEq, candidateID)
	case name != "":
		where = vector.Clause("name_norm", vector.OpEq, identity.Normalize(name))
	}
	return s.planner.Search(ctx, s.collections.Default(), retrieval.Request{QueryText: query, Where: where, TopK: n})
}

// FindByName uses the normalized name both as the query and as a filter.
func (s *Service) FindByName(ctx context.Context, name string, n int) ([]vector.Match, error) {
	norm := identity.Normalize(name)
	if norm == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrValidation)
	}
	if n == 0 {
		n = defaultResults
	}
	if n < 1 || n > MaxNameResults {
		return nil, fmt.Errorf("%w: n must be between 1 and %d", apperr.ErrValidation, MaxNameResults)
	}
	return s.planner.Search(ctx, s.collections.Default(), retrieval.Request{
		QueryText: norm,
		Where:     vector.Clause("name_norm", vector.OpEq, norm),
		TopK:      n,
	})
}

// Reset empties the default collection and forgets its uploads. Files
// already saved on disk are kept.
func (s *Service) Reset(ctx context.Context) error {
	collection := s.collections.Default()
	if err := s.collections.Reset(ctx, collection); err != nil {
		return err
	}
	n, err := s.repo.DeleteByCollection(ctx, collection)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "resume uploads cleared", "collection", collection, "uploads", n)
	return nil
}

func (s *Service) List(ctx context.Context) ([]Upload, error) {
	return s.repo.List(ctx)
}

func (s *Service) saveFile(uid, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(s.opts.UploadDir, 0o750); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	path := filepath.Clean(filepath.Join(s.opts.UploadDir, fmt.Sprintf("%s_%s", uid, filepath.Base(filename))))
	if err := os.WriteFile(path, data, 0o600); err != nil { // #nosec G306 -- path is uid + basename
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

func (s *Service) removeFile(path string) {
	if err := os.Remove(path); err != nil {
		slog.Warn("failed to clean up uploaded file", "error", err, "path", path)
	}
}
