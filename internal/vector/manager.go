package vector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"talentrag/apps/backend/internal/apperr"
	"talentrag/apps/backend/internal/keylock"
)

const (
	DefaultCollection  = "resumes"
	DefaultFactsPrefix = "facts__"
	DefaultCapacity    = 256
)

// Collection is a handle on one external collection, bound to the embedder
// it was created with.
type Collection struct {
	Name  string
	index Index
	embed Embedder
}

func (c *Collection) Add(ctx context.Context, texts []string, metadatas []Metadata, ids []string) error {
	if len(texts) != len(metadatas) || len(texts) != len(ids) {
		return fmt.Errorf("%w: texts, metadatas and ids must have the same length (%d/%d/%d)",
			apperr.ErrValidation, len(texts), len(metadatas), len(ids))
	}
	if len(texts) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: id at position %d is empty", apperr.ErrValidation, i)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate id %q", apperr.ErrValidation, id)
		}
		seen[id] = true
		if err := metadatas[i].Validate(); err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
		}
	}

	vectors, err := c.embed.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d texts for %s: %w: %w", len(texts), c.Name, apperr.ErrCollectionUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embed %s: got %d vectors for %d texts: %w", c.Name, len(vectors), len(texts), apperr.ErrCollectionUnavailable)
	}

	records := make([]Record, len(texts))
	for i := range texts {
		records[i] = Record{ID: ids[i], Text: texts[i], Metadata: metadatas[i], Vector: vectors[i]}
	}
	if err := c.index.Add(ctx, c.Name, records); err != nil {
		return fmt.Errorf("add to %s: %w: %w", c.Name, apperr.ErrCollectionUnavailable, err)
	}
	return nil
}

// Query ranks records by similarity to text. The filter restricts the
// candidate set before ranking.
func (c *Collection) Query(ctx context.Context, text string, where *Where, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive", apperr.ErrValidation)
	}
	vectors, err := c.embed.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query for %s: %w: %w", c.Name, apperr.ErrCollectionUnavailable, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query for %s: got %d vectors: %w", c.Name, len(vectors), apperr.ErrCollectionUnavailable)
	}
	matches, err := c.index.Query(ctx, c.Name, vectors[0], where, topK)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w: %w", c.Name, apperr.ErrCollectionUnavailable, err)
	}
	return matches, nil
}

// Get scans records by metadata only. Order is not defined.
func (c *Collection) Get(ctx context.Context, where *Where, limit int) ([]Match, error) {
	matches, err := c.index.Get(ctx, c.Name, where, limit)
	if err != nil {
		return nil, fmt.Errorf("get from %s: %w: %w", c.Name, apperr.ErrCollectionUnavailable, err)
	}
	return matches, nil
}

func (c *Collection) Update(ctx context.Context, ids []string, metadatas []Metadata) error {
	if len(ids) == 0 || len(ids) != len(metadatas) {
		return fmt.Errorf("%w: ids and metadatas must be same-length, non-empty arrays", apperr.ErrValidation)
	}
	for _, m := range metadatas {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
		}
	}
	if err := c.index.Update(ctx, c.Name, ids, metadatas); err != nil {
		return fmt.Errorf("update %s: %w: %w", c.Name, apperr.ErrCollectionUnavailable, err)
	}
	return nil
}

func (c *Collection) Count(ctx context.Context) (int, error) {
	n, err := c.index.Count(ctx, c.Name)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w: %w", c.Name, apperr.ErrCollectionUnavailable, err)
	}
	return n, nil
}

type entry struct {
	coll *Collection
	used uint64
}

// Manager owns the collection handles for the lifetime of the service.
// Handle creation and reset are serialised per name; at most capacity handles are
// cached and the least recently used one is dropped first. Dropping a
// handle never touches stored data.
type Manager struct {
	index       Index
	embed       Embedder
	defaultName string
	factsPrefix string
	capacity    int

	mu      sync.Mutex
	handles map[string]*entry
	clock   uint64
	group   singleflight.Group
	names   *keylock.Map
}

type Option func(*Manager)

func WithDefaultCollection(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.defaultName = name
		}
	}
}

func WithFactsPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.factsPrefix = prefix
		}
	}
}

func WithCapacity(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.capacity = n
		}
	}
}

func NewManager(index Index, embed Embedder, opts ...Option) *Manager {
	m := &Manager{
		index:       index,
		embed:       embed,
		defaultName: DefaultCollection,
		factsPrefix: DefaultFactsPrefix,
		capacity:    DefaultCapacity,
		handles:     make(map[string]*entry),
		names:       keylock.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Default() string {
	return m.defaultName
}

// FactsCollection names the per-chat collection for chatID.
func (m *Manager) FactsCollection(chatID string) (string, error) {
	if chatID == "" {
		return "", fmt.Errorf("%w: chat id is required", apperr.ErrValidation)
	}
	return m.factsPrefix + chatID, nil
}

// GetOrCreate returns the cached handle, attaching to an existing external
// collection or creating one on a miss.
func (m *Manager) GetOrCreate(ctx context.Context, name string) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is required", apperr.ErrValidation)
	}
	if c := m.cached(name); c != nil {
		return c, nil
	}

	// waiters share the flight, so one caller's cancellation must not fail the rest
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := m.group.Do(name, func() (any, error) {
		ctx := flightCtx
		unlock := m.names.Lock(name)
		defer unlock()

		if c := m.cached(name); c != nil {
			return c, nil
		}
		exists, err := m.index.CollectionExists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("lookup collection %s: %w: %w", name, apperr.ErrCollectionUnavailable, err)
		}
		if !exists {
			if err := m.index.CreateCollection(ctx, name); err != nil {
				// another process may have created it first
				ok, checkErr := m.index.CollectionExists(ctx, name)
				if checkErr != nil || !ok {
					return nil, fmt.Errorf("create collection %s: %w: %w", name, apperr.ErrCollectionUnavailable, err)
				}
			} else {
				slog.InfoContext(ctx, "collection created", "collection", name)
			}
		}
		c := &Collection{Name: name, index: m.index, embed: m.embed}
		m.put(name, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Collection), nil
}

// Reset deletes the external collection and drops its handle. The next
// GetOrCreate starts from an empty collection. A GetOrCreate for the same
// name waits until the reset is done.
func (m *Manager) Reset(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name is required", apperr.ErrValidation)
	}
	unlock := m.names.Lock(name)
	defer unlock()

	m.Evict(name)
	err := m.index.DeleteCollection(ctx, name)
	m.Evict(name)
	if err != nil {
		return fmt.Errorf("delete collection %s: %w: %w", name, apperr.ErrCollectionUnavailable, err)
	}
	slog.InfoContext(ctx, "collection reset", "collection", name)
	return nil
}

// Evict drops the cached handle for name, if any.
func (m *Manager) Evict(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handles[name]; !ok {
		return false
	}
	delete(m.handles, name)
	return true
}

// Names lists the collections with a cached handle.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.handles))
	for n := range m.handles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) Store(ctx context.Context, name string, texts []string, metadatas []Metadata, ids []string) error {
	c, err := m.GetOrCreate(ctx, name)
	if err != nil {
		return err
	}
	return c.Add(ctx, texts, metadatas, ids)
}

// LookupExisting returns up to limit records whose metadata equals every
// entry of match. An empty result means nothing was ingested yet.
func (m *Manager) LookupExisting(ctx context.Context, name string, match map[string]any, limit int) ([]Match, error) {
	if len(match) == 0 {
		return nil, fmt.Errorf("%w: lookup needs at least one field", apperr.ErrValidation)
	}
	c, err := m.GetOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, Equals(match), limit)
}

func (m *Manager) Query(ctx context.Context, name, text string, where *Where, topK int) ([]Match, error) {
	c, err := m.GetOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.Query(ctx, text, where, topK)
}

func (m *Manager) Scan(ctx context.Context, name string, where *Where, limit int) ([]Match, error) {
	c, err := m.GetOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, where, limit)
}

func (m *Manager) Update(ctx context.Context, name string, ids []string, metadatas []Metadata) error {
	c, err := m.GetOrCreate(ctx, name)
	if err != nil {
		return err
	}
	return c.Update(ctx, ids, metadatas)
}

// Count returns the number of records in the collection.
func (m *Manager) Count(ctx context.Context, name string) (int, error) {
	c, err := m.GetOrCreate(ctx, name)
	if err != nil {
		return 0, err
	}
	return c.Count(ctx)
}

func (m *Manager) cached(name string) *Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.handles[name]
	if !ok {
		return nil
	}
	m.clock++
	e.used = m.clock
	return e.coll
}

func (m *Manager) put(name string, c *Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handles[name]; !ok && len(m.handles) >= m.capacity {
		var oldest string
		var oldestUsed uint64
		for n, e := range m.handles {
			if oldest == "" || e.used < oldestUsed {
				oldest, oldestUsed = n, e.used
			}
		}
		delete(m.handles, oldest)
		slog.Debug("collection handle evicted", "collection", oldest)
	}
	m.clock++
	m.handles[name] = &entry{coll: c, used: m.clock}
}
