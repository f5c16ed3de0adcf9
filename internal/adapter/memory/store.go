package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"talentrag/apps/backend/internal/vector"
)

// Store is an in-process vector.Index using brute-force cosine distance.
// It keeps nothing across restarts and serves local runs and tests.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	order   []string
	records map[string]vector.Record
}

func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *Store) CreateCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = &collection{records: make(map[string]vector.Record)}
	}
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

// Add writes records, replacing any with the same id.
func (s *Store) Add(ctx context.Context, name string, records []vector.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return err
	}
	for _, r := range records {
		if _, ok := c.records[r.ID]; !ok {
			c.order = append(c.order, r.ID)
		}
		r.Metadata = vector.Metadata{}.Merge(r.Metadata)
		c.records[r.ID] = r
	}
	return nil
}

// Get returns matching records in insertion order.
func (s *Store) Get(ctx context.Context, name string, where *vector.Where, limit int) ([]vector.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(name)
	if err != nil {
		return nil, err
	}
	var out []vector.Match
	for _, id := range c.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		r := c.records[id]
		if where.Matches(r.Metadata) {
			out = append(out, match(r, nil))
		}
	}
	return out, nil
}

func (s *Store) Query(ctx context.Context, name string, vec []float32, where *vector.Where, topK int) ([]vector.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(name)
	if err != nil {
		return nil, err
	}

	type scored struct {
		rec  vector.Record
		dist float32
	}
	var candidates []scored
	for _, id := range c.order {
		r := c.records[id]
		if !where.Matches(r.Metadata) {
			continue
		}
		candidates = append(candidates, scored{rec: r, dist: cosineDistance(vec, r.Vector)})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if topK < len(candidates) {
		candidates = candidates[:topK]
	}

	out := make([]vector.Match, len(candidates))
	for i, sc := range candidates {
		d := sc.dist
		out[i] = match(sc.rec, &d)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, name string, ids []string, metadatas []vector.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := c.records[id]; !ok {
			return fmt.Errorf("record %q not found in %s", id, name)
		}
	}
	for i, id := range ids {
		r := c.records[id]
		r.Metadata = r.Metadata.Merge(metadatas[i])
		c.records[id] = r
	}
	return nil
}

func (s *Store) Count(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(name)
	if err != nil {
		return 0, err
	}
	return len(c.order), nil
}

func (s *Store) get(name string) (*collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", name)
	}
	return c, nil
}

func match(r vector.Record, dist *float32) vector.Match {
	return vector.Match{ID: r.ID, Text: r.Text, Metadata: vector.Metadata{}.Merge(r.Metadata), Distance: dist}
}

func cosineDistance(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}
