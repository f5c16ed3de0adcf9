package weaviate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"talentrag/apps/backend/internal/vector"
)

// Store implements vector.Index on Weaviate. Each collection is one class
// with externally supplied vectors and cosine distance. Metadata keys become
// properties on first write, typed from the first value seen.
type Store struct {
	client *weaviate.Client
	schema vector.SchemaClient

	mu    sync.RWMutex
	types map[string]map[string]string
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{
		client: client,
		schema: vector.NewWeaviateClientAdapter(client),
		types:  make(map[string]map[string]string),
	}
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	return s.schema.ClassExists(ctx, vector.ClassName(name))
}

func (s *Store) CreateCollection(ctx context.Context, name string) error {
	class := vector.ClassName(name)
	s.forget(class)
	return vector.EnsureClass(ctx, s.schema, class)
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	class := vector.ClassName(name)
	s.forget(class)
	return s.schema.DeleteClass(ctx, class)
}

func (s *Store) Add(ctx context.Context, name string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}
	class := vector.ClassName(name)
	types, err := s.ensureProperties(ctx, class, records)
	if err != nil {
		return err
	}

	objects := make([]*models.Object, 0, len(records))
	for _, r := range records {
		props := encodeProperties(r.Metadata, types)
		props[propContent] = r.Text
		props[propRecordID] = r.ID
		objects = append(objects, &models.Object{
			Class:      class,
			ID:         ObjectID(name, r.ID),
			Properties: props,
			Vector:     r.Vector,
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return err
	}
	for _, res := range resp {
		if res.Result != nil && res.Result.Errors != nil && len(res.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch object %s: %s", res.ID, res.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, name string, where *vector.Where, limit int) ([]vector.Match, error) {
	class := vector.ClassName(name)
	types, err := s.propertyTypes(ctx, class)
	if err != nil {
		return nil, err
	}
	if unknownField(where, types) {
		return nil, nil
	}

	q := s.client.GraphQL().Get().
		WithClassName(class).
		WithFields(selectFields(types, false)...)
	if where != nil {
		wb, err := buildWhere(where, types)
		if err != nil {
			return nil, err
		}
		q = q.WithWhere(wb)
	}
	if limit > 0 {
		q = q.WithLimit(limit)
	}

	res, err := q.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", res.Errors[0].Message)
	}
	return decodeMatches(res.Data, class, types), nil
}

func (s *Store) Query(ctx context.Context, name string, vec []float32, where *vector.Where, topK int) ([]vector.Match, error) {
	class := vector.ClassName(name)
	types, err := s.propertyTypes(ctx, class)
	if err != nil {
		return nil, err
	}
	if unknownField(where, types) {
		return nil, nil
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)
	q := s.client.GraphQL().Get().
		WithClassName(class).
		WithNearVector(nearVector).
		WithLimit(topK).
		WithFields(selectFields(types, true)...)
	if where != nil {
		wb, err := buildWhere(where, types)
		if err != nil {
			return nil, err
		}
		q = q.WithWhere(wb)
	}

	res, err := q.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", res.Errors[0].Message)
	}
	return decodeMatches(res.Data, class, types), nil
}

// Update merges metadatas[i] into the record ids[i]. Keys not mentioned are
// left as they are.
func (s *Store) Update(ctx context.Context, name string, ids []string, metadatas []vector.Metadata) error {
	class := vector.ClassName(name)
	records := make([]vector.Record, len(metadatas))
	for i, m := range metadatas {
		records[i] = vector.Record{Metadata: m}
	}
	types, err := s.ensureProperties(ctx, class, records)
	if err != nil {
		return err
	}

	for i, id := range ids {
		err := s.client.Data().Updater().
			WithMerge().
			WithClassName(class).
			WithID(ObjectID(name, id).String()).
			WithProperties(encodeProperties(metadatas[i], types)).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("update %s: %w", id, err)
		}
	}
	return nil
}

func (s *Store) Count(ctx context.Context, name string) (int, error) {
	class := vector.ClassName(name)
	meta := graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}

	res, err := s.client.GraphQL().Aggregate().
		WithClassName(class).
		WithFields(meta).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %s", res.Errors[0].Message)
	}

	agg, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	rows, ok := agg[class].([]interface{})
	if !ok || len(rows) == 0 {
		return 0, nil
	}
	row, _ := rows[0].(map[string]interface{})
	m, _ := row["meta"].(map[string]interface{})
	count, _ := m["count"].(float64)
	return int(count), nil
}

// ensureProperties declares the metadata keys of records the class does not
// have yet and returns the resulting property types.
func (s *Store) ensureProperties(ctx context.Context, class string, records []vector.Record) (map[string]string, error) {
	known, err := s.propertyTypes(ctx, class)
	if err != nil {
		return nil, err
	}

	var missing []*models.Property
	seen := make(map[string]bool)
	for _, r := range records {
		for k, v := range r.Metadata {
			p := PropertyName(k)
			if known[p] != "" || seen[p] || p == propContent || p == propRecordID {
				continue
			}
			seen[p] = true
			missing = append(missing, newProperty(p, v))
		}
	}
	if len(missing) == 0 {
		return known, nil
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].Name < missing[j].Name })

	if err := vector.EnsureProperties(ctx, s.schema, class, missing); err != nil {
		return nil, err
	}
	s.forget(class)
	return s.propertyTypes(ctx, class)
}

func (s *Store) propertyTypes(ctx context.Context, class string) (map[string]string, error) {
	s.mu.RLock()
	types, ok := s.types[class]
	s.mu.RUnlock()
	if ok {
		return types, nil
	}

	c, err := s.schema.GetClass(ctx, class)
	if err != nil {
		return nil, err
	}
	types = vector.PropertyTypes(c)

	s.mu.Lock()
	s.types[class] = types
	s.mu.Unlock()
	return types, nil
}

func (s *Store) forget(class string) {
	s.mu.Lock()
	delete(s.types, class)
	s.mu.Unlock()
}

func newProperty(name string, value any) *models.Property {
	p := &models.Property{Name: name}
	switch value.(type) {
	case bool:
		p.DataType = []string{vector.DataTypeBoolean}
	case float32, float64:
		p.DataType = []string{vector.DataTypeNumber}
	case int, int8, int16, int32, int64, uint, uint32, uint64:
		p.DataType = []string{vector.DataTypeInt}
	default:
		p.DataType = []string{vector.DataTypeText}
		p.Tokenization = "field"
	}
	return p
}

func encodeProperties(meta vector.Metadata, types map[string]string) map[string]interface{} {
	props := make(map[string]interface{}, len(meta)+2)
	for k, v := range meta {
		p := PropertyName(k)
		switch types[p] {
		case vector.DataTypeInt:
			if f, ok := vector.AsFloat(v); ok {
				v = int64(f)
			}
		case vector.DataTypeNumber:
			if f, ok := vector.AsFloat(v); ok {
				v = f
			}
		case vector.DataTypeText:
			if _, ok := v.(string); !ok {
				v = fmt.Sprint(v)
			}
		}
		props[p] = v
	}
	return props
}

func selectFields(types map[string]string, withDistance bool) []graphql.Field {
	names := make([]string, 0, len(types))
	for n := range types {
		names = append(names, n)
	}
	sort.Strings(names)

	fields := make([]graphql.Field, 0, len(names)+1)
	for _, n := range names {
		fields = append(fields, graphql.Field{Name: n})
	}
	additional := []graphql.Field{{Name: "id"}}
	if withDistance {
		additional = append(additional, graphql.Field{Name: "distance"})
	}
	return append(fields, graphql.Field{Name: "_additional", Fields: additional})
}

func decodeMatches(data map[string]models.JSONObject, class string, types map[string]string) []vector.Match {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	items, ok := get[class].([]interface{})
	if !ok {
		return nil
	}

	matches := make([]vector.Match, 0, len(items))
	for _, item := range items {
		props, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		m := vector.Match{Metadata: vector.Metadata{}}
		for k, v := range props {
			switch k {
			case "_additional":
				add, _ := v.(map[string]interface{})
				if d, ok := add["distance"].(float64); ok {
					dist := float32(d)
					m.Distance = &dist
				}
			case propContent:
				m.Text, _ = v.(string)
			case propRecordID:
				m.ID, _ = v.(string)
			default:
				if v == nil {
					continue
				}
				if f, ok := v.(float64); ok && types[k] == vector.DataTypeInt {
					v = int(f)
				}
				m.Metadata[MetadataKey(k)] = v
			}
		}
		matches = append(matches, m)
	}
	return matches
}

// unknownField reports whether the filter names a property the class does
// not have. Such a filter can match nothing.
func unknownField(w *vector.Where, types map[string]string) bool {
	if w == nil {
		return false
	}
	if w.Operator == vector.OpAnd {
		for _, o := range w.Operands {
			if unknownField(o, types) {
				return true
			}
		}
		return false
	}
	_, ok := types[PropertyName(w.Field)]
	return !ok
}
