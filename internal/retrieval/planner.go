package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"talentrag/apps/backend/internal/apperr"
	"talentrag/apps/backend/internal/middleware"
	"talentrag/apps/backend/internal/vector"
)

// Filter is one metadata condition of a query. Operator accepts "$gte" as
// well as "gte".
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

type Request struct {
	QueryText string
	Filters   []Filter
	Where     *vector.Where
	TopK      int
}

// Searcher is the part of vector.Manager the planner reads through.
type Searcher interface {
	Query(ctx context.Context, name, text string, where *vector.Where, topK int) ([]vector.Match, error)
	Scan(ctx context.Context, name string, where *vector.Where, limit int) ([]vector.Match, error)
}

// Reranker reorders similarity results. It returns indices into docs,
// best first.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]int, error)
}

type Planner struct {
	store     Searcher
	logger    *QueryLogger
	reranker  Reranker
	scanLimit int
}

func NewPlanner(store Searcher, logger *QueryLogger) *Planner {
	return &Planner{store: store, logger: logger}
}

// SetScanLimit caps the number of records a scan without query text may
// return, whatever TopK asks for. Zero means no cap.
func (p *Planner) SetScanLimit(n int) {
	p.scanLimit = n
}

// SetReranker enables a second ranking pass over similarity results.
// Scans are never reranked.
func (p *Planner) SetReranker(r Reranker) {
	p.reranker = r
}

// BuildWhere turns filters into a where tree: nil for none, the clause
// itself for one, an $and of all clauses otherwise.
func BuildWhere(filters []Filter) (*vector.Where, error) {
	clauses := make([]*vector.Where, 0, len(filters))
	for i, f := range filters {
		c, err := clause(f.Field, f.Operator, f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: filter %d: %v", apperr.ErrValidation, i, err)
		}
		clauses = append(clauses, c)
	}
	return vector.And(clauses...), nil
}

// ParseWhere reads a document-style where object:
//
//	{"status": "confirmed"}
//	{"confidence": {"$gte": 0.5}}
//	{"$and": [{...}, {...}]}
//
// Sibling fields are combined with AND.
func ParseWhere(raw map[string]any) (*vector.Where, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []*vector.Where
	for _, k := range keys {
		v := raw[k]
		if k == "$and" {
			items, ok := v.([]any)
			if !ok || len(items) == 0 {
				return nil, fmt.Errorf("%w: $and needs a non-empty list", apperr.ErrValidation)
			}
			for _, item := range items {
				sub, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%w: $and items must be objects", apperr.ErrValidation)
				}
				w, err := ParseWhere(sub)
				if err != nil {
					return nil, err
				}
				clauses = append(clauses, w)
			}
			continue
		}
		if strings.HasPrefix(k, "$") {
			return nil, fmt.Errorf("%w: unsupported where key %q", apperr.ErrValidation, k)
		}

		ops, ok := v.(map[string]any)
		if !ok {
			c, err := clause(k, string(vector.OpEq), v)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
			}
			clauses = append(clauses, c)
			continue
		}
		opKeys := make([]string, 0, len(ops))
		for op := range ops {
			opKeys = append(opKeys, op)
		}
		sort.Strings(opKeys)
		for _, op := range opKeys {
			c, err := clause(k, op, ops[op])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
			}
			clauses = append(clauses, c)
		}
	}
	return vector.And(clauses...), nil
}

func clause(field, operator string, value any) (*vector.Where, error) {
	if strings.TrimSpace(field) == "" {
		return nil, fmt.Errorf("field is required")
	}
	op, err := vector.ParseOperator(operator)
	if err != nil {
		return nil, err
	}
	if op.IsList() {
		values := vector.ListValues(value)
		if len(values) == 0 {
			return nil, fmt.Errorf("%s on %s needs a non-empty list", op, field)
		}
		for _, v := range values {
			if !vector.IsScalar(v) {
				return nil, fmt.Errorf("%s on %s: list items must be scalars", op, field)
			}
		}
		return vector.Clause(field, op, values), nil
	}
	if !vector.IsScalar(value) {
		return nil, fmt.Errorf("%s on %s needs a scalar value", op, field)
	}
	return vector.Clause(field, op, value), nil
}

// Search runs a similarity query when QueryText is set and a plain
// metadata scan otherwise. Both are bounded by TopK.
func (p *Planner) Search(ctx context.Context, collection string, req Request) ([]vector.Match, error) {
	start := time.Now()
	if req.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive", apperr.ErrValidation)
	}
	where, err := BuildWhere(req.Filters)
	if err != nil {
		return nil, err
	}
	where = vector.And(req.Where, where)

	mode := "similarity"
	var matches []vector.Match
	if strings.TrimSpace(req.QueryText) != "" {
		matches, err = p.store.Query(ctx, collection, req.QueryText, where, req.TopK)
		if err == nil && p.reranker != nil {
			matches = p.rerank(ctx, req.QueryText, matches)
		}
	} else {
		mode = "scan"
		limit := req.TopK
		if p.scanLimit > 0 && limit > p.scanLimit {
			limit = p.scanLimit
		}
		matches, err = p.store.Scan(ctx, collection, where, limit)
	}
	if err != nil {
		return nil, err
	}

	if p.logger != nil {
		p.logger.Log(QueryLogEntry{
			Collection:    collection,
			Query:         req.QueryText,
			Mode:          mode,
			Filtered:      where != nil,
			NumResults:    len(matches),
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
	}
	return matches, nil
}

// rerank falls back to the vector order when the reranker fails.
func (p *Planner) rerank(ctx context.Context, query string, matches []vector.Match) []vector.Match {
	if len(matches) < 2 {
		return matches
	}
	docs := make([]string, len(matches))
	for i, m := range matches {
		docs[i] = m.Text
	}
	indices, err := p.reranker.Rerank(ctx, query, docs)
	if err != nil {
		slog.WarnContext(ctx, "rerank failed, keeping vector order", "error", err)
		return matches
	}
	out := make([]vector.Match, 0, len(matches))
	for _, i := range indices {
		if i >= 0 && i < len(matches) {
			out = append(out, matches[i])
		}
	}
	if len(out) != len(matches) {
		slog.WarnContext(ctx, "rerank returned a partial order, keeping vector order", "got", len(out), "want", len(matches))
		return matches
	}
	return out
}
