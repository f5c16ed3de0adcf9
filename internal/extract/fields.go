package extract

import (
	"regexp"
	"strconv"
	"sync"

	"talentrag/apps/backend/internal/text"
)

// FieldExtractor pulls scalar fields out of a document body. A document the
// extractor does not recognise yields an empty map, never an error.
type FieldExtractor func(content string) map[string]any

// Registry maps source types to field extractors. Types without an
// extractor get no structured data.
type Registry struct {
	mu         sync.RWMutex
	extractors map[text.SourceType]FieldExtractor
}

// NewRegistry returns a registry with the resume experience extractor.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[text.SourceType]FieldExtractor)}
	r.Register(text.SourceResume, Experience)
	return r
}

func (r *Registry) Register(t text.SourceType, fn FieldExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[t] = fn
}

func (r *Registry) Extract(t text.SourceType, content string) map[string]any {
	r.mu.RLock()
	fn, ok := r.extractors[t]
	r.mu.RUnlock()
	if !ok {
		return map[string]any{}
	}
	fields := fn(content)
	if fields == nil {
		return map[string]any{}
	}
	return fields
}

// longer unit forms come first so "года" is not cut to "год"
var experienceRe = regexp.MustCompile(`(?i)опыт\s+работы\s*[—-]?\s*(\d+)\s*(?:года|год|лет)?\s*(\d+)?\s*(?:месяцев|месяца|месяц)?`)

// Experience reads the "Опыт работы N лет M месяцев" line of a resume into
// total_experience_months.
func Experience(content string) map[string]any {
	m := experienceRe.FindStringSubmatch(content)
	if m == nil {
		return map[string]any{}
	}
	years, _ := strconv.Atoi(m[1])
	months := 0
	if m[2] != "" {
		months, _ = strconv.Atoi(m[2])
	}
	total := years*12 + months
	if total <= 0 {
		return map[string]any{}
	}
	return map[string]any{"total_experience_months": total}
}
