package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentrag/apps/backend/internal/adapter/memory"
	"talentrag/apps/backend/internal/vector"
)

func seeded(t *testing.T) *memory.Store {
	s := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, "resumes"))
	require.NoError(t, s.Add(ctx, "resumes", []vector.Record{
		{ID: "a", Text: "go backend", Vector: []float32{1, 0}, Metadata: vector.Metadata{"city": "Moscow", "years": 5}},
		{ID: "b", Text: "python ml", Vector: []float32{0, 1}, Metadata: vector.Metadata{"city": "Kazan", "years": 2}},
		{ID: "c", Text: "go devops", Vector: []float32{0.9, 0.1}, Metadata: vector.Metadata{"city": "Kazan", "years": 7}},
	}))
	return s
}

func TestStore_Query(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	got, err := s.Query(ctx, "resumes", []float32{1, 0}, nil, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	require.NotNil(t, got[0].Distance)
	assert.InDelta(t, 0, *got[0].Distance, 1e-6)

	// the filter applies before ranking
	got, err = s.Query(ctx, "resumes", []float32{1, 0}, vector.Clause("city", vector.OpEq, "Kazan"), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
}

func TestStore_GetAndUpdate(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	got, err := s.Get(ctx, "resumes", vector.Clause("years", vector.OpGte, 5), 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.Get(ctx, "resumes", nil, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, s.Update(ctx, "resumes", []string{"b"}, []vector.Metadata{{"years": 6}}))
	got, err = s.Get(ctx, "resumes", vector.Clause("years", vector.OpGte, 5), 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "Kazan", got[1].Metadata["city"])

	assert.Error(t, s.Update(ctx, "resumes", []string{"zzz"}, []vector.Metadata{{}}))
}

func TestStore_AddReplacesSameID(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "resumes", []vector.Record{{ID: "a", Text: "rewritten", Vector: []float32{1, 0}}}))
	n, err := s.Count(ctx, "resumes")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_Lifecycle(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	ok, err := s.CollectionExists(ctx, "facts__1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Count(ctx, "facts__1")
	assert.Error(t, err)

	require.NoError(t, s.DeleteCollection(ctx, "facts__1"))
	require.NoError(t, s.CreateCollection(ctx, "facts__1"))
	require.NoError(t, s.CreateCollection(ctx, "facts__1"))
	ok, _ = s.CollectionExists(ctx, "facts__1")
	assert.True(t, ok)
}
