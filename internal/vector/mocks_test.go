package vector_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"talentrag/apps/backend/internal/vector"
)

type MockIndex struct{ mock.Mock }

func (m *MockIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockIndex) CreateCollection(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockIndex) DeleteCollection(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockIndex) Add(ctx context.Context, name string, records []vector.Record) error {
	return m.Called(ctx, name, records).Error(0)
}

func (m *MockIndex) Get(ctx context.Context, name string, where *vector.Where, limit int) ([]vector.Match, error) {
	args := m.Called(ctx, name, where, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vector.Match), args.Error(1)
}

func (m *MockIndex) Query(ctx context.Context, name string, vec []float32, where *vector.Where, topK int) ([]vector.Match, error) {
	args := m.Called(ctx, name, vec, where, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vector.Match), args.Error(1)
}

func (m *MockIndex) Update(ctx context.Context, name string, ids []string, metadatas []vector.Metadata) error {
	return m.Called(ctx, name, ids, metadatas).Error(0)
}

func (m *MockIndex) Count(ctx context.Context, name string) (int, error) {
	args := m.Called(ctx, name)
	return args.Int(0), args.Error(1)
}

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// lengthEmbedder returns a one-dimensional vector per text.
type lengthEmbedder struct{}

func (lengthEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}
