package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"talentrag/apps/backend/features/job"
	"talentrag/apps/backend/internal/ingest"
)

type MockIngester struct{ mock.Mock }

func (m *MockIngester) Ingest(ctx context.Context, collection string, doc ingest.Document) (*ingest.Result, error) {
	args := m.Called(ctx, collection, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingest.Result), args.Error(1)
}

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}
