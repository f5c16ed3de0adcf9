package worker

import (
	"context"

	"talentrag/apps/backend/features/job"
	"talentrag/apps/backend/internal/ingest"
)

// Ingester is the part of ingest.Pipeline the consumer runs.
type Ingester interface {
	Ingest(ctx context.Context, collection string, doc ingest.Document) (*ingest.Result, error)
}

type FailedJobSaver interface {
	Save(ctx context.Context, j *job.Job) error
}
