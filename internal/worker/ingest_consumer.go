package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"talentrag/apps/backend/features/job"
	"talentrag/apps/backend/internal/apperr"
	"talentrag/apps/backend/internal/middleware"
)

const (
	HandlerName = "ingest"

	DefaultMaxAttempts = 5
	ingestTimeout      = 120 * time.Second
)

// IngestConsumer runs queued documents through the ingestion pipeline.
// Documents that cannot succeed, or that keep failing, are recorded as
// failed jobs and acked.
type IngestConsumer struct {
	pipeline    Ingester
	jobs        FailedJobSaver
	maxAttempts uint16
}

func NewIngestConsumer(p Ingester, jobs FailedJobSaver, maxAttempts uint16) *IngestConsumer {
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &IngestConsumer{pipeline: p, jobs: jobs, maxAttempts: maxAttempts}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// poison pill, never requeue
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	ingestCtx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()

	res, err := h.pipeline.Ingest(ingestCtx, payload.Collection, payload.Document)
	if err == nil {
		slog.InfoContext(ctx, "document ingested",
			"collection", payload.Collection,
			"source_id", res.SourceID,
			"chunks", res.Chunks,
			"cached", res.Cached,
		)
		return nil
	}

	if !permanent(err) && m.Attempts < h.maxAttempts {
		slog.WarnContext(ctx, "ingest failed, requeueing", "error", err, "source_id", payload.Document.SourceID, "attempt", m.Attempts)
		return err
	}

	slog.ErrorContext(ctx, "ingest failed", "error", err, "source_id", payload.Document.SourceID, "attempt", m.Attempts)
	h.saveFailed(ctx, payload, m.Body, err)
	return nil
}

func (h *IngestConsumer) saveFailed(ctx context.Context, payload IngestPayload, body []byte, cause error) {
	if h.jobs == nil {
		return
	}
	failed := &job.Job{
		SourceID:   payload.Document.SourceID,
		Collection: payload.Collection,
		Handler:    HandlerName,
		Payload:    json.RawMessage(body),
		Error:      cause.Error(),
	}
	if err := h.jobs.Save(ctx, failed); err != nil {
		slog.ErrorContext(ctx, "failed to save failed job", "error", err)
		return
	}
	slog.InfoContext(ctx, "saved failed job for retry", "job_id", failed.ID)
}

// permanent reports whether retrying the same document can never help.
func permanent(err error) bool {
	return errors.Is(err, apperr.ErrValidation) ||
		errors.Is(err, apperr.ErrExtractionEmpty) ||
		errors.Is(err, apperr.ErrUnsupportedType)
}
