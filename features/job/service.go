package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"talentrag/apps/backend/internal/config"
)

const defaultPublishTimeout = 5 * time.Second

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo    Repository
	pub     EventPublisher
	logger  *slog.Logger
	timeout time.Duration
}

func NewService(repo Repository, pub EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, logger: logger, timeout: defaultPublishTimeout}
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Retry publishes the job's payload to the ingest topic again and removes
// the job once the publish is confirmed.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if !json.Valid(job.Payload) {
		return fmt.Errorf("job %s has an invalid payload", id)
	}

	pubCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(config.TopicIngestDocument, job.Payload)
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-pubCtx.Done():
		return fmt.Errorf("timeout waiting for NSQ publish: %w", pubCtx.Err())
	}

	s.logger.InfoContext(ctx, "failed job republished", "job_id", id, "source_id", job.SourceID, "collection", job.Collection)
	return s.repo.Delete(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
