package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"talentrag/apps/backend/features/job"
	"talentrag/apps/backend/internal/apperr"
	"talentrag/apps/backend/internal/ingest"
	"talentrag/apps/backend/internal/middleware"
	"talentrag/apps/backend/internal/text"
	"talentrag/apps/backend/internal/worker"
)

func newMessage(t *testing.T, attempts uint16) *nsq.Message {
	t.Helper()
	body, err := json.Marshal(worker.IngestPayload{
		Collection: "resumes",
		Document: ingest.Document{
			SourceID:     "cand-1",
			SourceType:   text.SourceResume,
			DocumentName: "ivanov.txt",
			Content:      "Опыт работы: 3 года",
		},
		CorrelationID: "corr-1",
	})
	require.NoError(t, err)
	return &nsq.Message{Body: body, Attempts: attempts}
}

func TestIngestConsumer_Success(t *testing.T) {
	p := new(MockIngester)
	jobs := new(MockJobRepo)
	consumer := worker.NewIngestConsumer(p, jobs, 3)

	p.On("Ingest", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Value(middleware.CorrelationKey) == "corr-1"
	}), "resumes", mock.MatchedBy(func(d ingest.Document) bool {
		return d.SourceID == "cand-1" && d.SourceType == text.SourceResume
	})).Return(&ingest.Result{SourceID: "cand-1", Chunks: 1}, nil)

	assert.NoError(t, consumer.HandleMessage(newMessage(t, 1)))
	p.AssertExpectations(t)
	jobs.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestIngestConsumer_PoisonPill(t *testing.T) {
	p := new(MockIngester)
	consumer := worker.NewIngestConsumer(p, new(MockJobRepo), 3)

	assert.NoError(t, consumer.HandleMessage(&nsq.Message{Body: []byte("invalid json")}))
	assert.NoError(t, consumer.HandleMessage(&nsq.Message{}))
	p.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestConsumer_PermanentErrorSavesJob(t *testing.T) {
	tests := []error{
		fmt.Errorf("%w: empty source_id", apperr.ErrValidation),
		apperr.ErrExtractionEmpty,
		apperr.ErrUnsupportedType,
	}
	for _, cause := range tests {
		t.Run(cause.Error(), func(t *testing.T) {
			p := new(MockIngester)
			jobs := new(MockJobRepo)
			consumer := worker.NewIngestConsumer(p, jobs, 3)
			msg := newMessage(t, 1)

			p.On("Ingest", mock.Anything, "resumes", mock.Anything).Return(nil, cause)
			jobs.On("Save", mock.Anything, mock.MatchedBy(func(j *job.Job) bool {
				return j.SourceID == "cand-1" &&
					j.Collection == "resumes" &&
					j.Handler == worker.HandlerName &&
					string(j.Payload) == string(msg.Body)
			})).Return(nil)

			assert.NoError(t, consumer.HandleMessage(msg))
			jobs.AssertExpectations(t)
		})
	}
}

func TestIngestConsumer_TransientErrorRequeues(t *testing.T) {
	p := new(MockIngester)
	jobs := new(MockJobRepo)
	consumer := worker.NewIngestConsumer(p, jobs, 3)

	p.On("Ingest", mock.Anything, "resumes", mock.Anything).Return(nil, errors.New("weaviate unavailable"))

	err := consumer.HandleMessage(newMessage(t, 1))
	assert.EqualError(t, err, "weaviate unavailable")
	jobs.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestIngestConsumer_GivesUpAfterMaxAttempts(t *testing.T) {
	p := new(MockIngester)
	jobs := new(MockJobRepo)
	consumer := worker.NewIngestConsumer(p, jobs, 3)

	p.On("Ingest", mock.Anything, "resumes", mock.Anything).Return(nil, errors.New("weaviate unavailable"))
	jobs.On("Save", mock.Anything, mock.MatchedBy(func(j *job.Job) bool {
		return j.Error == "weaviate unavailable"
	})).Return(errors.New("db down"))

	// a failing save is logged, the message is still acked
	assert.NoError(t, consumer.HandleMessage(newMessage(t, 3)))
	jobs.AssertExpectations(t)
}
