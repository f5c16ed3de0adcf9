package worker

import "talentrag/apps/backend/internal/ingest"

// IngestPayload is the body of an ingest.document message.
type IngestPayload struct {
	Collection    string          `json:"collection"`
	Document      ingest.Document `json:"document"`
	CorrelationID string          `json:"correlation_id"`
}
