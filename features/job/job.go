package job

import (
	"encoding/json"
	"time"
)

// Job is an ingest message that failed for good. Payload is the original
// message body and can be published again as is.
type Job struct {
	ID         string          `json:"id"`
	SourceID   string          `json:"source_id"`
	Collection string          `json:"collection"`
	Handler    string          `json:"handler"`
	Payload    json.RawMessage `json:"payload"`
	Error      string          `json:"error"`
	Retries    int             `json:"retries"`
	CreatedAt  time.Time       `json:"created_at"`
}
