package config

const (
	// TopicIngestDocument carries documents queued by POST /documents/async
	// and failed jobs being retried.
	TopicIngestDocument = "ingest.document"

	// ChannelIngestWorker is the consumer channel of the ingest worker.
	ChannelIngestWorker = "ingest-worker"
)
