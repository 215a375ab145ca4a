package domain

import "time"

// IngestEvent is one object-created notification record. Delivery is
// at-least-once and unordered; the key may still carry the notifier's
// URL encoding.
type IngestEvent struct {
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	EventTime time.Time `json:"event_time"`
}

// Document is the transient form of a fetched object between fetch and
// index. It is not retained after the upsert completes.
type Document struct {
	Bucket string
	Key    string
	Text   string
}

// IndexRecord is the unit stored in the vector index. Key doubles as the
// idempotency key: re-ingesting the same object replaces the prior record.
type IndexRecord struct {
	Key      string            `json:"key"`
	Vector   []float32         `json:"vector"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RetrievedPassage is one search hit, most relevant first.
type RetrievedPassage struct {
	Key   string  `json:"key"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type ChatAnswer struct {
	Response string             `json:"response"`
	Passages []RetrievedPassage `json:"-"`
}
