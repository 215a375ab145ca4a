package ports

import (
	"context"
	"io"

	"github.com/avetisov/ragline/internal/core/domain"
)

// ObjectStore reads and writes raw document bytes. Open returns a stream
// so callers are not forced to buffer large objects.
type ObjectStore interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Save(ctx context.Context, bucket, key string, data io.Reader) error
}

// Embedder converts text into a fixed-dimension vector. Identical text and
// model version produce identical vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// VectorIndex is the only durable shared resource. Upsert is atomic per
// record key; Query returns passages ordered by descending score, ties
// broken by ascending key.
type VectorIndex interface {
	Upsert(ctx context.Context, record domain.IndexRecord) error
	Query(ctx context.Context, vector []float32, topK int) ([]domain.RetrievedPassage, error)
}

// AnswerGenerator performs a single generation round trip. It does not
// retry internally.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EventQueue carries object-created notifications between the storage
// layer and the ingestion worker.
type EventQueue interface {
	PublishObjectCreated(ctx context.Context, events []domain.IngestEvent) error
	SubscribeObjectCreated(ctx context.Context, handler func(context.Context, []domain.IngestEvent)) error
}

// IngestJournal persists per-key ingestion outcomes for operators.
type IngestJournal interface {
	Record(ctx context.Context, report domain.ProcessingReport) error
	ListRecent(ctx context.Context, limit int) ([]domain.ItemOutcome, error)
}
