package ports

import (
	"context"
	"io"

	"github.com/avetisov/ragline/internal/core/domain"
)

// BatchIngestor is the inbound contract for notification-driven ingestion.
type BatchIngestor interface {
	HandleNotification(ctx context.Context, events []domain.IngestEvent) domain.ProcessingReport
}

// ChatService is the inbound contract for retrieval-augmented answering.
type ChatService interface {
	Answer(ctx context.Context, req domain.QueryRequest) (*domain.ChatAnswer, error)
}

// DocumentUploader stores a new document and notifies the ingestion path.
type DocumentUploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*domain.IngestEvent, error)
}
