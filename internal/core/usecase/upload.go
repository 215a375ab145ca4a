package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avetisov/ragline/internal/core/domain"
	"github.com/avetisov/ragline/internal/core/ports"
)

// UploadDocument accepts a document over HTTP, stores it in the object
// bucket, and publishes the object-created event the ingestion worker
// listens for. Indexing itself stays asynchronous.
type UploadDocument struct {
	store  ports.ObjectStore
	queue  ports.EventQueue
	bucket string
}

func NewUploadDocument(store ports.ObjectStore, queue ports.EventQueue, bucket string) *UploadDocument {
	return &UploadDocument{store: store, queue: queue, bucket: bucket}
}

func (uc *UploadDocument) Upload(ctx context.Context, filename string, body io.Reader) (*domain.IngestEvent, error) {
	if body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate upload", fmt.Errorf("empty body"))
	}

	key := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(filename))

	if err := uc.store.Save(ctx, uc.bucket, key, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	event := domain.IngestEvent{
		Bucket:    uc.bucket,
		Key:       key,
		EventTime: time.Now().UTC(),
	}
	if err := uc.queue.PublishObjectCreated(ctx, []domain.IngestEvent{event}); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}
	return &event, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
