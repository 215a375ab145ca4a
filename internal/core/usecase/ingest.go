package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avetisov/ragline/internal/core/domain"
	"github.com/avetisov/ragline/internal/core/ports"
	"github.com/avetisov/ragline/internal/infrastructure/resilience"
)

// Timeouts bound every external call of the ingestion pipeline.
type Timeouts struct {
	Fetch time.Duration
	Embed time.Duration
	Index time.Duration
}

func (t Timeouts) normalize() Timeouts {
	out := t
	if out.Fetch <= 0 {
		out.Fetch = 30 * time.Second
	}
	if out.Embed <= 0 {
		out.Embed = 60 * time.Second
	}
	if out.Index <= 0 {
		out.Index = 30 * time.Second
	}
	return out
}

// IngestBatch drives fetch → vectorize → index for each event of a
// notification batch. Items are processed independently: one failing key
// never aborts its siblings, and every delivered event ends up in the
// report.
type IngestBatch struct {
	store    ports.ObjectStore
	embedder ports.Embedder
	index    ports.VectorIndex
	journal  ports.IngestJournal
	executor *resilience.Executor
	logger   *slog.Logger
	timeouts Timeouts
}

func NewIngestBatch(
	store ports.ObjectStore,
	embedder ports.Embedder,
	index ports.VectorIndex,
	journal ports.IngestJournal,
	executor *resilience.Executor,
	logger *slog.Logger,
	timeouts Timeouts,
) *IngestBatch {
	if logger == nil {
		logger = slog.Default()
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &IngestBatch{
		store:    store,
		embedder: embedder,
		index:    index,
		journal:  journal,
		executor: executor,
		logger:   logger,
		timeouts: timeouts.normalize(),
	}
}

func (uc *IngestBatch) HandleNotification(ctx context.Context, events []domain.IngestEvent) domain.ProcessingReport {
	report := domain.ProcessingReport{Items: make([]domain.ItemOutcome, 0, len(events))}

	for _, event := range events {
		outcome := uc.processEvent(ctx, event)
		report.Items = append(report.Items, outcome)

		attrs := []any{
			"bucket", outcome.Bucket,
			"key", outcome.Key,
			"status", string(outcome.Status),
			"attempts", outcome.Attempts,
		}
		switch outcome.Status {
		case domain.ItemIndexed:
			uc.logger.Info("ingest_item", attrs...)
		case domain.ItemSkipped:
			uc.logger.Warn("ingest_item", append(attrs, "reason", outcome.Reason)...)
		default:
			uc.logger.Error("ingest_item", append(attrs, "error_kind", outcome.ErrorKind, "reason", outcome.Reason)...)
		}
	}

	if uc.journal != nil {
		if err := uc.journal.Record(ctx, report); err != nil {
			// The journal is observability only; losing a row must not
			// fail the batch.
			uc.logger.Error("journal_record_failed", "error", err)
		}
	}
	return report
}

func (uc *IngestBatch) processEvent(ctx context.Context, event domain.IngestEvent) domain.ItemOutcome {
	outcome := domain.ItemOutcome{
		Bucket: event.Bucket,
		Key:    event.Key,
	}

	totalAttempts := 0

	text, attempts, err := uc.fetchText(ctx, event)
	totalAttempts += attempts
	if err != nil {
		return uc.finishWithError(outcome, totalAttempts, err)
	}
	if text == "" {
		outcome.Status = domain.ItemSkipped
		outcome.Reason = "empty document"
		outcome.Attempts = totalAttempts
		outcome.FinishedAt = time.Now().UTC()
		return outcome
	}

	vector, attempts, err := uc.embedText(ctx, text)
	totalAttempts += attempts
	if err != nil {
		return uc.finishWithError(outcome, totalAttempts, err)
	}

	attempts, err = uc.upsertRecord(ctx, domain.IndexRecord{
		Key:    event.Key,
		Vector: vector,
		Text:   text,
		Metadata: map[string]string{
			"bucket": event.Bucket,
		},
	})
	totalAttempts += attempts
	if err != nil {
		if domain.IsKind(err, domain.ErrDimensionMismatch) {
			// Misconfiguration, not a per-document hiccup. Alert loudly
			// instead of silently dropping data.
			uc.logger.Error("index_dimension_mismatch", "key", event.Key, "error", err)
		}
		return uc.finishWithError(outcome, totalAttempts, err)
	}

	outcome.Status = domain.ItemIndexed
	outcome.Attempts = totalAttempts
	outcome.FinishedAt = time.Now().UTC()
	return outcome
}

func (uc *IngestBatch) fetchText(ctx context.Context, event domain.IngestEvent) (string, int, error) {
	var text string
	attempts, err := uc.executor.Execute(ctx, "storage.fetch", func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, uc.timeouts.Fetch)
		defer cancel()

		body, err := uc.store.Open(callCtx, event.Bucket, event.Key)
		if err != nil {
			return err
		}
		defer body.Close()

		raw, err := io.ReadAll(body)
		if err != nil {
			return domain.WrapError(domain.ErrTransient, "read object body", err)
		}
		if !utf8.Valid(raw) {
			return domain.WrapError(domain.ErrInvalidInput, "decode object body", fmt.Errorf("binary content"))
		}
		text = strings.TrimSpace(string(raw))
		return nil
	}, classifyForRetry)
	return text, attempts, err
}

func (uc *IngestBatch) embedText(ctx context.Context, text string) ([]float32, int, error) {
	var vector []float32
	attempts, err := uc.executor.Execute(ctx, "embedder.embed", func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, uc.timeouts.Embed)
		defer cancel()

		v, err := uc.embedder.Embed(callCtx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	}, classifyForRetry)
	return vector, attempts, err
}

func (uc *IngestBatch) upsertRecord(ctx context.Context, record domain.IndexRecord) (int, error) {
	return uc.executor.Execute(ctx, "index.upsert", func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, uc.timeouts.Index)
		defer cancel()
		return uc.index.Upsert(callCtx, record)
	}, classifyForRetry)
}

func (uc *IngestBatch) finishWithError(outcome domain.ItemOutcome, attempts int, err error) domain.ItemOutcome {
	outcome.Attempts = attempts
	outcome.FinishedAt = time.Now().UTC()

	switch {
	case domain.IsKind(err, domain.ErrNotFound):
		outcome.Status = domain.ItemSkipped
		outcome.Reason = "object no longer exists"
	case domain.IsKind(err, domain.ErrInvalidInput) && !domain.IsKind(err, domain.ErrInputTooLarge):
		outcome.Status = domain.ItemSkipped
		outcome.Reason = "unsupported content"
	default:
		outcome.Status = domain.ItemFailed
		outcome.ErrorKind = domain.ErrorKind(err)
		outcome.Reason = "pipeline error"
	}
	return outcome
}

// classifyForRetry decides retryability from the domain taxonomy:
// transient I/O and dependency outages retry, caller mistakes and
// misconfiguration do not.
func classifyForRetry(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	retryable := domain.IsKind(err, domain.ErrTransient) ||
		domain.IsKind(err, domain.ErrModelUnavailable) ||
		domain.IsKind(err, domain.ErrIndexUnavailable) ||
		domain.IsKind(err, domain.ErrRateLimited)
	return resilience.ErrorClassification{
		Retryable:     retryable,
		RecordFailure: retryable,
	}
}
