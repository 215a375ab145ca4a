package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/avetisov/ragline/internal/core/domain"
	"github.com/avetisov/ragline/internal/infrastructure/resilience"
)

// notification is the wire form of an object-created event batch,
// mirroring the storage layer's notification document.
type notification struct {
	Records []notificationRecord `json:"records"`
}

type notificationRecord struct {
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	EventTime time.Time `json:"event_time"`
}

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("ragline"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishObjectCreated(ctx context.Context, events []domain.IngestEvent) error {
	if len(events) == 0 {
		return nil
	}

	payload := notification{Records: make([]notificationRecord, 0, len(events))}
	for _, ev := range events {
		payload.Records = append(payload.Records, notificationRecord{
			Bucket:    ev.Bucket,
			Key:       ev.Key,
			EventTime: ev.EventTime,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, body); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		_, err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.WrapError(domain.ErrTransient, "publish object-created", err)
	}
	return nil
}

func (q *Queue) SubscribeObjectCreated(ctx context.Context, handler func(context.Context, []domain.IngestEvent)) error {
	sub, err := q.conn.QueueSubscribe(q.subject, "ingestors", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		events, err := ParseNotification(msg.Data)
		if err != nil {
			slog.Error("drop_malformed_notification", "error", err)
			return
		}
		if len(events) == 0 {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		handler(handlerCtx, events)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// ParseNotification decodes a notification payload into ingest events.
// Object keys are unescaped here, at the boundary; records with no key or
// an undecodable key are dropped with a log entry.
func ParseNotification(data []byte) ([]domain.IngestEvent, error) {
	var payload notification
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal notification: %w", err)
	}

	events := make([]domain.IngestEvent, 0, len(payload.Records))
	for _, rec := range payload.Records {
		if rec.Key == "" {
			continue
		}
		key, err := domain.DecodeObjectKey(rec.Key)
		if err != nil {
			slog.Error("drop_undecodable_key", "key", rec.Key, "error", err)
			continue
		}
		events = append(events, domain.IngestEvent{
			Bucket:    rec.Bucket,
			Key:       key,
			EventTime: rec.EventTime,
		})
	}
	return events, nil
}

func classifyNATSError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrConnectionDraining) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
