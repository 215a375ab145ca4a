package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/avetisov/ragline/internal/core/domain"
)

// JournalRepository persists per-key ingestion outcomes. It is purely an
// operator surface; the pipeline never reads it back.
type JournalRepository struct {
	db *sql.DB
}

func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *JournalRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across ingestor replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingest_journal (
	id BIGSERIAL PRIMARY KEY,
	bucket TEXT NOT NULL,
	object_key TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT,
	error_kind TEXT,
	attempts INT NOT NULL DEFAULT 0,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingest_journal_finished_at ON ingest_journal(finished_at DESC);
CREATE INDEX IF NOT EXISTS idx_ingest_journal_key ON ingest_journal(object_key);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *JournalRepository) Record(ctx context.Context, report domain.ProcessingReport) error {
	if len(report.Items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, item := range report.Items {
		_, err := tx.ExecContext(ctx, `
INSERT INTO ingest_journal (bucket, object_key, status, reason, error_kind, attempts, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
			item.Bucket, item.Key, string(item.Status), item.Reason, item.ErrorKind, item.Attempts, item.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("insert journal row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal tx: %w", err)
	}
	return nil
}

func (r *JournalRepository) ListRecent(ctx context.Context, limit int) ([]domain.ItemOutcome, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT bucket, object_key, status, COALESCE(reason, ''), COALESCE(error_kind, ''), attempts, finished_at
FROM ingest_journal
ORDER BY finished_at DESC, id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []domain.ItemOutcome
	for rows.Next() {
		var item domain.ItemOutcome
		var status string
		if err := rows.Scan(&item.Bucket, &item.Key, &status, &item.Reason, &item.ErrorKind, &item.Attempts, &item.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		item.Status = domain.ItemStatus(status)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return out, nil
}
