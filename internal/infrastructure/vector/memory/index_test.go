package memory

import (
	"context"
	"testing"

	"github.com/avetisov/ragline/internal/core/domain"
)

func TestUpsertIsIdempotentPerKey(t *testing.T) {
	idx := New(2)
	ctx := context.Background()

	if err := idx.Upsert(ctx, domain.IndexRecord{Key: "docs/a.txt", Vector: []float32{1, 0}, Text: "first"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := idx.Upsert(ctx, domain.IndexRecord{Key: "docs/a.txt", Vector: []float32{0, 1}, Text: "second"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if idx.Len() != 1 {
		t.Fatalf("expected exactly one live record, got %d", idx.Len())
	}

	passages, err := idx.Query(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if passages[0].Text != "second" {
		t.Fatalf("expected second write to win, got %q", passages[0].Text)
	}
}

func TestUpsertRejectsDimensionMismatchWithoutMutation(t *testing.T) {
	idx := New(3)
	err := idx.Upsert(context.Background(), domain.IndexRecord{Key: "k", Vector: []float32{1, 2}})
	if !domain.IsKind(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("expected index untouched, got %d records", idx.Len())
	}
}

func TestQueryOrdersByScoreThenKey(t *testing.T) {
	idx := New(2)
	ctx := context.Background()

	_ = idx.Upsert(ctx, domain.IndexRecord{Key: "b", Vector: []float32{1, 0}, Text: "B"})
	_ = idx.Upsert(ctx, domain.IndexRecord{Key: "a", Vector: []float32{1, 0}, Text: "A"})
	_ = idx.Upsert(ctx, domain.IndexRecord{Key: "c", Vector: []float32{0, 1}, Text: "C"})

	passages, err := idx.Query(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(passages) != 3 {
		t.Fatalf("expected 3 passages, got %d", len(passages))
	}
	// a and b score identically; ascending key breaks the tie.
	if passages[0].Key != "a" || passages[1].Key != "b" || passages[2].Key != "c" {
		t.Fatalf("unexpected order: %s %s %s", passages[0].Key, passages[1].Key, passages[2].Key)
	}
}

func TestQueryIsReproducible(t *testing.T) {
	idx := New(2)
	ctx := context.Background()
	for _, key := range []string{"x", "y", "z"} {
		_ = idx.Upsert(ctx, domain.IndexRecord{Key: key, Vector: []float32{1, 0}, Text: key})
	}

	first, _ := idx.Query(ctx, []float32{1, 0}, 3)
	second, _ := idx.Query(ctx, []float32{1, 0}, 3)
	for i := range first {
		if first[i].Key != second[i].Key {
			t.Fatalf("expected reproducible order, diverged at %d", i)
		}
	}
}

func TestQueryClampsToAvailableRecords(t *testing.T) {
	idx := New(1)
	_ = idx.Upsert(context.Background(), domain.IndexRecord{Key: "only", Vector: []float32{1}, Text: "only"})

	passages, err := idx.Query(context.Background(), []float32{1}, 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(passages) != 1 {
		t.Fatalf("expected 1 passage, got %d", len(passages))
	}
}
