// Package memory holds a process-local VectorIndex used in tests and
// single-node setups. Semantics mirror the Qdrant client: keyed upserts,
// cosine scoring, descending score with ascending-key tie-break.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/avetisov/ragline/internal/core/domain"
)

type Index struct {
	dimension int

	mu      sync.RWMutex
	records map[string]domain.IndexRecord
}

func New(dimension int) *Index {
	return &Index{
		dimension: dimension,
		records:   make(map[string]domain.IndexRecord),
	}
}

func (idx *Index) Upsert(_ context.Context, record domain.IndexRecord) error {
	if len(record.Vector) != idx.dimension {
		return domain.WrapError(domain.ErrDimensionMismatch, "upsert",
			fmt.Errorf("vector has %d dims, index configured for %d", len(record.Vector), idx.dimension))
	}

	stored := record
	stored.Vector = append([]float32(nil), record.Vector...)

	idx.mu.Lock()
	idx.records[record.Key] = stored
	idx.mu.Unlock()
	return nil
}

func (idx *Index) Query(_ context.Context, vector []float32, topK int) ([]domain.RetrievedPassage, error) {
	if len(vector) != idx.dimension {
		return nil, domain.WrapError(domain.ErrDimensionMismatch, "search",
			fmt.Errorf("query vector has %d dims, index configured for %d", len(vector), idx.dimension))
	}
	if topK <= 0 {
		topK = 5
	}

	idx.mu.RLock()
	passages := make([]domain.RetrievedPassage, 0, len(idx.records))
	for key, record := range idx.records {
		passages = append(passages, domain.RetrievedPassage{
			Key:   key,
			Text:  record.Text,
			Score: cosine(vector, record.Vector),
		})
	}
	idx.mu.RUnlock()

	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].Key < passages[j].Key
	})

	if len(passages) > topK {
		passages = passages[:topK]
	}
	return passages, nil
}

// Len reports the number of live records; used by tests.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
