// Package charcode implements a dependency-free embedding backend. It is
// not a semantic model: vectors are folded character codes, deterministic
// and cheap, which suits local runs and reproducible tests.
package charcode

import (
	"context"
	"fmt"

	"github.com/avetisov/ragline/internal/core/domain"
)

type Embedder struct {
	dim      int
	maxChars int
	truncate bool
}

func New(dim, maxChars int, truncate bool) *Embedder {
	if dim <= 0 {
		dim = 64
	}
	if maxChars <= 0 {
		maxChars = 8000
	}
	return &Embedder{dim: dim, maxChars: maxChars, truncate: truncate}
}

func (e *Embedder) Dimension() int {
	return e.dim
}

func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	runes := []rune(text)
	if len(runes) > e.maxChars {
		if !e.truncate {
			return nil, domain.WrapError(domain.ErrInputTooLarge, "embed",
				fmt.Errorf("input is %d chars, limit %d", len(runes), e.maxChars))
		}
		runes = runes[:e.maxChars]
	}

	vec := make([]float32, e.dim)
	for i, r := range runes {
		vec[i%e.dim] += float32(int(r) % 100)
	}
	return vec, nil
}
