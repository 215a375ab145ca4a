package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avetisov/ragline/internal/core/domain"
	"github.com/avetisov/ragline/internal/core/ports"
)

// ChatOptions tune the synchronous query path.
type ChatOptions struct {
	DefaultTopK     int
	MaxTopK         int
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration
}

func (o ChatOptions) normalize() ChatOptions {
	out := o
	if out.DefaultTopK <= 0 {
		out.DefaultTopK = 5
	}
	if out.MaxTopK <= 0 {
		out.MaxTopK = 20
	}
	if out.MaxTopK < out.DefaultTopK {
		out.MaxTopK = out.DefaultTopK
	}
	if out.EmbedTimeout <= 0 {
		out.EmbedTimeout = 60 * time.Second
	}
	if out.GenerateTimeout <= 0 {
		out.GenerateTimeout = 90 * time.Second
	}
	return out
}

// Chat answers a user question grounded in retrieved passages. Retrieval
// failures degrade to an uncontexted answer instead of failing the
// request; embedding and generation failures surface to the caller.
type Chat struct {
	embedder  ports.Embedder
	index     ports.VectorIndex
	generator ports.AnswerGenerator
	logger    *slog.Logger
	opts      ChatOptions
}

func NewChat(
	embedder ports.Embedder,
	index ports.VectorIndex,
	generator ports.AnswerGenerator,
	logger *slog.Logger,
	opts ChatOptions,
) *Chat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chat{
		embedder:  embedder,
		index:     index,
		generator: generator,
		logger:    logger,
		opts:      opts.normalize(),
	}
}

func (uc *Chat) Answer(ctx context.Context, req domain.QueryRequest) (*domain.ChatAnswer, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate query", fmt.Errorf("query is empty"))
	}

	topK := req.TopK
	if topK <= 0 {
		topK = uc.opts.DefaultTopK
	}
	if topK > uc.opts.MaxTopK {
		topK = uc.opts.MaxTopK
	}

	embedCtx, embedCancel := context.WithTimeout(ctx, uc.opts.EmbedTimeout)
	vector, err := uc.embedder.Embed(embedCtx, query)
	embedCancel()
	if err != nil {
		if domain.IsKind(err, domain.ErrInputTooLarge) || domain.IsKind(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrModelUnavailable, "embed query", err)
	}

	passages := uc.retrieve(ctx, vector, topK)

	prompt := buildPrompt(query, passages)

	genCtx, cancel := context.WithTimeout(ctx, uc.opts.GenerateTimeout)
	defer cancel()

	answer, err := uc.generator.Generate(genCtx, prompt)
	if err != nil && domain.IsKind(err, domain.ErrRateLimited) {
		uc.logger.Warn("generation_rate_limited_retry", "error", err)
		retryCtx, retryCancel := context.WithTimeout(ctx, uc.opts.GenerateTimeout)
		answer, err = uc.generator.Generate(retryCtx, prompt)
		retryCancel()
	}
	if err != nil {
		if domain.IsKind(err, domain.ErrRateLimited) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrGenerationUnavailable, "generate answer", err)
	}

	return &domain.ChatAnswer{Response: answer, Passages: passages}, nil
}

// retrieve searches the index with the query embedding. Any failure
// yields an empty passage set; the question is still answered.
func (uc *Chat) retrieve(ctx context.Context, vector []float32, topK int) []domain.RetrievedPassage {
	passages, err := uc.index.Query(ctx, vector, topK)
	if err != nil {
		uc.logger.Warn("retrieval_failed", "error", err)
		return nil
	}
	if len(passages) == 0 {
		uc.logger.Info("retrieval_empty", "top_k", topK)
	}
	return passages
}

func buildPrompt(question string, passages []domain.RetrievedPassage) string {
	if len(passages) == 0 {
		return fmt.Sprintf(`Answer the user question below.
No reference documents were found; say so when the answer depends on them.

Question:
%s
`, question)
	}

	var contextBuilder strings.Builder
	for idx, passage := range passages {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] source=%s score=%.3f\n%s\n\n",
			idx+1,
			passage.Key,
			passage.Score,
			passage.Text,
		))
	}

	return fmt.Sprintf(`Answer the user question only from the context below.
If the context is insufficient, say it directly.

Question:
%s

Context:
%s
`, question, contextBuilder.String())
}
