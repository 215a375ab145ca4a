package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avetisov/ragline/internal/core/domain"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// EmbedderOptions bound the vectorizer input. Oversize input is rejected
// unless Truncate is set.
type EmbedderOptions struct {
	Dimension int
	MaxChars  int
	Truncate  bool
}

type Embedder struct {
	client *Client
	opts   EmbedderOptions
}

func NewEmbedder(client *Client, opts EmbedderOptions) *Embedder {
	if opts.MaxChars <= 0 {
		opts.MaxChars = 8000
	}
	return &Embedder{client: client, opts: opts}
}

func (e *Embedder) Dimension() int {
	return e.opts.Dimension
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > e.opts.MaxChars {
		if !e.opts.Truncate {
			return nil, domain.WrapError(domain.ErrInputTooLarge, "embed",
				fmt.Errorf("input is %d chars, limit %d", len(text), e.opts.MaxChars))
		}
		text = truncateUTF8(text, e.opts.MaxChars)
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": text,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, wrapModelError("embed", err)
	}
	if len(response.Embeddings) == 0 {
		return nil, domain.WrapError(domain.ErrModelUnavailable, "embed", fmt.Errorf("empty embedding result"))
	}
	return response.Embeddings[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := g.client.postJSON(ctx, "/api/generate", request, &response, "generate"); err != nil {
		return "", wrapModelError("generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	// Back off to the last complete rune.
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
