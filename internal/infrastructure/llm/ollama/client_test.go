package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avetisov/ragline/internal/core/domain"
)

func newEmbedServer(t *testing.T, status int, vectors [][]float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if status >= 300 {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
	}))
}

func TestEmbedReturnsVector(t *testing.T) {
	srv := newEmbedServer(t, http.StatusOK, [][]float32{{0.1, 0.2, 0.3}})
	defer srv.Close()

	embedder := NewEmbedder(New(srv.URL, "gen", "embed"), EmbedderOptions{Dimension: 3, MaxChars: 100})
	vec, err := embedder.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3-dim vector, got %d", len(vec))
	}
}

func TestEmbedRejectsOversizeInputByDefault(t *testing.T) {
	srv := newEmbedServer(t, http.StatusOK, [][]float32{{1}})
	defer srv.Close()

	embedder := NewEmbedder(New(srv.URL, "gen", "embed"), EmbedderOptions{Dimension: 1, MaxChars: 4})
	_, err := embedder.Embed(context.Background(), "too long input")
	if !domain.IsKind(err, domain.ErrInputTooLarge) {
		t.Fatalf("expected ErrInputTooLarge, got %v", err)
	}
}

func TestEmbedTruncatesWhenConfigured(t *testing.T) {
	var gotInput string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotInput = req.Input
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1}}})
	}))
	defer srv.Close()

	embedder := NewEmbedder(New(srv.URL, "gen", "embed"), EmbedderOptions{Dimension: 1, MaxChars: 5, Truncate: true})
	if _, err := embedder.Embed(context.Background(), "hello world"); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if gotInput != "hello" {
		t.Fatalf("expected truncated input %q, got %q", "hello", gotInput)
	}
}

func TestEmbedMapsServerErrorToModelUnavailable(t *testing.T) {
	srv := newEmbedServer(t, http.StatusServiceUnavailable, nil)
	defer srv.Close()

	embedder := NewEmbedder(New(srv.URL, "gen", "embed"), EmbedderOptions{Dimension: 1, MaxChars: 100})
	_, err := embedder.Embed(context.Background(), "hello")
	if !domain.IsKind(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestGenerateMapsTooManyRequestsToRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	generator := NewGenerator(New(srv.URL, "gen", "embed"))
	_, err := generator.Generate(context.Background(), "prompt")
	if !domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestGenerateReturnsTrimmedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "  an answer \n"})
	}))
	defer srv.Close()

	generator := NewGenerator(New(srv.URL, "gen", "embed"))
	text, err := generator.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "an answer" {
		t.Fatalf("expected trimmed answer, got %q", text)
	}
}

func TestTruncateUTF8KeepsRuneBoundary(t *testing.T) {
	s := "héllo"
	got := truncateUTF8(s, 2)
	if strings.ContainsRune(got, '�') {
		t.Fatalf("truncation split a rune: %q", got)
	}
	if got != "h" {
		t.Fatalf("expected %q, got %q", "h", got)
	}
}
