package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avetisov/ragline/internal/core/domain"
)

type chatFake struct {
	answer *domain.ChatAnswer
	err    error
	calls  int
}

func (c *chatFake) Answer(_ context.Context, _ domain.QueryRequest) (*domain.ChatAnswer, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.answer, nil
}

type uploaderFake struct {
	event *domain.IngestEvent
	err   error
	calls int
	name  string
}

func (u *uploaderFake) Upload(_ context.Context, filename string, _ io.Reader) (*domain.IngestEvent, error) {
	u.calls++
	u.name = filename
	if u.err != nil {
		return nil, u.err
	}
	return u.event, nil
}

type journalFake struct {
	items []domain.ItemOutcome
	err   error
	limit int
}

func (j *journalFake) Record(context.Context, domain.ProcessingReport) error { return nil }

func (j *journalFake) ListRecent(_ context.Context, limit int) ([]domain.ItemOutcome, error) {
	j.limit = limit
	return j.items, j.err
}

func newTestRouter(chat *chatFake, uploader *uploaderFake, journal *journalFake, opts Options) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(chat, uploader, journal, nil, logger, opts).Handler()
}

func assertCORSHeaders(t *testing.T, res *httptest.ResponseRecorder) {
	t.Helper()
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard allow-origin, got %q", got)
	}
	if got := res.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Content-Type") || !strings.Contains(got, "Authorization") {
		t.Fatalf("allow-headers incomplete: %q", got)
	}
	if got := res.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") || !strings.Contains(got, "OPTIONS") || !strings.Contains(got, "GET") {
		t.Fatalf("allow-methods incomplete: %q", got)
	}
}

func TestChatSuccess(t *testing.T) {
	chat := &chatFake{answer: &domain.ChatAnswer{Response: "the answer"}}
	handler := newTestRouter(chat, &uploaderFake{}, &journalFake{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"query":"hello"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["response"] != "the answer" {
		t.Fatalf("unexpected body %v", body)
	}
	assertCORSHeaders(t, res)
}

func TestChatInvalidInputReturns400(t *testing.T) {
	chat := &chatFake{err: domain.WrapError(domain.ErrInvalidInput, "validate query", fmt.Errorf("query is empty"))}
	handler := newTestRouter(chat, &uploaderFake{}, &journalFake{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"query":""}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != "invalid_input" || body["message"] == "" {
		t.Fatalf("unexpected error body %v", body)
	}
	assertCORSHeaders(t, res)
}

func TestPreflightAnsweredWithoutDownstreamCalls(t *testing.T) {
	chat := &chatFake{answer: &domain.ChatAnswer{Response: "x"}}
	uploader := &uploaderFake{}
	handler := newTestRouter(chat, uploader, &journalFake{}, Options{RateLimitRPS: 1, RateLimitBurst: 1, MaxInFlight: 1})

	for _, path := range []string{"/v1/chat", "/v1/documents", "/anything"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)

		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 for preflight, got %d", path, res.Code)
		}
		if res.Body.Len() != 0 {
			t.Fatalf("%s: expected empty preflight body, got %q", path, res.Body.String())
		}
		assertCORSHeaders(t, res)
	}
	if chat.calls != 0 || uploader.calls != 0 {
		t.Fatalf("preflight must not invoke downstream components")
	}
}

func TestChatFailureIsSanitized(t *testing.T) {
	internal := "dial tcp 10.0.0.8:11434: connect: connection refused"
	chat := &chatFake{err: domain.WrapError(domain.ErrGenerationUnavailable, "generate answer", fmt.Errorf("%s", internal))}
	handler := newTestRouter(chat, &uploaderFake{}, &journalFake{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"query":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), internal) {
		t.Fatalf("internal error text leaked to caller: %s", res.Body.String())
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != "generation_unavailable" {
		t.Fatalf("expected short error code, got %v", body)
	}
	assertCORSHeaders(t, res)
}

func TestChatRateLimitedMapsTo429(t *testing.T) {
	chat := &chatFake{err: domain.WrapError(domain.ErrRateLimited, "generate", fmt.Errorf("429"))}
	handler := newTestRouter(chat, &uploaderFake{}, &journalFake{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"query":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.Code)
	}
}

func TestChatMalformedJSONReturns400(t *testing.T) {
	chat := &chatFake{}
	handler := newTestRouter(chat, &uploaderFake{}, &journalFake{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{not json"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if chat.calls != 0 {
		t.Fatalf("malformed body must not reach the chat service")
	}
	assertCORSHeaders(t, res)
}

func TestUploadDocument(t *testing.T) {
	uploader := &uploaderFake{event: &domain.IngestEvent{Bucket: "docs", Key: "abc_report.txt", EventTime: time.Now().UTC()}}
	handler := newTestRouter(&chatFake{}, uploader, &journalFake{}, Options{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "report.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("hello world")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if uploader.name != "report.txt" {
		t.Fatalf("expected original filename forwarded, got %q", uploader.name)
	}
	var event domain.IngestEvent
	if err := json.NewDecoder(res.Body).Decode(&event); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if event.Key != "abc_report.txt" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestUploadWithoutFileFieldReturns400(t *testing.T) {
	uploader := &uploaderFake{}
	handler := newTestRouter(&chatFake{}, uploader, &journalFake{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("no multipart"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if uploader.calls != 0 {
		t.Fatalf("invalid upload must not reach the uploader")
	}
}

func TestListIngestions(t *testing.T) {
	journal := &journalFake{items: []domain.ItemOutcome{
		{Bucket: "docs", Key: "a.txt", Status: domain.ItemIndexed, Attempts: 1},
	}}
	handler := newTestRouter(&chatFake{}, &uploaderFake{}, journal, Options{})

	req := httptest.NewRequest(http.MethodGet, "/v1/ingestions?limit=10", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if journal.limit != 10 {
		t.Fatalf("expected limit 10 forwarded, got %d", journal.limit)
	}
	var body struct {
		Items []domain.ItemOutcome `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].Key != "a.txt" {
		t.Fatalf("unexpected items %+v", body.Items)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(&chatFake{}, &uploaderFake{}, &journalFake{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}
