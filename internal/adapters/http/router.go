package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/avetisov/ragline/internal/core/domain"
	"github.com/avetisov/ragline/internal/core/ports"
	"github.com/avetisov/ragline/internal/observability/metrics"
)

const serviceName = "api"

// Options bound the traffic-control middleware of the public API.
type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

type Router struct {
	chat     ports.ChatService
	uploader ports.DocumentUploader
	journal  ports.IngestJournal
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
	opts     Options
}

func NewRouter(
	chat ports.ChatService,
	uploader ports.DocumentUploader,
	journal ports.IngestJournal,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
	opts Options,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		chat:     chat,
		uploader: uploader,
		journal:  journal,
		metrics:  m,
		logger:   logger,
		opts:     opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat", rt.chatAnswer)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/ingestions", rt.listIngestions)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.opts.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, 50*time.Millisecond)
	}
	if rt.opts.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = metricsMiddleware(handler, rt.metrics)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	// Outermost so every response carries the headers and pre-flight
	// never reaches the limiters or the mux.
	return corsMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) chatAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req domain.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "request body must be valid JSON")
		return
	}

	start := time.Now()
	answer, err := rt.chat.Answer(r.Context(), req)
	if err != nil {
		kind := domain.ErrorKind(err)
		rt.logger.Error("chat_request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"error_kind", kind,
			"error", err,
		)
		if rt.metrics != nil {
			rt.metrics.ObserveChat(serviceName, kind, 0, time.Since(start))
		}
		status := mapErrorToHTTPStatus(err)
		writeError(w, status, kind, sanitizedMessage(status))
		return
	}

	if rt.metrics != nil {
		rt.metrics.ObserveChat(serviceName, "ok", len(answer.Passages), time.Since(start))
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": answer.Response})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	event, err := rt.uploader.Upload(r.Context(), fileHeader.Filename, file)
	if err != nil {
		kind := domain.ErrorKind(err)
		rt.logger.Error("upload_failed",
			"request_id", requestIDFromContext(r.Context()),
			"filename", fileHeader.Filename,
			"error", err,
		)
		status := mapErrorToHTTPStatus(err)
		writeError(w, status, kind, sanitizedMessage(status))
		return
	}

	writeJSON(w, http.StatusAccepted, event)
}

func (rt *Router) listIngestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if rt.journal == nil {
		writeError(w, http.StatusNotFound, "not_found", "ingestion journal is disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid_input", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	items, err := rt.journal.ListRecent(r.Context(), limit)
	if err != nil {
		rt.logger.Error("list_ingestions_failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusServiceUnavailable, "journal_unavailable", "ingestion journal is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError shapes every failure as { message, error }. The message is a
// fixed phrase per status class; raw internal error text never reaches
// the caller.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]string{
		"message": message,
		"error":   kind,
	})
}

func sanitizedMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "request is invalid"
	case http.StatusRequestEntityTooLarge:
		return "input exceeds the accepted size"
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusTooManyRequests:
		return "too many requests, retry later"
	case http.StatusServiceUnavailable:
		return "a dependency is temporarily unavailable"
	default:
		return "internal error"
	}
}
