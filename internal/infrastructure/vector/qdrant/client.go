package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avetisov/ragline/internal/core/domain"
)

// Client talks to Qdrant over its HTTP API. Point ids are derived from the
// document key with uuid.NewSHA1, so re-indexing the same key overwrites
// the prior point instead of duplicating it.
type Client struct {
	baseURL    string
	collection string
	dimension  int
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
}

func New(baseURL, collection string, dimension int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// PointID is the deterministic Qdrant point id for a document key.
func PointID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func (c *Client) Upsert(ctx context.Context, record domain.IndexRecord) error {
	if len(record.Vector) != c.dimension {
		return domain.WrapError(domain.ErrDimensionMismatch, "upsert",
			fmt.Errorf("vector has %d dims, index configured for %d", len(record.Vector), c.dimension))
	}
	if err := c.ensureCollection(ctx); err != nil {
		return err
	}

	payload := map[string]any{
		"key":  record.Key,
		"text": record.Text,
	}
	for k, v := range record.Metadata {
		payload["meta_"+k] = v
	}

	reqBody := map[string]any{
		"points": []map[string]any{
			{
				"id":      PointID(record.Key),
				"vector":  record.Vector,
				"payload": payload,
			},
		},
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	if err := c.doJSON(ctx, http.MethodPut, url, reqBody, nil, "upsert"); err != nil {
		return err
	}
	return nil
}

func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]domain.RetrievedPassage, error) {
	if topK <= 0 {
		topK = 5
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.doJSON(ctx, http.MethodPost, url, reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedPassage, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RetrievedPassage{
			Key:   getStringPayload(r.Payload, "key"),
			Text:  getStringPayload(r.Payload, "text"),
			Score: r.Score,
		})
	}

	// Qdrant orders by score; re-sort locally so equal scores resolve by
	// ascending key, keeping result order stable for callers.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context) error {
	c.ensureMu.Lock()
	if c.ensuredCollection {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     c.dimension,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.doJSON(ctx, http.MethodPut, url, reqBody, nil, "ensure collection")
	if err != nil {
		var statusErr *statusError
		// 409 means the collection already exists.
		if errors.As(err, &statusErr) && statusErr.code == http.StatusConflict {
			c.markEnsured()
			return nil
		}
		return err
	}
	c.markEnsured()
	return nil
}

func (c *Client) markEnsured() {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
}

type statusError struct {
	operation string
	code      int
	status    string
	body      string
}

func (e *statusError) Error() string {
	if strings.TrimSpace(e.body) == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.operation, e.status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.operation, e.status, strings.TrimSpace(e.body))
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "qdrant "+operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		se := &statusError{operation: operation, code: resp.StatusCode, status: resp.Status, body: string(raw)}
		return domain.WrapError(domain.ErrIndexUnavailable, "qdrant "+operation, se)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
