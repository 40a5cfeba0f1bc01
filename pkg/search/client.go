// Package search provides a client for the managed retrieval index API.
//
// The index returns ranked documents whose payloads are deeply nested and
// inconsistently shaped, so everything past the envelope is decoded into
// untyped maps and extracted defensively; absence is always a valid
// outcome, never an error.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the retrieval index operations used by the pipeline.
type Client interface {
	// Search runs one query against the index and returns ranked hits.
	Search(ctx context.Context, req Request) (*Response, error)
}

// Request is one retrieval call.
type Request struct {
	Query      string
	MaxResults int
	RoutingKey string
}

// Hit is one ranked result with its raw field bags.
type Hit struct {
	ID               string
	StructuredFields map[string]any
	DerivedFields    map[string]any
	RelevanceScore   float64
}

// Response is the parsed retrieval result.
type Response struct {
	Hits       []Hit
	TotalCount int
	Summary    string
}

// Option configures the search client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout bounds each Search call. The index is expected to enforce
// its own ceiling; this is the client-side hard stop.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.timeout = d
	}
}

// WithRateLimit caps outgoing queries per second.
func WithRateLimit(qps float64) Option {
	return func(c *httpClient) {
		if qps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(qps), 1)
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a retrieval index client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://search.irdesk.io",
		timeout: 30 * time.Second,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, req Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "search: rate limit wait")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"query":       req.Query,
		"max_results": req.MaxResults,
		"routing_key": req.RoutingKey,
	})
	if err != nil {
		return nil, eris.Wrap(err, "search: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/query", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "search: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "search: do request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "search: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.New(fmt.Sprintf("search: status %d: %s", resp.StatusCode, truncateBody(raw)))
	}

	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, eris.Wrap(err, "search: decode response")
	}

	return parseEnvelope(envelope), nil
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// parseEnvelope extracts hits, total count, and the optional summary from
// a decoded response of unknown exact shape.
func parseEnvelope(envelope map[string]any) *Response {
	out := &Response{}

	for _, key := range []string{"results", "hits", "documents"} {
		if v, ok := envelope[key]; ok {
			out.Hits = extractHits(v)
			if len(out.Hits) > 0 {
				break
			}
		}
	}

	for _, key := range []string{"totalCount", "total_count", "totalSize", "total_size"} {
		if n, ok := asNumber(envelope[key]); ok {
			out.TotalCount = int(n)
			break
		}
	}
	if out.TotalCount == 0 {
		out.TotalCount = len(out.Hits)
	}

	out.Summary = extractSummary(envelope["summary"])

	return out
}

// extractHits tolerates the hit collection arriving either as a dense
// list or as a sparse map keyed by index.
func extractHits(v any) []Hit {
	switch coll := v.(type) {
	case []any:
		hits := make([]Hit, 0, len(coll))
		for _, entry := range coll {
			if h, ok := extractHit(entry); ok {
				hits = append(hits, h)
			}
		}
		return hits
	case map[string]any:
		// Sparse indexed collection: keep only result-shaped values,
		// ordered by their numeric keys where possible.
		keys := make([]string, 0, len(coll))
		for k := range coll {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, aErr := strconv.Atoi(keys[i])
			b, bErr := strconv.Atoi(keys[j])
			if aErr == nil && bErr == nil {
				return a < b
			}
			return keys[i] < keys[j]
		})
		var hits []Hit
		for _, k := range keys {
			if h, ok := extractHit(coll[k]); ok {
				hits = append(hits, h)
			}
		}
		return hits
	default:
		return nil
	}
}

// extractHit converts one entry into a Hit. Entries that are not
// result-shaped (no document payload at all) are skipped.
func extractHit(entry any) (Hit, bool) {
	m, ok := entry.(map[string]any)
	if !ok {
		return Hit{}, false
	}

	h := Hit{}

	for _, key := range []string{"id", "document_id", "documentId"} {
		if s, ok := m[key].(string); ok && s != "" {
			h.ID = s
			break
		}
	}

	// The document payload may be wrapped one level down or inline.
	doc := m
	if inner, ok := m["document"].(map[string]any); ok {
		doc = inner
		if h.ID == "" {
			if s, ok := inner["id"].(string); ok {
				h.ID = s
			}
		}
	}

	for _, key := range []string{"structData", "struct_data", "structuredData", "structured_data"} {
		if sd, ok := doc[key].(map[string]any); ok {
			h.StructuredFields = sd
			break
		}
	}
	for _, key := range []string{"derivedStructData", "derived_struct_data", "derivedData", "derived_data"} {
		if dd, ok := doc[key].(map[string]any); ok {
			h.DerivedFields = dd
			break
		}
	}

	for _, key := range []string{"relevanceScore", "relevance_score", "score"} {
		if n, ok := asNumber(m[key]); ok {
			h.RelevanceScore = n
			break
		}
	}

	if h.ID == "" && h.StructuredFields == nil && h.DerivedFields == nil {
		return Hit{}, false
	}
	return h, true
}

// extractSummary tolerates the summary arriving as a plain string, a
// {summaryText} wrapper, or not at all.
func extractSummary(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case map[string]any:
		for _, key := range []string{"summaryText", "summary_text", "text"} {
			if t, ok := s[key].(string); ok {
				return t
			}
		}
	}
	return ""
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
