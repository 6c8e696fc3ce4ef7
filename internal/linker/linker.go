// Package linker implements the Barcode Linker Client (C10): an external
// HTTP lookup whose failures must never surface to callers. Grounded on
// the teacher's internal/oai/client.go and backoff.go for the HTTP client
// and bounded-timeout shape, and internal/tools/image/client.go's
// RetryPolicy struct for its configured-client style. The "must not poison
// results" requirement is exactly what a circuit breaker formalizes, so
// github.com/sony/gobreaker (kubernaut's go.mod) wraps the call: an open
// breaker short-circuits straight to the fallback without attempting the
// network call at all.
package linker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/sony/gobreaker"
)

const defaultTimeout = 3 * time.Second

// Client looks up the canonical identifier for a raw barcode value via an
// external HTTP endpoint, degrading to (raw, false) on any failure.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     logr.Logger
}

func New(baseURL string, log logr.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "barcode-linker",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		breaker: cb,
		log:     log,
	}
}

// Call performs the lookup for a single raw value. Use PerCallLinker to
// get call-scoped memoization across many raw values within one inspect.
func (c *Client) Call(ctx context.Context, raw string) (linked string, ok bool) {
	if c.baseURL == "" {
		return raw, false
	}
	result, err := c.breaker.Execute(func() (any, error) {
		return c.doLookup(ctx, raw)
	})
	if err != nil {
		return raw, false
	}
	linkedVal, okVal := result.(string)
	if !okVal || linkedVal == "" {
		return raw, false
	}
	return linkedVal, true
}

func (c *Client) doLookup(ctx context.Context, raw string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	u := c.baseURL + "?raw=" + url.QueryEscape(raw)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errNonSuccess
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", err
	}
	linked := extractLinked(body)
	if linked == "" {
		return "", errEmptyLinked
	}
	return linked, nil
}

// PerCallLinker memoizes lookups for the duration of one inspect call: the
// same raw value is looked up at most once even if several ROIs or devices
// reference it, per base spec §4.10. Link is called sequentially across
// devices, so the cache is a plain mutex-guarded map rather than
// singleflight, which only collapses calls already in flight.
type PerCallLinker struct {
	client *Client
	mu     sync.Mutex
	cache  map[string]linkResult
}

func (c *Client) NewPerCallLinker() *PerCallLinker {
	return &PerCallLinker{client: c, cache: make(map[string]linkResult)}
}

func (p *PerCallLinker) Link(ctx context.Context, raw string) (string, bool) {
	p.mu.Lock()
	if r, seen := p.cache[raw]; seen {
		p.mu.Unlock()
		return r.linked, r.ok
	}
	p.mu.Unlock()

	linked, ok := p.client.Call(ctx, raw)
	r := linkResult{linked, ok}

	p.mu.Lock()
	p.cache[raw] = r
	p.mu.Unlock()

	return r.linked, r.ok
}

type linkResult struct {
	linked string
	ok     bool
}

var (
	errNonSuccess  = &lookupError{"non-2xx response from linker"}
	errEmptyLinked = &lookupError{"linker response had no usable linked field"}
)

type lookupError struct{ msg string }

func (e *lookupError) Error() string { return e.msg }

// extractLinked reads a `"linked"` string field out of an otherwise
// free-form JSON body, per base spec §6. Any other shape (malformed JSON,
// missing/non-string field) yields "", which the caller treats as failure.
func extractLinked(body []byte) string {
	var payload struct {
		Linked string `json:"linked"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Linked
}
