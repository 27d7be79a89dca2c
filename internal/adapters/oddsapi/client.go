package oddsapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/propedge/internal/ports"
)

const (
	defaultBaseURL = "https://api.the-odds-api.com/v4"

	// El proveedor tolera ráfagas cortas; 2 req/s deja margen de sobra
	// con el pool de workers por defecto (5).
	requestsPerSec = 2
	burstSize      = 5
)

// RetryPolicy es la política de reintentos como valor explícito, no como
// wrapper implícito.
type RetryPolicy struct {
	MaxAttempts   int
	BaseWait      time.Duration
	MaxWait       time.Duration
	MaxRetryAfter time.Duration
}

// DefaultRetryPolicy reintenta 429/5xx hasta 4 intentos con backoff capado.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   4,
		BaseWait:      time.Second,
		MaxWait:       30 * time.Second,
		MaxRetryAfter: 60 * time.Second,
	}
}

// APIError es un error HTTP no recuperable del proveedor.
type APIError struct {
	StatusCode int
	Body       string
	Exhausted  bool // true si se agotaron los reintentos en 429/5xx
}

func (e *APIError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("oddsapi: status %d after retry exhaustion: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("oddsapi: status %d: %s", e.StatusCode, e.Body)
}

// Client es el HTTP client del proveedor con rate limiting, reintentos y
// captura de headers de cuota. Implementa ports.OddsProvider.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	retry   RetryPolicy
}

// NewClient crea un Client. Si baseURL está vacío usa el de producción.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		limiter: rate.NewLimiter(requestsPerSec, burstSize),
		retry:   DefaultRetryPolicy(),
	}
}

// WithRetryPolicy sustituye la política de reintentos (tests).
func (c *Client) WithRetryPolicy(p RetryPolicy) *Client {
	c.retry = p
	return c
}

// ListEvents implementa ports.OddsProvider.
func (c *Client) ListEvents(ctx context.Context, sportKey, commenceFrom, commenceTo string) (ports.ProviderResponse, error) {
	params := map[string]string{
		"dateFormat":       "iso",
		"commenceTimeFrom": commenceFrom,
		"commenceTimeTo":   commenceTo,
	}
	return c.get(ctx, fmt.Sprintf("/sports/%s/events", sportKey), params)
}

// GetEventOdds implementa ports.OddsProvider.
func (c *Client) GetEventOdds(ctx context.Context, sportKey, eventID string, q ports.EventOddsQuery) (ports.ProviderResponse, error) {
	return c.get(ctx, fmt.Sprintf("/sports/%s/events/%s/odds", sportKey, eventID), oddsParams(q))
}

// GetFeaturedOdds implementa ports.OddsProvider.
func (c *Client) GetFeaturedOdds(ctx context.Context, sportKey string, q ports.EventOddsQuery) (ports.ProviderResponse, error) {
	return c.get(ctx, fmt.Sprintf("/sports/%s/odds", sportKey), oddsParams(q))
}

// oddsParams construye los query params canónicos de un fetch de odds.
// bookmakers tiene prioridad sobre regions; son mutuamente excluyentes.
func oddsParams(q ports.EventOddsQuery) map[string]string {
	markets := append([]string(nil), q.Markets...)
	sort.Strings(markets)
	params := map[string]string{
		"markets":    strings.Join(markets, ","),
		"oddsFormat": "american",
		"dateFormat": "iso",
	}
	if q.Bookmakers != "" {
		params["bookmakers"] = q.Bookmakers
	} else if q.Regions != "" {
		params["regions"] = q.Regions
	}
	if q.IncludeLinks {
		params["includeLinks"] = "true"
	}
	if q.IncludeSids {
		params["includeSids"] = "true"
	}
	if q.CommenceFrom != "" {
		params["commenceTimeFrom"] = q.CommenceFrom
	}
	if q.CommenceTo != "" {
		params["commenceTimeTo"] = q.CommenceTo
	}
	return params
}

// get ejecuta el GET con rate limiting y la política de reintentos.
func (c *Client) get(ctx context.Context, path string, params map[string]string) (ports.ProviderResponse, error) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("apiKey", c.apiKey)
	fullURL := c.baseURL + path + "?" + values.Encode()

	start := time.Now()
	var lastStatus int
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return ports.ProviderResponse{}, fmt.Errorf("oddsapi.get: rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return ports.ProviderResponse{}, fmt.Errorf("oddsapi.get: build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == c.retry.MaxAttempts {
				return ports.ProviderResponse{}, fmt.Errorf("oddsapi.get: %s after %d attempts: %w", path, attempt, err)
			}
			c.wait(ctx, attempt, "")
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastStatus = resp.StatusCode

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			retryAfter := resp.Header.Get("Retry-After")
			if attempt == c.retry.MaxAttempts {
				// Se devuelve el status en el sobre aunque haya error, para
				// que el ledger registre la llamada fallida.
				return ports.ProviderResponse{StatusCode: resp.StatusCode, Duration: time.Since(start), RetryCount: attempt - 1}, &APIError{
					StatusCode: resp.StatusCode,
					Body:       truncate(string(body), 200),
					Exhausted:  true,
				}
			}
			slog.Warn("provider throttled or failing, retrying",
				"path", path,
				"status", resp.StatusCode,
				"attempt", attempt,
				"retry_after", retryAfter,
			)
			c.wait(ctx, attempt, retryAfter)
			continue
		}

		if resp.StatusCode >= 400 {
			return ports.ProviderResponse{StatusCode: resp.StatusCode, Duration: time.Since(start), RetryCount: attempt - 1}, &APIError{
				StatusCode: resp.StatusCode,
				Body:       truncate(string(body), 200),
			}
		}

		if readErr != nil {
			return ports.ProviderResponse{}, fmt.Errorf("oddsapi.get: read body: %w", readErr)
		}

		return ports.ProviderResponse{
			Data:       body,
			Headers:    quotaHeaders(resp.Header),
			StatusCode: resp.StatusCode,
			Duration:   time.Since(start),
			RetryCount: attempt - 1,
		}, nil
	}
	return ports.ProviderResponse{}, &APIError{StatusCode: lastStatus, Exhausted: true}
}

// wait espera el backoff del intento n: Retry-After del proveedor (capado)
// si viene, si no exponencial min(2^(n-1), MaxWait).
func (c *Client) wait(ctx context.Context, attempt int, retryAfter string) {
	var delay time.Duration
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
		delay = time.Duration(secs) * time.Second
		if delay > c.retry.MaxRetryAfter {
			delay = c.retry.MaxRetryAfter
		}
	} else {
		delay = time.Duration(math.Pow(2, float64(attempt-1))) * c.retry.BaseWait
		if delay > c.retry.MaxWait {
			delay = c.retry.MaxWait
		}
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// quotaHeaders extrae los headers de cuota que alimentan el usage ledger.
func quotaHeaders(h http.Header) map[string]string {
	return map[string]string{
		"x-requests-remaining": h.Get("x-requests-remaining"),
		"x-requests-used":      h.Get("x-requests-used"),
		"x-requests-last":      h.Get("x-requests-last"),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
