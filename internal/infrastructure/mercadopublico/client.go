// Package mercadopublico talks to the Mercado Público tender API and its public tender pages.
package mercadopublico

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"TenderMonitor/internal/domain"
	"TenderMonitor/internal/ports"
)

const (
	defaultBaseURL     = "https://api.mercadopublico.cl/servicios/v1/publico"
	defaultTimeout     = 20 * time.Second
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
	dateParamLayout    = "02012006"
	maxBodyBytes       = 16 << 20
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL           string
	Ticket            string
	Timeout           time.Duration
	MaxAttempts       int
	BackoffBase       time.Duration
	RequestsPerSecond float64
	Location          *time.Location
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Client fetches tender summaries by date and tender details by id.
type Client struct {
	baseURL     string
	ticket      string
	maxAttempts int
	backoff     time.Duration
	loc         *time.Location
	http        *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
}

var _ ports.TenderAPI = (*Client)(nil)

// NewClient wires an HTTP client with per-call timeout and an optional request limiter.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:     opts.BaseURL,
		ticket:      opts.Ticket,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.BackoffBase,
		loc:         opts.Location,
		http:        opts.HTTPClient,
		logger:      opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.backoff <= 0 {
		c.backoff = defaultBackoff
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

// FetchSummaries lists every tender published on the given calendar day.
// An empty Listado is a valid result. Rows that cannot be read are returned in Skipped.
func (c *Client) FetchSummaries(ctx context.Context, day time.Time) (domain.DayListing, error) {
	day = startOfDay(day.In(c.loc))
	params := url.Values{}
	params.Set("fecha", day.Format(dateParamLayout))

	op := "summaries " + day.Format("2006-01-02")
	body, err := c.get(ctx, op, params)
	if err != nil {
		return domain.DayListing{}, err
	}

	var payload listing
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.DayListing{}, &PermanentFetchError{Op: op, Err: fmt.Errorf("decode listing: %w", err)}
	}

	out := domain.DayListing{Day: day, Summaries: make([]domain.TenderSummary, 0, len(payload.Listado))}
	for i, raw := range payload.Listado {
		var rec licitacion
		if err := json.Unmarshal(raw, &rec); err != nil {
			c.warn("skip undecodable summary", "op", op, "row", i, "error", err)
			out.Skipped = append(out.Skipped, domain.SkippedRecord{
				Reason: fmt.Sprintf("row %d undecodable: %v", i, err),
			})
			continue
		}
		s := rec.summary(day, c.loc)
		if s.ID == "" {
			c.warn("skip summary without code", "op", op, "row", i)
			out.Skipped = append(out.Skipped, domain.SkippedRecord{
				Title:  s.Title,
				Reason: fmt.Sprintf("row %d has no CodigoExterno", i),
			})
			continue
		}
		out.Summaries = append(out.Summaries, s)
	}

	c.debug("summaries fetched", "day", day.Format("2006-01-02"), "count", len(out.Summaries), "skipped", len(out.Skipped))
	return out, nil
}

// FetchDetail loads the full record of one tender. ErrNotFound signals an empty Listado.
func (c *Client) FetchDetail(ctx context.Context, id string) (domain.TenderDetail, error) {
	params := url.Values{}
	params.Set("codigo", id)

	op := "detail " + id
	body, err := c.get(ctx, op, params)
	if err != nil {
		return domain.TenderDetail{}, err
	}

	var payload listing
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.TenderDetail{}, &PermanentFetchError{Op: op, Err: fmt.Errorf("decode listing: %w", err)}
	}
	if len(payload.Listado) == 0 {
		return domain.TenderDetail{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	raw := payload.Listado[0]
	var rec licitacion
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.TenderDetail{}, &PermanentFetchError{Op: op, Err: fmt.Errorf("decode detail: %w", err)}
	}

	detail := rec.detail(raw, time.Time{}, c.loc)
	if detail.ID == "" {
		detail.ID = id
	}
	return detail, nil
}

// get performs the request with retries on transient failures and exponential backoff between attempts.
func (c *Client) get(ctx context.Context, op string, params url.Values) ([]byte, error) {
	if c.ticket != "" {
		params.Set("ticket", c.ticket)
	}
	endpoint := c.baseURL + "/licitaciones.json?" + params.Encode()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			wait := c.backoff << (attempt - 2)
			c.debug("retrying request", "op", op, "attempt", attempt, "backoff", wait)
			if err := sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%s: rate limiter: %w", op, err)
			}
		}

		body, status, err := c.do(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		if !retryable(status) {
			return nil, &PermanentFetchError{Op: op, StatusCode: status, Err: err}
		}

		lastErr = &TransientFetchError{Op: op, StatusCode: status, Attempts: attempt, Err: err}
		c.debug("transient failure", "op", op, "attempt", attempt, "status", status, "error", err)
	}

	return nil, lastErr
}

// do returns status 0 for transport-level failures (timeouts, resets).
func (c *Client) do(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, -1, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "TenderMonitor/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, 0, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("upstream returned %s", resp.Status)
	}

	return body, resp.StatusCode, nil
}

func retryable(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
