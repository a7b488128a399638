// Package enricher turns candidate ids into full tender details, reading through the detail cache.
package enricher

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"TenderMonitor/internal/domain"
	"TenderMonitor/internal/ports"
)

const (
	defaultWorkers      = 5
	defaultRetryWorkers = 2
)

// Config sizes the worker pool and the retry waves.
type Config struct {
	Workers      int
	RetryWorkers int
	// RetryWaves is the number of recovery passes over ids that failed the first wave.
	RetryWaves int
	RetryDelay time.Duration
	// RefreshCloseWithin treats cached details closing within this window as misses. Zero disables it.
	RefreshCloseWithin time.Duration
	// Retryable decides whether a failed id joins the next wave. Nil retries every error.
	Retryable func(error) bool
	Now       func() time.Time
}

// Failure is an id that could not be enriched.
type Failure struct {
	ID  string
	Err error
}

// Result is the outcome of one Enrich call. Details is keyed by id.
type Result struct {
	Details   map[string]domain.TenderDetail
	Failed    []Failure
	Fetched   int
	CacheHits int
}

// Sources are the optional lookups layered over the API detail. Nil fields are skipped.
type Sources struct {
	Ficha ports.MetadataSource
	OCDS  ports.RecordSource
}

// Enricher fans detail fetches out over a bounded worker pool.
type Enricher struct {
	api    ports.TenderAPI
	cache  ports.DetailCache
	src    Sources
	cfg    Config
	logger *slog.Logger
}

type outcome struct {
	id     string
	detail domain.TenderDetail
	err    error
}

// New wires the enricher.
func New(api ports.TenderAPI, cache ports.DetailCache, src Sources, cfg Config, logger *slog.Logger) *Enricher {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.RetryWorkers <= 0 {
		cfg.RetryWorkers = defaultRetryWorkers
	}
	if cfg.RetryWaves < 0 {
		cfg.RetryWaves = 0
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.Retryable == nil {
		cfg.Retryable = func(error) bool { return true }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Enricher{api: api, cache: cache, src: src, cfg: cfg, logger: logger}
}

// Enrich returns the details of ids. A failing id never aborts the batch; it ends up in Failed.
func (e *Enricher) Enrich(ctx context.Context, ids []string) Result {
	ids = dedupe(ids)
	res := Result{Details: make(map[string]domain.TenderDetail, len(ids))}
	if len(ids) == 0 {
		return res
	}

	cached, err := e.cache.LookupBatch(ctx, ids)
	if err != nil {
		e.logger.Warn("detail cache lookup failed, fetching everything", "ids", len(ids), "error", err)
		cached = nil
	}

	now := e.cfg.Now()
	var pending []string
	for _, id := range ids {
		detail, ok := cached[id]
		if ok && !e.stale(detail, now) {
			res.Details[id] = detail
			res.CacheHits++
			continue
		}
		pending = append(pending, id)
	}

	workers := e.cfg.Workers
	for wave := 0; len(pending) > 0; wave++ {
		if wave > 0 {
			workers = e.cfg.RetryWorkers
			e.logger.Info("retrying failed details", "wave", wave, "ids", len(pending))
			if err := sleep(ctx, e.cfg.RetryDelay); err != nil {
				for _, id := range pending {
					res.Failed = append(res.Failed, Failure{ID: id, Err: err})
				}
				break
			}
		}

		var retry []string
		for _, o := range e.runWave(ctx, pending, workers) {
			if o.err == nil {
				res.Details[o.id] = o.detail
				res.Fetched++
				continue
			}
			if wave < e.cfg.RetryWaves && e.cfg.Retryable(o.err) && ctx.Err() == nil {
				retry = append(retry, o.id)
				continue
			}
			e.logger.Warn("detail fetch failed", "id", o.id, "wave", wave, "error", o.err)
			res.Failed = append(res.Failed, Failure{ID: o.id, Err: o.err})
		}
		sort.Strings(retry)
		pending = retry
	}

	sort.Slice(res.Failed, func(i, j int) bool { return res.Failed[i].ID < res.Failed[j].ID })
	return res
}

// runWave dispatches ids to a pool of workers and collects one outcome per id in completion order.
func (e *Enricher) runWave(ctx context.Context, ids []string, workers int) []outcome {
	if workers > len(ids) {
		workers = len(ids)
	}

	jobs := make(chan string)
	results := make(chan outcome, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				results <- e.fetch(ctx, id)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, id := range ids {
			jobs <- id
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]outcome, 0, len(ids))
	for o := range results {
		out = append(out, o)
	}
	return out
}

func (e *Enricher) fetch(ctx context.Context, id string) outcome {
	detail, err := e.api.FetchDetail(ctx, id)
	if err != nil {
		return outcome{id: id, err: err}
	}
	if detail.ID == "" {
		detail.ID = id
	}

	if e.src.OCDS != nil {
		record, err := e.src.OCDS.FetchRecord(ctx, id)
		if err != nil {
			e.logger.Warn("ocds record unavailable", "id", id, "error", err)
		} else {
			detail.OCDS = &record
		}
	}

	if e.src.Ficha != nil && needsExtended(detail) {
		extended, err := e.src.Ficha.FetchExtended(ctx, id)
		if err != nil {
			e.logger.Warn("extended metadata unavailable", "id", id, "error", err)
		} else if len(extended) > 0 {
			detail.Extended = extended
		}
	}

	if err := e.cache.Put(ctx, id, detail); err != nil {
		e.logger.Warn("detail cache write failed", "id", id, "error", err)
	}
	return outcome{id: id, detail: detail}
}

func (e *Enricher) stale(detail domain.TenderDetail, now time.Time) bool {
	if e.cfg.RefreshCloseWithin <= 0 || detail.ClosesAt == nil {
		return false
	}
	gap := detail.ClosesAt.Sub(now)
	if gap < 0 {
		gap = -gap
	}
	return gap <= e.cfg.RefreshCloseWithin
}

func needsExtended(detail domain.TenderDetail) bool {
	if detail.EstimatedAmount != nil && *detail.EstimatedAmount > 0 {
		return false
	}
	if _, ok := detail.OCDS.DeclaredAmount(); ok {
		return false
	}
	return len(detail.Extended) == 0
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
