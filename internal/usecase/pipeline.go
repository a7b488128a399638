package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"TenderMonitor/internal/domain"
	"TenderMonitor/internal/enricher"
	"TenderMonitor/internal/ports"
)

const dayLayout = "2006-01-02"

// ErrInvalidRange is returned when a refresh ends before it starts.
var ErrInvalidRange = errors.New("invalid date range")

// ErrEmptyID is returned by the mutators when no tender id is given.
var ErrEmptyID = errors.New("empty tender id")

// DetailEnricher resolves candidate ids into full details.
type DetailEnricher interface {
	Enrich(ctx context.Context, ids []string) enricher.Result
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	API        ports.TenderAPI
	Classifier ports.Classifier
	Lifecycle  ports.LifecycleStore
	Enricher   DetailEnricher
	UTMValue   float64
	Location   *time.Location
	Clock      func() time.Time
	Logger     *slog.Logger
}

// Pipeline implements the tender-ingestion workflow and the reviewer mutators.
type Pipeline struct {
	api        ports.TenderAPI
	classifier ports.Classifier
	lifecycle  ports.LifecycleStore
	enricher   DetailEnricher
	utmValue   float64
	loc        *time.Location
	clock      func() time.Time
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		api:        deps.API,
		classifier: deps.Classifier,
		lifecycle:  deps.Lifecycle,
		enricher:   deps.Enricher,
		utmValue:   deps.UTMValue,
		loc:        deps.Location,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
	if p.loc == nil {
		p.loc = time.Local
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

type candidate struct {
	index          int
	summary        domain.TenderSummary
	classification domain.Classification
	state          domain.LifecycleState
	isNew          bool
}

// Refresh runs one ingestion over the inclusive date range of req.
// Per-date and per-id failures are audited; only a lifecycle store failure aborts the run.
func (p *Pipeline) Refresh(ctx context.Context, req domain.RefreshRequest) (domain.RunResult, error) {
	now := req.Now
	if now.IsZero() {
		now = p.clock()
	}
	now = now.In(p.loc)
	today := p.day(now)

	from, to := req.From, req.To
	if from.IsZero() {
		from = today
	}
	if to.IsZero() {
		to = from
	}
	from, to = p.day(from), p.day(to)
	if to.Before(from) {
		return domain.RunResult{}, fmt.Errorf("%w: %s after %s", ErrInvalidRange, from.Format(dayLayout), to.Format(dayLayout))
	}

	result := domain.RunResult{RunID: uuid.NewString(), StartedAt: now}
	logger := p.logger.With("run_id", result.RunID)
	logger.Info("refresh started", "from", from.Format(dayLayout), "to", to.Format(dayLayout), "include_expired", req.IncludeExpired)

	summaries := p.collect(ctx, from, to, logger, &result)

	ids := make([]string, len(summaries))
	for i, s := range summaries {
		ids[i] = s.ID
	}
	states := map[string]domain.LifecycleState{}
	if len(ids) > 0 {
		var err error
		states, err = p.lifecycle.States(ctx, ids)
		if err != nil {
			return domain.RunResult{}, fmt.Errorf("load lifecycle states: %w", err)
		}
	}

	audit := make([]domain.AuditEntry, len(summaries))
	var (
		candidates []candidate
		newIDs     []string
	)
	for i, s := range summaries {
		state := states[s.ID]
		if state.Hidden {
			audit[i] = entry(s, domain.DispositionHidden, "hidden by reviewer")
			continue
		}

		verdict := p.classifier.Evaluate(s.Title + " " + s.Description)
		if verdict.ExcludedBy != "" {
			audit[i] = entry(s, domain.DispositionNoKeyword, fmt.Sprintf("excluded by %q", verdict.ExcludedBy))
			continue
		}
		if !verdict.Matched {
			audit[i] = entry(s, domain.DispositionNoKeyword, "no keyword matched")
			continue
		}

		c := candidate{index: i, summary: s, classification: verdict.Classification, state: state}
		if !state.Seen && p.day(s.PublishedAt).Equal(today) {
			c.isNew = true
			newIDs = append(newIDs, s.ID)
		}
		candidates = append(candidates, c)
	}

	if len(newIDs) > 0 {
		if err := p.lifecycle.MarkSeen(ctx, newIDs); err != nil {
			logger.Warn("mark seen failed", "ids", len(newIDs), "error", err)
		}
	}
	result.NewIDs = newIDs

	candidateIDs := make([]string, len(candidates))
	for i, c := range candidates {
		candidateIDs[i] = c.summary.ID
	}
	enriched := p.enricher.Enrich(ctx, candidateIDs)
	failures := make(map[string]error, len(enriched.Failed))
	for _, f := range enriched.Failed {
		failures[f.ID] = f.Err
	}

	for _, c := range candidates {
		detail, ok := enriched.Details[c.summary.ID]
		note := ""
		if !ok {
			err := failures[c.summary.ID]
			if !errors.Is(err, domain.ErrTenderNotFound) {
				reason := "detail unavailable"
				if err != nil {
					reason = err.Error()
				}
				audit[c.index] = entry(c.summary, domain.DispositionAPIError, reason)
				continue
			}
			// The listing still shows the code, so the summary stands in for the detail.
			logger.Warn("detail not found, listing from summary", "id", c.summary.ID)
			note = ", detail not found, listed from summary"
		}
		detail = mergeSummary(detail, c.summary)

		disposition := domain.DispositionCandidate
		reason := fmt.Sprintf("%s / %s%s", c.classification.Category, c.classification.Keyword, note)
		if detail.ClosesAt != nil && detail.ClosesAt.Before(now) {
			closed := "closed " + detail.ClosesAt.In(p.loc).Format("2006-01-02 15:04")
			if !req.IncludeExpired {
				audit[c.index] = entry(c.summary, domain.DispositionExpired, closed+note)
				continue
			}
			disposition = domain.DispositionVisible
			reason = closed + ", expired tenders requested" + note
		}

		amount, source := domain.ResolveAmount(detail, p.utmValue)
		result.Candidates = append(result.Candidates, domain.CandidateRecord{
			Detail:         detail,
			Classification: c.classification,
			IsNew:          c.isNew,
			IsSaved:        c.state.Saved,
			IsHidden:       c.state.Hidden,
			Status:         domain.StatusAt(detail.ClosesAt, now),
			Amount:         amount,
			AmountSource:   source,
			URL:            domain.PublicURL(detail.ID),
		})
		audit[c.index] = entry(c.summary, disposition, reason)
	}

	sort.SliceStable(result.Candidates, func(i, j int) bool {
		a, b := result.Candidates[i].Detail, result.Candidates[j].Detail
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID < b.ID
	})
	result.Audit = append(result.Audit, audit...)

	logger.Info("refresh finished",
		"summaries", len(summaries),
		"candidates", len(result.Candidates),
		"new", len(newIDs),
		"fetched", enriched.Fetched,
		"cache_hits", enriched.CacheHits,
		"failed", len(enriched.Failed))
	return result, nil
}

// collect pulls the summaries of every day in range. A failing day is audited and skipped.
func (p *Pipeline) collect(ctx context.Context, from, to time.Time, logger *slog.Logger, result *domain.RunResult) []domain.TenderSummary {
	var (
		out  []domain.TenderSummary
		seen = map[string]struct{}{}
	)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		listing, err := p.api.FetchSummaries(ctx, day)
		if err != nil {
			logger.Warn("summaries fetch failed", "date", day.Format(dayLayout), "error", err)
			result.Audit = append(result.Audit, domain.AuditEntry{
				Disposition: domain.DispositionAPIError,
				Reason:      fmt.Sprintf("summaries for %s: %v", day.Format(dayLayout), err),
			})
			continue
		}
		for _, skip := range listing.Skipped {
			result.Audit = append(result.Audit, domain.AuditEntry{
				Title:       skip.Title,
				Disposition: domain.DispositionAPIError,
				Reason:      fmt.Sprintf("record skipped on %s: %s", day.Format(dayLayout), skip.Reason),
			})
		}
		for _, s := range listing.Summaries {
			if s.ID == "" {
				result.Audit = append(result.Audit, domain.AuditEntry{
					Title:       s.Title,
					Disposition: domain.DispositionAPIError,
					Reason:      fmt.Sprintf("record skipped on %s: empty id", day.Format(dayLayout)),
				})
				continue
			}
			if _, dup := seen[s.ID]; dup {
				continue
			}
			seen[s.ID] = struct{}{}
			out = append(out, s)
		}
		logger.Debug("summaries fetched", "date", day.Format(dayLayout), "count", len(listing.Summaries), "skipped", len(listing.Skipped))
	}
	return out
}

func (p *Pipeline) day(t time.Time) time.Time {
	t = t.In(p.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.loc)
}

// mergeSummary fills gaps of a detail with what the listing already knew.
func mergeSummary(detail domain.TenderDetail, s domain.TenderSummary) domain.TenderDetail {
	if detail.ID == "" {
		detail.ID = s.ID
	}
	if strings.TrimSpace(detail.Title) == "" {
		detail.Title = s.Title
	}
	if detail.PublishedAt.IsZero() {
		detail.PublishedAt = s.PublishedAt
	}
	if detail.ClosesAt == nil {
		detail.ClosesAt = s.ClosesAt
	}
	if detail.Buyer.Organization == "" {
		detail.Buyer = s.Buyer
	}
	return detail
}

func entry(s domain.TenderSummary, d domain.Disposition, reason string) domain.AuditEntry {
	return domain.AuditEntry{ID: s.ID, Title: s.Title, Disposition: d, Reason: reason}
}

// ToggleSaved flips the saved flag of id and returns the resulting state.
func (p *Pipeline) ToggleSaved(ctx context.Context, id string) (domain.LifecycleState, error) {
	if id == "" {
		return domain.LifecycleState{}, ErrEmptyID
	}
	if _, err := p.lifecycle.ToggleSaved(ctx, id); err != nil {
		return domain.LifecycleState{}, fmt.Errorf("toggle saved %s: %w", id, err)
	}
	return p.State(ctx, id)
}

// Hide marks id as not relevant and returns the resulting state.
func (p *Pipeline) Hide(ctx context.Context, id string) (domain.LifecycleState, error) {
	if id == "" {
		return domain.LifecycleState{}, ErrEmptyID
	}
	if err := p.lifecycle.Hide(ctx, id); err != nil {
		return domain.LifecycleState{}, fmt.Errorf("hide %s: %w", id, err)
	}
	return p.State(ctx, id)
}

// MarkSeen records ids as shown to the reviewer.
func (p *Pipeline) MarkSeen(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := p.lifecycle.MarkSeen(ctx, ids); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// Annotate stores a reviewer note on a saved tender.
func (p *Pipeline) Annotate(ctx context.Context, id, note string) error {
	if id == "" {
		return ErrEmptyID
	}
	if err := p.lifecycle.Annotate(ctx, id, strings.TrimSpace(note)); err != nil {
		return fmt.Errorf("annotate %s: %w", id, err)
	}
	return nil
}

// ListSaved returns saved tenders newest first.
func (p *Pipeline) ListSaved(ctx context.Context) ([]domain.SavedEntry, error) {
	entries, err := p.lifecycle.ListSaved(ctx)
	if err != nil {
		return nil, fmt.Errorf("list saved: %w", err)
	}
	return entries, nil
}

// State returns the lifecycle flags of id.
func (p *Pipeline) State(ctx context.Context, id string) (domain.LifecycleState, error) {
	states, err := p.lifecycle.States(ctx, []string{id})
	if err != nil {
		return domain.LifecycleState{}, fmt.Errorf("load state %s: %w", id, err)
	}
	return states[id], nil
}
