package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"TenderMonitor/internal/domain"
	"TenderMonitor/internal/ports"
)

// Scheduler wires the cron driver with the pipeline and posts a digest of new tenders.
type Scheduler struct {
	driver       ports.Scheduler
	pipeline     *Pipeline
	notifier     ports.Notifier
	lookbackDays int
	logger       *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring refreshes. notifier may be nil.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, notifier ports.Notifier, lookbackDays int, logger *slog.Logger) *Scheduler {
	if lookbackDays <= 0 {
		lookbackDays = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		driver:       driver,
		pipeline:     pipeline,
		notifier:     notifier,
		lookbackDays: lookbackDays,
		logger:       logger,
	}
}

// Start registers the refresh job with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if err := s.RunOnce(ctx, trigger); err != nil {
			s.logger.Error("scheduled refresh failed", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// RunOnce refreshes the look-back window ending on trigger's day and publishes the new candidates.
func (s *Scheduler) RunOnce(ctx context.Context, trigger time.Time) error {
	to := s.pipeline.day(trigger)
	from := to.AddDate(0, 0, -(s.lookbackDays - 1))

	result, err := s.pipeline.Refresh(ctx, domain.RefreshRequest{From: from, To: to, Now: trigger})
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	fresh := result.NewCandidates()
	if s.notifier == nil || len(fresh) == 0 {
		return nil
	}
	if err := s.notifier.PublishDigest(ctx, buildDigestMessage(fresh)); err != nil {
		return fmt.Errorf("publish digest: %w", err)
	}
	return nil
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func buildDigestMessage(records []domain.CandidateRecord) string {
	if len(records) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Nuevas licitaciones: %d\n\n", len(records))
	for _, r := range records {
		fmt.Fprintf(&b, "- %s\n%s | %s\nMonto: %s (%s)\n%s\n%s\n\n",
			r.Detail.Title,
			r.Classification.Category,
			r.Detail.Buyer.Organization,
			formatAmount(r.Amount),
			r.AmountSource,
			r.Status,
			r.URL)
	}
	return b.String()
}

// formatAmount renders pesos with dot thousands separators.
func formatAmount(v float64) string {
	if v <= 0 {
		return "-"
	}
	digits := fmt.Sprintf("%.0f", v)
	var b strings.Builder
	b.WriteString("$")
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}
