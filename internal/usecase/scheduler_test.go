package usecase

import (
	"context"
	"strings"
	"testing"

	"TenderMonitor/internal/domain"
	"TenderMonitor/internal/infrastructure/storage"
)

type recordingNotifier struct {
	messages []string
}

func (r *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	r.messages = append(r.messages, digest)
	return nil
}

func TestSchedulerRunOncePublishesNewCandidates(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.add("2026-02-01", tender("OLD", "Geotecnia ruta 5", "2026-02-01"))
	api.add("2026-02-02", tender("NEW", "Mecánica de suelos y Geotecnia", "2026-02-02"))

	notifier := &recordingNotifier{}
	p := newTestPipeline(api, storage.NewMemoryLifecycle(), at("2026-02-02", 7))
	s := NewScheduler(nil, p, notifier, 2, nil)

	if err := s.RunOnce(context.Background(), at("2026-02-02", 7)); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected one digest, got %d", len(notifier.messages))
	}
	msg := notifier.messages[0]
	if !strings.Contains(msg, "Mecánica de suelos y Geotecnia") || strings.Contains(msg, "Geotecnia ruta 5") {
		t.Fatalf("digest should list only new tenders:\n%s", msg)
	}

	if err := s.RunOnce(context.Background(), at("2026-02-02", 8)); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("second run has nothing new and must not post")
	}
}

func TestStartWithoutDriverIsNoop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil, nil, 0, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestBuildDigestMessage(t *testing.T) {
	t.Parallel()

	msg := buildDigestMessage([]domain.CandidateRecord{{
		Detail:         domain.TenderDetail{TenderSummary: domain.TenderSummary{Title: "Servicio de Geotecnia"}},
		Classification: domain.Classification{Category: geotechCategory},
		Amount:         12500000,
		AmountSource:   domain.AmountSourceAPI,
		Status:         domain.StatusOpen,
		URL:            domain.PublicURL("1509-5-L126"),
	}})

	for _, want := range []string{"Nuevas licitaciones: 1", "Servicio de Geotecnia", "$12.500.000 (API)", "Abierta"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("digest missing %q:\n%s", want, msg)
		}
	}
	if buildDigestMessage(nil) != "" {
		t.Fatalf("empty input should produce an empty digest")
	}
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()

	cases := map[float64]string{
		0:        "-",
		950:      "$950",
		1000:     "$1.000",
		68000000: "$68.000.000",
	}
	for in, want := range cases {
		if got := formatAmount(in); got != want {
			t.Fatalf("formatAmount(%v) = %q, want %q", in, got, want)
		}
	}
}
