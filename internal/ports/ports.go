package ports

import (
	"context"
	"time"

	"TenderMonitor/internal/domain"
)

// TenderAPI pulls summaries and details from the procurement API.
type TenderAPI interface {
	FetchSummaries(ctx context.Context, day time.Time) (domain.DayListing, error)
	FetchDetail(ctx context.Context, id string) (domain.TenderDetail, error)
}

// MetadataSource scrapes extended fields (budget, tender type) from the public tender page.
type MetadataSource interface {
	FetchExtended(ctx context.Context, id string) (map[string]string, error)
}

// RecordSource loads the Open Contracting release of a tender.
type RecordSource interface {
	FetchRecord(ctx context.Context, id string) (domain.OCDSRecord, error)
}

// Classifier maps tender text onto the keyword taxonomy.
type Classifier interface {
	Evaluate(text string) domain.Verdict
}

// DetailCache persists raw tender details keyed by id.
type DetailCache interface {
	LookupBatch(ctx context.Context, ids []string) (map[string]domain.TenderDetail, error)
	Put(ctx context.Context, id string, detail domain.TenderDetail) error
}

// LifecycleStore keeps the hidden, saved and seen sets durable.
type LifecycleStore interface {
	IsHidden(ctx context.Context, id string) (bool, error)
	IsSaved(ctx context.Context, id string) (bool, error)
	IsSeen(ctx context.Context, id string) (bool, error)
	States(ctx context.Context, ids []string) (map[string]domain.LifecycleState, error)
	MarkSeen(ctx context.Context, ids []string) error
	ToggleSaved(ctx context.Context, id string) (bool, error)
	Hide(ctx context.Context, id string) error
	Annotate(ctx context.Context, id, note string) error
	ListSaved(ctx context.Context) ([]domain.SavedEntry, error)
}

// Notifier streams digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when refreshes execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
