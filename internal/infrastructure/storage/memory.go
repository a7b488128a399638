package storage

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"TenderMonitor/internal/domain"
	"TenderMonitor/internal/ports"
)

// ErrNotSaved is returned when annotating an id that is not in the saved set.
var ErrNotSaved = errors.New("tender is not saved")

// MemoryLifecycle keeps the lifecycle sets in process memory. It backs tests and dry runs.
type MemoryLifecycle struct {
	mu     sync.RWMutex
	hidden map[string]time.Time
	saved  map[string]domain.SavedEntry
	seen   map[string]time.Time
	now    func() time.Time
}

var _ ports.LifecycleStore = (*MemoryLifecycle)(nil)

// NewMemoryLifecycle returns an empty store.
func NewMemoryLifecycle() *MemoryLifecycle {
	return &MemoryLifecycle{
		hidden: map[string]time.Time{},
		saved:  map[string]domain.SavedEntry{},
		seen:   map[string]time.Time{},
		now:    time.Now,
	}
}

func (m *MemoryLifecycle) IsHidden(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.hidden[id]
	return ok, nil
}

func (m *MemoryLifecycle) IsSaved(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.saved[id]
	return ok, nil
}

func (m *MemoryLifecycle) IsSeen(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[id]
	return ok, nil
}

// States returns a consistent snapshot for every requested id.
func (m *MemoryLifecycle) States(_ context.Context, ids []string) (map[string]domain.LifecycleState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]domain.LifecycleState, len(ids))
	for _, id := range ids {
		_, hidden := m.hidden[id]
		_, saved := m.saved[id]
		_, seen := m.seen[id]
		out[id] = domain.LifecycleState{Hidden: hidden, Saved: saved, Seen: seen}
	}
	return out, nil
}

// MarkSeen adds ids to the history; first-seen timestamps never move.
func (m *MemoryLifecycle) MarkSeen(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := m.seen[id]; !ok {
			m.seen[id] = now
		}
	}
	return nil
}

// ToggleSaved flips saved membership. Saving a hidden id un-hides it.
func (m *MemoryLifecycle) ToggleSaved(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.saved[id]; ok {
		delete(m.saved, id)
		return false, nil
	}
	delete(m.hidden, id)
	m.saved[id] = domain.SavedEntry{ID: id, SavedAt: m.now()}
	return true, nil
}

// Hide removes id from saved and adds it to hidden under one lock.
func (m *MemoryLifecycle) Hide(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.saved, id)
	m.hidden[id] = m.now()
	return nil
}

func (m *MemoryLifecycle) Annotate(_ context.Context, id, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.saved[id]
	if !ok {
		return ErrNotSaved
	}
	entry.Note = note
	m.saved[id] = entry
	return nil
}

// ListSaved returns saved entries newest first.
func (m *MemoryLifecycle) ListSaved(_ context.Context) ([]domain.SavedEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.SavedEntry, 0, len(m.saved))
	for _, entry := range m.saved {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].SavedAt.After(out[j].SavedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// MemoryDetailCache stores encoded details so decode failures behave like the durable backends.
type MemoryDetailCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.DetailCache = (*MemoryDetailCache)(nil)

// NewMemoryDetailCache returns an empty cache.
func NewMemoryDetailCache(logger *slog.Logger) *MemoryDetailCache {
	return &MemoryDetailCache{entries: map[string][]byte{}, logger: logger, now: time.Now}
}

func (c *MemoryDetailCache) LookupBatch(_ context.Context, ids []string) (map[string]domain.TenderDetail, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]domain.TenderDetail)
	for _, id := range uniqueIDs(ids) {
		payload, ok := c.entries[id]
		if !ok {
			continue
		}
		detail, err := decodeDetail(id, payload)
		if err != nil {
			warnCorrupt(c.logger, id, err)
			continue
		}
		out[id] = detail
	}
	return out, nil
}

func (c *MemoryDetailCache) Put(_ context.Context, id string, detail domain.TenderDetail) error {
	payload, err := encodeDetail(id, detail, c.now())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = payload
	return nil
}

// Len reports how many entries are cached.
func (c *MemoryDetailCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func warnCorrupt(logger *slog.Logger, id string, err error) {
	if logger != nil {
		logger.Warn("cached detail treated as miss", "id", id, "error", err)
	}
}
