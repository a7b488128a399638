package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TenderMonitor/internal/domain"
)

// ErrCorruptEntry marks a cached payload that can no longer be decoded.
var ErrCorruptEntry = errors.New("corrupt cache entry")

type cachedDetail struct {
	IngestedAt time.Time           `json:"ingestedAt"`
	Detail     domain.TenderDetail `json:"detail"`
}

func encodeDetail(id string, detail domain.TenderDetail, ingestedAt time.Time) ([]byte, error) {
	if detail.ID == "" {
		detail.ID = id
	}
	payload, err := json.Marshal(cachedDetail{IngestedAt: ingestedAt.UTC(), Detail: detail})
	if err != nil {
		return nil, fmt.Errorf("encode detail %s: %w", id, err)
	}
	return payload, nil
}

func decodeDetail(id string, payload []byte) (domain.TenderDetail, error) {
	var entry cachedDetail
	if err := json.Unmarshal(payload, &entry); err != nil {
		return domain.TenderDetail{}, fmt.Errorf("%w %s: %v", ErrCorruptEntry, id, err)
	}
	if entry.Detail.ID == "" {
		return domain.TenderDetail{}, fmt.Errorf("%w %s: empty detail", ErrCorruptEntry, id)
	}
	return entry.Detail, nil
}

func uniqueIDs(ids []string) []string {
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
