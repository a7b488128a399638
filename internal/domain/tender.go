package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrTenderNotFound means the upstream has no detail record for a listed code.
var ErrTenderNotFound = errors.New("tender not found")

// Buyer identifies the purchasing organization of a tender.
type Buyer struct {
	Organization string `json:"organization"`
	Unit         string `json:"unit,omitempty"`
	Address      string `json:"address,omitempty"`
	Commune      string `json:"commune,omitempty"`
	Region       string `json:"region,omitempty"`
}

// TenderSummary is the listing-level record returned by the by-date endpoint.
type TenderSummary struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	StateCode       int        `json:"stateCode,omitempty"`
	Buyer           Buyer      `json:"buyer"`
	PublishedAt     time.Time  `json:"publishedAt"`
	ClosesAt        *time.Time `json:"closesAt,omitempty"`
	EstimatedAmount *float64   `json:"estimatedAmount,omitempty"`
}

// SkippedRecord is a listing row that could not be turned into a summary.
type SkippedRecord struct {
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason"`
}

// DayListing is what the by-date endpoint returned for one day.
type DayListing struct {
	Day       time.Time       `json:"day"`
	Summaries []TenderSummary `json:"summaries"`
	Skipped   []SkippedRecord `json:"skipped,omitempty"`
}

// Item is a single line of a tender detail.
type Item struct {
	Line         int     `json:"line"`
	ProductCode  string  `json:"productCode,omitempty"`
	CategoryCode string  `json:"categoryCode,omitempty"`
	Category     string  `json:"category,omitempty"`
	ProductName  string  `json:"productName,omitempty"`
	Description  string  `json:"description,omitempty"`
	Unit         string  `json:"unit,omitempty"`
	Quantity     float64 `json:"quantity,omitempty"`
}

// TenderDetail is the full record of one tender. Raw keeps the upstream payload untouched.
type TenderDetail struct {
	TenderSummary
	Items    []Item            `json:"items,omitempty"`
	Extended map[string]string `json:"extended,omitempty"`
	OCDS     *OCDSRecord       `json:"ocds,omitempty"`
	Raw      json.RawMessage   `json:"raw,omitempty"`
}

// Classification is the (category, keyword) pair that made a tender relevant.
type Classification struct {
	Category string `json:"category"`
	Keyword  string `json:"keyword"`
}

// Verdict is the outcome of evaluating a text against the keyword taxonomy.
type Verdict struct {
	Classification Classification
	Matched        bool
	ExcludedBy     string
}

// LifecycleState is the reviewer-facing membership of a tender id.
type LifecycleState struct {
	Hidden bool `json:"hidden"`
	Saved  bool `json:"saved"`
	Seen   bool `json:"seen"`
}

// SavedEntry is a row of the saved set.
type SavedEntry struct {
	ID      string    `json:"id"`
	SavedAt time.Time `json:"savedAt"`
	Note    string    `json:"note,omitempty"`
}
