package domain

import (
	"encoding/json"
	"time"
)

// OCDSRecord is the subset of the Open Contracting release the monitor keeps.
type OCDSRecord struct {
	Buyer     OCDSBuyer      `json:"buyer"`
	Items     []OCDSItem     `json:"items,omitempty"`
	Value     *OCDSValue     `json:"value,omitempty"`
	Period    OCDSPeriod     `json:"period"`
	Documents []OCDSDocument `json:"documents,omitempty"`
}

// OCDSBuyer is the buying party as published in the release.
type OCDSBuyer struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Region   string `json:"region,omitempty"`
	Locality string `json:"locality,omitempty"`
	Street   string `json:"street,omitempty"`
}

// OCDSItem is one requested line with its UNSPSC classification.
type OCDSItem struct {
	ID               string          `json:"id"`
	Description      string          `json:"description,omitempty"`
	Quantity         float64         `json:"quantity,omitempty"`
	Unit             string          `json:"unit,omitempty"`
	ClassificationID string          `json:"classificationId,omitempty"`
	Scheme           string          `json:"scheme,omitempty"`
	URI              string          `json:"uri,omitempty"`
	CategoryName     string          `json:"categoryName,omitempty"`
	CategoryProducts json.RawMessage `json:"categoryProducts,omitempty"`
}

// OCDSValue is the declared tender value.
type OCDSValue struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// OCDSPeriod is the window in which offers are accepted.
type OCDSPeriod struct {
	Start        *time.Time `json:"start,omitempty"`
	End          *time.Time `json:"end,omitempty"`
	DurationDays int        `json:"durationDays,omitempty"`
}

// OCDSDocument is an attachment listed in the release.
type OCDSDocument struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Format      string     `json:"format,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	URL         string     `json:"url,omitempty"`
}

// DeclaredAmount returns the release value when it is a positive amount.
func (r *OCDSRecord) DeclaredAmount() (float64, bool) {
	if r == nil || r.Value == nil || r.Value.Amount <= 0 {
		return 0, false
	}
	return r.Value.Amount, true
}
