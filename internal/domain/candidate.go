package domain

import (
	"net/url"
	"time"
)

const publicTenderURL = "https://www.mercadopublico.cl/Procurement/Modules/RFB/DetailsAcquisition.aspx"

// TenderStatus is derived from the tender close date at run time.
type TenderStatus string

const (
	StatusOpen        TenderStatus = "Abierta"
	StatusClosingSoon TenderStatus = "Cierra pronto"
	StatusClosed      TenderStatus = "Cerrada"
	StatusNoCloseDate TenderStatus = "Sin fecha"
)

// ClosingSoonWindow is how close to its deadline a tender must be to count as closing soon.
const ClosingSoonWindow = 72 * time.Hour

// StatusAt classifies a close date relative to now.
func StatusAt(closesAt *time.Time, now time.Time) TenderStatus {
	switch {
	case closesAt == nil:
		return StatusNoCloseDate
	case closesAt.Before(now):
		return StatusClosed
	case closesAt.Sub(now) <= ClosingSoonWindow:
		return StatusClosingSoon
	default:
		return StatusOpen
	}
}

// PublicURL returns the public page of a tender.
func PublicURL(id string) string {
	return publicTenderURL + "?idlicitacion=" + url.QueryEscape(id)
}

// CandidateRecord is one row of a refresh result. It is never persisted.
type CandidateRecord struct {
	Detail         TenderDetail   `json:"detail"`
	Classification Classification `json:"classification"`
	IsNew          bool           `json:"isNew"`
	IsSaved        bool           `json:"isSaved"`
	IsHidden       bool           `json:"isHidden"`
	Status         TenderStatus   `json:"status"`
	Amount         float64        `json:"amount"`
	AmountSource   string         `json:"amountSource"`
	URL            string         `json:"url"`
}

// Disposition records what a refresh did with a summary.
type Disposition string

const (
	DispositionCandidate Disposition = "Candidate"
	DispositionHidden    Disposition = "Hidden"
	DispositionNoKeyword Disposition = "No Keyword"
	DispositionExpired   Disposition = "Vencida"
	DispositionVisible   Disposition = "VISIBLE"
	DispositionAPIError  Disposition = "Error API"
)

// AuditEntry explains why a tender is or is not in the candidate list.
type AuditEntry struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Disposition Disposition `json:"disposition"`
	Reason      string      `json:"reason"`
}

// RefreshRequest carries everything a single ingestion run depends on.
// A zero Now means "use the pipeline clock".
type RefreshRequest struct {
	From           time.Time
	To             time.Time
	IncludeExpired bool
	Now            time.Time
}

// RunResult is the output of one ingestion run.
type RunResult struct {
	RunID      string            `json:"runId"`
	StartedAt  time.Time         `json:"startedAt"`
	Candidates []CandidateRecord `json:"candidates"`
	Audit      []AuditEntry      `json:"audit"`
	NewIDs     []string          `json:"newIds"`
}

// NewCandidates returns the candidates flagged as new in this run.
func (r RunResult) NewCandidates() []CandidateRecord {
	var out []CandidateRecord
	for _, c := range r.Candidates {
		if c.IsNew {
			out = append(out, c)
		}
	}
	return out
}
