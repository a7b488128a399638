package mercadopublico

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"TenderMonitor/internal/domain"
	"TenderMonitor/internal/ports"
)

const defaultOCDSURL = "https://api.mercadopublico.cl/APISOCDS"

// OCDSClient reads Open Contracting releases, which need no ticket.
// Category names are looked up once per UNSPSC code and kept for the life of the client.
type OCDSClient struct {
	baseURL string
	client  *http.Client
	loc     *time.Location
	logger  *slog.Logger

	mu         sync.Mutex
	categories map[string]category
}

var _ ports.RecordSource = (*OCDSClient)(nil)

type category struct {
	Name     string          `json:"NombreCategoria"`
	Products json.RawMessage `json:"Productos"`
}

// code accepts identifiers published either as JSON strings or numbers.
type code string

func (c *code) UnmarshalJSON(raw []byte) error {
	if string(raw) == "null" {
		*c = ""
		return nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*c = code(strings.TrimSpace(s))
		return nil
	}
	*c = code(raw)
	return nil
}

type ocdsPackage struct {
	Releases []ocdsRelease `json:"releases"`
}

type ocdsRelease struct {
	Buyer struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Address struct {
			Region   string `json:"region"`
			Locality string `json:"locality"`
			Street   string `json:"streetAddress"`
		} `json:"address"`
	} `json:"buyer"`
	Tender struct {
		Items []struct {
			ID          code    `json:"id"`
			Description string  `json:"description"`
			Quantity    float64 `json:"quantity"`
			Unit        struct {
				Name string `json:"name"`
			} `json:"unit"`
			Classification struct {
				ID     code   `json:"id"`
				Scheme string `json:"scheme"`
				URI    string `json:"uri"`
			} `json:"classification"`
		} `json:"items"`
		Value *struct {
			Amount   float64 `json:"amount"`
			Currency string  `json:"currency"`
		} `json:"value"`
		TenderPeriod struct {
			StartDate      *string `json:"startDate"`
			EndDate        *string `json:"endDate"`
			DurationInDays int     `json:"durationInDays"`
		} `json:"tenderPeriod"`
		Documents []struct {
			ID            string  `json:"id"`
			Title         string  `json:"title"`
			Description   string  `json:"description"`
			Format        string  `json:"format"`
			DatePublished *string `json:"datePublished"`
			URL           string  `json:"url"`
		} `json:"documents"`
	} `json:"tender"`
}

// NewOCDSClient wires an HTTP client; baseURL defaults to the public OCDS endpoint.
func NewOCDSClient(baseURL string, client *http.Client, loc *time.Location, logger *slog.Logger) *OCDSClient {
	if baseURL == "" {
		baseURL = defaultOCDSURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &OCDSClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     client,
		loc:        loc,
		logger:     logger,
		categories: map[string]category{},
	}
}

// FetchRecord returns the first release of a tender with item categories resolved.
// A missing release maps to domain.ErrTenderNotFound.
func (o *OCDSClient) FetchRecord(ctx context.Context, id string) (domain.OCDSRecord, error) {
	op := "ocds tender " + id

	var pkg ocdsPackage
	found, err := o.getJSON(ctx, o.baseURL+"/OCDS/tender/"+url.PathEscape(id), &pkg)
	if err != nil {
		return domain.OCDSRecord{}, fmt.Errorf("%s: %w", op, err)
	}
	if !found || len(pkg.Releases) == 0 {
		return domain.OCDSRecord{}, fmt.Errorf("%s: %w", op, domain.ErrTenderNotFound)
	}

	record := pkg.Releases[0].record(o.loc)
	for i := range record.Items {
		unspsc := record.Items[i].ClassificationID
		if unspsc == "" {
			continue
		}
		cat, err := o.category(ctx, unspsc)
		if err != nil {
			o.logger.Warn("category lookup failed", "code", unspsc, "error", err)
			continue
		}
		record.Items[i].CategoryName = cat.Name
		record.Items[i].CategoryProducts = cat.Products
	}
	return record, nil
}

func (o *OCDSClient) category(ctx context.Context, unspsc string) (category, error) {
	o.mu.Lock()
	cat, ok := o.categories[unspsc]
	o.mu.Unlock()
	if ok {
		return cat, nil
	}

	found, err := o.getJSON(ctx, o.baseURL+"/Productos/Categoria/"+url.PathEscape(unspsc), &cat)
	if err != nil {
		return category{}, err
	}
	if !found {
		cat = category{}
	}

	o.mu.Lock()
	o.categories[unspsc] = cat
	o.mu.Unlock()
	return cat, nil
}

// getJSON decodes a 200 answer into out. A 404 reports found=false without an error.
func (o *OCDSClient) getJSON(ctx context.Context, endpoint string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "TenderMonitor/1.0")

	resp, err := o.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("upstream returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return false, fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decode: %w", err)
	}
	return true, nil
}

func (r ocdsRelease) record(loc *time.Location) domain.OCDSRecord {
	out := domain.OCDSRecord{
		Buyer: domain.OCDSBuyer{
			ID:       r.Buyer.ID,
			Name:     r.Buyer.Name,
			Region:   r.Buyer.Address.Region,
			Locality: r.Buyer.Address.Locality,
			Street:   r.Buyer.Address.Street,
		},
		Period: domain.OCDSPeriod{
			Start:        parseTime(r.Tender.TenderPeriod.StartDate, loc),
			End:          parseTime(r.Tender.TenderPeriod.EndDate, loc),
			DurationDays: r.Tender.TenderPeriod.DurationInDays,
		},
	}

	if v := r.Tender.Value; v != nil {
		currency := v.Currency
		if currency == "" {
			currency = "CLP"
		}
		out.Value = &domain.OCDSValue{Amount: v.Amount, Currency: currency}
	}

	for _, it := range r.Tender.Items {
		out.Items = append(out.Items, domain.OCDSItem{
			ID:               string(it.ID),
			Description:      strings.TrimSpace(it.Description),
			Quantity:         it.Quantity,
			Unit:             it.Unit.Name,
			ClassificationID: string(it.Classification.ID),
			Scheme:           it.Classification.Scheme,
			URI:              it.Classification.URI,
		})
	}

	for _, d := range r.Tender.Documents {
		out.Documents = append(out.Documents, domain.OCDSDocument{
			ID:          d.ID,
			Title:       d.Title,
			Description: d.Description,
			Format:      d.Format,
			PublishedAt: parseTime(d.DatePublished, loc),
			URL:         d.URL,
		})
	}
	return out
}
