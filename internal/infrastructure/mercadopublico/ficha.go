package mercadopublico

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"TenderMonitor/internal/ports"
)

const defaultFichaURL = "https://www.mercadopublico.cl/Procurement/Modules/RFB/DetailsAcquisition.aspx"

// FichaScraper extracts label/value pairs from the public tender page.
type FichaScraper struct {
	baseURL string
	client  *http.Client
}

var _ ports.MetadataSource = (*FichaScraper)(nil)

// NewFichaScraper wires an HTTP client; baseURL defaults to the public Mercado Público page.
func NewFichaScraper(baseURL string, client *http.Client) *FichaScraper {
	if baseURL == "" {
		baseURL = defaultFichaURL
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &FichaScraper{baseURL: baseURL, client: client}
}

// FetchExtended returns the characteristics table of a tender ("Presupuesto", "Tipo de Licitación", ...).
func (f *FichaScraper) FetchExtended(ctx context.Context, id string) (map[string]string, error) {
	pageURL, err := buildFichaURL(f.baseURL, id)
	if err != nil {
		return nil, err
	}

	doc, err := f.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("ficha %s: %w", id, err)
	}

	return extractFields(doc), nil
}

func (f *FichaScraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "TenderMonitor/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ficha returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// extractFields reads two-cell table rows and dt/dd pairs. The first occurrence of a label wins.
func extractFields(doc *goquery.Document) map[string]string {
	fields := map[string]string{}

	put := func(label, value string) {
		label = cleanText(label)
		label = strings.TrimSpace(strings.TrimSuffix(label, ":"))
		value = cleanText(value)
		if label == "" || value == "" {
			return
		}
		if _, exists := fields[label]; !exists {
			fields[label] = value
		}
	}

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td, th")
		if cells.Length() != 2 {
			return
		}
		put(cells.Eq(0).Text(), cells.Eq(1).Text())
	})

	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		put(dt.Text(), dt.NextFiltered("dd").Text())
	})

	return fields
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func buildFichaURL(base, id string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid ficha url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("idlicitacion", id)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
