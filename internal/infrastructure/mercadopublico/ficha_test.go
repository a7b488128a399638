package mercadopublico

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const fichaHTML = `
<html><body>
  <table id="caracteristicas">
    <tr><td>Tipo de Licitación:</td><td> Licitación Pública igual o superior a 100 UTM e inferior a 1.000 UTM (LE) </td></tr>
    <tr><td>Presupuesto</td><td>$ 12.500.000</td></tr>
    <tr><td colspan="2">Encabezado</td></tr>
    <tr><td>Moneda</td><td>Peso Chileno</td><td>extra</td></tr>
  </table>
  <dl><dt>Estado</dt><dd>Publicada</dd></dl>
</body></html>`

func TestExtractFields(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fichaHTML))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	fields := extractFields(doc)

	if got := fields["Tipo de Licitación"]; got != "Licitación Pública igual o superior a 100 UTM e inferior a 1.000 UTM (LE)" {
		t.Fatalf("unexpected tender type: %q", got)
	}
	if got := fields["Presupuesto"]; got != "$ 12.500.000" {
		t.Fatalf("unexpected budget: %q", got)
	}
	if got := fields["Estado"]; got != "Publicada" {
		t.Fatalf("unexpected dt/dd field: %q", got)
	}
	if _, ok := fields["Moneda"]; ok {
		t.Fatalf("rows with three cells must be ignored")
	}
}

func TestFichaScraperFetchExtended(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("idlicitacion") != "1506-85-O126" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(fichaHTML))
	}))
	defer server.Close()

	scraper := NewFichaScraper(server.URL+"/ficha", server.Client())

	fields, err := scraper.FetchExtended(context.Background(), "1506-85-O126")
	if err != nil {
		t.Fatalf("FetchExtended error: %v", err)
	}
	if fields["Presupuesto"] == "" {
		t.Fatalf("expected budget to be extracted, got %v", fields)
	}

	if _, err := scraper.FetchExtended(context.Background(), "unknown"); err == nil {
		t.Fatalf("expected error on 404")
	}
}
