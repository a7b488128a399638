package mercadopublico

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"TenderMonitor/internal/domain"
)

const ocdsBody = `{
  "releases": [{
    "buyer": {"id": "CL-MP-7248", "name": "Municipalidad de Santiago",
      "address": {"region": "Región Metropolitana", "locality": "Santiago", "streetAddress": "Plaza de Armas s/n"}},
    "tender": {
      "items": [
        {"id": 1, "description": " Estudio de mecánica de suelos ", "quantity": 1,
          "unit": {"name": "Unidad"},
          "classification": {"id": "81102201", "scheme": "UNSPSC", "uri": "https://www.unspsc.org"}},
        {"id": "2", "description": "Ensayos de laboratorio", "quantity": 3,
          "unit": {"name": "Global"},
          "classification": {"id": 81102201, "scheme": "UNSPSC"}}
      ],
      "value": {"amount": 25000000},
      "tenderPeriod": {"startDate": "2026-02-01T10:30:00Z", "endDate": "2026-02-15T15:00:00Z", "durationInDays": 14},
      "documents": [
        {"id": "doc-1", "title": "Bases administrativas", "format": "application/pdf",
          "datePublished": "2026-02-01T10:30:00Z", "url": "https://www.mercadopublico.cl/doc-1.pdf"}
      ]
    }
  }]
}`

func TestOCDSClientFetchRecord(t *testing.T) {
	t.Parallel()

	var categoryCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/OCDS/tender/1506-85-O126":
			_, _ = w.Write([]byte(ocdsBody))
		case "/Productos/Categoria/81102201":
			atomic.AddInt32(&categoryCalls, 1)
			_, _ = w.Write([]byte(`{"NombreCategoria": "Servicios de ingeniería civil", "Productos": [{"Codigo": 81102201}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewOCDSClient(server.URL+"/", server.Client(), time.UTC, nil)
	record, err := client.FetchRecord(context.Background(), "1506-85-O126")
	if err != nil {
		t.Fatalf("FetchRecord error: %v", err)
	}

	if record.Buyer.Name != "Municipalidad de Santiago" || record.Buyer.Region != "Región Metropolitana" {
		t.Fatalf("unexpected buyer: %+v", record.Buyer)
	}
	if len(record.Items) != 2 {
		t.Fatalf("expected 2 items, got %+v", record.Items)
	}
	first := record.Items[0]
	if first.ID != "1" || first.Description != "Estudio de mecánica de suelos" || first.Unit != "Unidad" {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if first.CategoryName != "Servicios de ingeniería civil" || len(first.CategoryProducts) == 0 {
		t.Fatalf("category not resolved: %+v", first)
	}
	if record.Items[1].ClassificationID != "81102201" || record.Items[1].CategoryName == "" {
		t.Fatalf("numeric classification id not read: %+v", record.Items[1])
	}
	if got := atomic.LoadInt32(&categoryCalls); got != 1 {
		t.Fatalf("category should be looked up once, got %d calls", got)
	}

	amount, ok := record.DeclaredAmount()
	if !ok || amount != 25000000 || record.Value.Currency != "CLP" {
		t.Fatalf("unexpected value: %+v", record.Value)
	}
	if record.Period.End == nil || !record.Period.End.Equal(time.Date(2026, time.February, 15, 15, 0, 0, 0, time.UTC)) || record.Period.DurationDays != 14 {
		t.Fatalf("unexpected period: %+v", record.Period)
	}
	if len(record.Documents) != 1 || record.Documents[0].PublishedAt == nil || record.Documents[0].Format != "application/pdf" {
		t.Fatalf("unexpected documents: %+v", record.Documents)
	}
}

func TestOCDSClientNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/OCDS/tender/EMPTY" {
			_, _ = w.Write([]byte(`{"releases": []}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewOCDSClient(server.URL, server.Client(), time.UTC, nil)
	for _, id := range []string{"MISSING", "EMPTY"} {
		_, err := client.FetchRecord(context.Background(), id)
		if !errors.Is(err, domain.ErrTenderNotFound) {
			t.Fatalf("%s: expected not found, got %v", id, err)
		}
	}
}

func TestOCDSClientCategoryFailureKeepsRecord(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/OCDS/tender/1506-85-O126" {
			_, _ = w.Write([]byte(ocdsBody))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewOCDSClient(server.URL, server.Client(), time.UTC, nil)
	record, err := client.FetchRecord(context.Background(), "1506-85-O126")
	if err != nil {
		t.Fatalf("category errors must not fail the record: %v", err)
	}
	if len(record.Items) != 2 || record.Items[0].CategoryName != "" {
		t.Fatalf("unexpected items: %+v", record.Items)
	}
}
