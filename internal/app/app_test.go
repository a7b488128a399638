package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"TenderMonitor/internal/config"
	"TenderMonitor/internal/domain"
)

const listingBody = `{"Cantidad":1,"Listado":[{
	"CodigoExterno":"1509-5-L126",
	"Nombre":"Servicio de Geotecnia",
	"CodigoEstado":5,
	"FechaCierre":"2026-03-01T15:00:00",
	"Fechas":{"FechaPublicacion":"2026-02-01T09:00:00"}
}]}`

func memoryConfig(baseURL string) config.Config {
	cfg, err := config.Parse([]byte(fmt.Sprintf(`
api:
  baseUrl: %s
  ticket: T
  fichaEnabled: false
  requestsPerSecond: 0
storage:
  backend: memory
  detailCache: memory
  autoMigrate: false
scheduler:
  enabled: false
  timezone: UTC
`, baseURL)))
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestRunOnceWritesResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("fecha") != "" && q.Get("fecha") != "01022026" {
			_, _ = w.Write([]byte(`{"Cantidad":0,"Listado":[]}`))
			return
		}
		_, _ = w.Write([]byte(listingBody))
	}))
	defer srv.Close()

	application, err := New(context.Background(), memoryConfig(srv.URL), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer application.Close()

	day := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	var out bytes.Buffer
	req := domain.RefreshRequest{From: day, To: day, Now: day.Add(10 * time.Hour)}
	if err := application.RunOnce(context.Background(), req, &out); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	var result domain.RunResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if len(result.Candidates) != 1 || result.Candidates[0].Detail.ID != "1509-5-L126" {
		t.Fatalf("unexpected result: %s", out.String())
	}
	if !result.Candidates[0].IsNew {
		t.Fatalf("a tender published today should be new")
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig("http://127.0.0.1:1")
	cfg.Storage.Backend = "sqlite"
	if _, err := New(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), "sqlite") {
		t.Fatalf("expected unsupported backend error, got %v", err)
	}
}
