package config

import (
	"testing"
	"time"
)

func TestParseKeepsDefaultsForMissingKeys(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
api:
  ticket: ABC-123
  timeout: 5s
enricher:
  workers: 8
storage:
  backend: Memory
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.API.Ticket != "ABC-123" || cfg.API.Timeout != 5*time.Second {
		t.Fatalf("api section not applied: %+v", cfg.API)
	}
	if cfg.API.MaxAttempts != 3 {
		t.Fatalf("default max attempts lost: %d", cfg.API.MaxAttempts)
	}
	if cfg.Enricher.Workers != 8 || cfg.Enricher.RetryWorkers != 2 {
		t.Fatalf("unexpected enricher config %+v", cfg.Enricher)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Fatalf("backend should be normalized, got %q", cfg.Storage.Backend)
	}
	if cfg.Scheduler.CronExpression != "0 7 * * *" || cfg.Scheduler.LookbackDays != 2 {
		t.Fatalf("scheduler defaults lost: %+v", cfg.Scheduler)
	}
	if len(cfg.Classifier.Keywords) == 0 || len(cfg.Classifier.Exclusions) == 0 {
		t.Fatalf("default taxonomy lost")
	}
}

func TestParseReplacesTaxonomy(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
classifier:
  keywords:
    - phrase: ITO
      category: Inspección
      strict: true
    - phrase: ""
      category: vacía
  exclusions: [dental]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Classifier.Keywords) != 1 || !cfg.Classifier.Keywords[0].Strict {
		t.Fatalf("unexpected keywords %+v", cfg.Classifier.Keywords)
	}
	if len(cfg.Classifier.Exclusions) != 1 {
		t.Fatalf("unexpected exclusions %v", cfg.Classifier.Exclusions)
	}
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("api: [unterminated")); err == nil {
		t.Fatalf("expected a parse error")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(ticketEnv, "ENV-TICKET")
	t.Setenv(databaseDSNEnv, "postgres://env")
	t.Setenv(httpAddrEnv, ":9999")
	t.Setenv(telegramTokenEnv, "bot")
	t.Setenv(telegramChatIDEnv, "chat")

	cfg := Load()
	if cfg.API.Ticket != "ENV-TICKET" || cfg.Storage.DSN != "postgres://env" || cfg.Server.Addr != ":9999" {
		t.Fatalf("env overrides not applied: %+v %+v %+v", cfg.API, cfg.Storage, cfg.Server)
	}
	if !cfg.Notifications.Telegram.Enabled() {
		t.Fatalf("telegram should be enabled")
	}
	if cfg.Scheduler.Location() == nil {
		t.Fatalf("location must be bound")
	}
}

func TestDefaultTaxonomyHasStrictAcronyms(t *testing.T) {
	t.Parallel()

	strict := map[string]bool{}
	for _, kw := range defaultKeywords() {
		if kw.Strict {
			strict[kw.Phrase] = true
		}
	}
	for _, acronym := range []string{"ITO", "ATO", "AIF", "EIA", "IRI"} {
		if !strict[acronym] {
			t.Fatalf("%s should be a strict keyword", acronym)
		}
	}
}

func TestParseOCDSAndLogFormat(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
logging:
  format: json
api:
  ocdsEnabled: true
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
	if !cfg.API.OCDSEnabled || cfg.API.OCDSURL != "https://api.mercadopublico.cl/APISOCDS" {
		t.Fatalf("unexpected ocds config %+v", cfg.API)
	}
	if defaultConfig().API.OCDSEnabled {
		t.Fatalf("ocds lookups should be opt-in")
	}
}
