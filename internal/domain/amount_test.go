package domain

import (
	"testing"
	"time"
)

func TestResolveAmount(t *testing.T) {
	t.Parallel()

	apiAmount := 1500000.0
	zero := 0.0

	cases := []struct {
		name       string
		detail     TenderDetail
		wantAmount float64
		wantSource string
	}{
		{
			name:       "api amount wins",
			detail:     TenderDetail{TenderSummary: TenderSummary{EstimatedAmount: &apiAmount}, Extended: map[string]string{ExtendedBudget: "$ 9.999"}},
			wantAmount: apiAmount,
			wantSource: AmountSourceAPI,
		},
		{
			name:       "ocds value when api amount is zero",
			detail:     TenderDetail{TenderSummary: TenderSummary{EstimatedAmount: &zero}, OCDS: &OCDSRecord{Value: &OCDSValue{Amount: 8000000, Currency: "CLP"}}, Extended: map[string]string{ExtendedBudget: "$ 12.500.000"}},
			wantAmount: 8000000,
			wantSource: AmountSourceOCDS,
		},
		{
			name:       "budget when api amount is zero",
			detail:     TenderDetail{TenderSummary: TenderSummary{EstimatedAmount: &zero}, Extended: map[string]string{ExtendedBudget: "$ 12.500.000"}},
			wantAmount: 12500000,
			wantSource: AmountSourceBudget,
		},
		{
			name: "utm estimate from tender type",
			detail: TenderDetail{Extended: map[string]string{
				ExtendedTenderType: "Licitación Pública igual o superior a 100 UTM e inferior a 1.000 UTM (LE)",
			}},
			wantAmount: 100 * 69611,
			wantSource: AmountSourceUTMEstimate,
		},
		{
			name:       "nothing known",
			detail:     TenderDetail{},
			wantAmount: 0,
			wantSource: AmountSourceMissing,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			amount, source := ResolveAmount(tc.detail, 69611)
			if amount != tc.wantAmount || source != tc.wantSource {
				t.Fatalf("ResolveAmount = (%v, %q), want (%v, %q)", amount, source, tc.wantAmount, tc.wantSource)
			}
		})
	}
}

func TestStatusAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.February, 2, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	soon := now.Add(24 * time.Hour)
	later := now.Add(10 * 24 * time.Hour)

	if got := StatusAt(nil, now); got != StatusNoCloseDate {
		t.Fatalf("nil close date: got %q", got)
	}
	if got := StatusAt(&past, now); got != StatusClosed {
		t.Fatalf("past close date: got %q", got)
	}
	if got := StatusAt(&soon, now); got != StatusClosingSoon {
		t.Fatalf("close date within window: got %q", got)
	}
	if got := StatusAt(&later, now); got != StatusOpen {
		t.Fatalf("far close date: got %q", got)
	}
}

func TestPublicURL(t *testing.T) {
	t.Parallel()

	got := PublicURL("1506-85-O125")
	want := publicTenderURL + "?idlicitacion=1506-85-O125"
	if got != want {
		t.Fatalf("PublicURL = %s, want %s", got, want)
	}
}
