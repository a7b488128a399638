package domain

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Amount sources, in order of preference.
const (
	AmountSourceAPI         = "API"
	AmountSourceOCDS        = "OCDS"
	AmountSourceBudget      = "Presupuesto"
	AmountSourceUTMEstimate = "Est. UTM"
	AmountSourceMissing     = "No informado"
)

// Extended metadata keys scraped from the public tender page.
const (
	ExtendedBudget     = "Presupuesto"
	ExtendedTenderType = "Tipo de Licitación"
)

var (
	nonDigits  = regexp.MustCompile(`[^\d]`)
	numberExpr = regexp.MustCompile(`\d[\d.]*`)
)

// ResolveAmount picks the best available amount for a tender.
func ResolveAmount(d TenderDetail, utmValue float64) (float64, string) {
	if d.EstimatedAmount != nil && *d.EstimatedAmount > 0 {
		return *d.EstimatedAmount, AmountSourceAPI
	}
	if v, ok := d.OCDS.DeclaredAmount(); ok {
		return v, AmountSourceOCDS
	}
	if v := parseMoney(d.Extended[ExtendedBudget]); v > 0 {
		return v, AmountSourceBudget
	}
	if n, ok := smallestNumber(d.Extended[ExtendedTenderType]); ok && utmValue > 0 {
		return float64(n) * utmValue, AmountSourceUTMEstimate
	}
	return 0, AmountSourceMissing
}

func parseMoney(text string) float64 {
	clean := nonDigits.ReplaceAllString(text, "")
	if clean == "" {
		return 0
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return v
}

// smallestNumber reads thousands-separated integers ("1.000") out of free text.
func smallestNumber(text string) (int64, bool) {
	var numbers []int64
	for _, m := range numberExpr.FindAllString(text, -1) {
		v, err := strconv.ParseInt(strings.ReplaceAll(m, ".", ""), 10, 64)
		if err != nil {
			continue
		}
		numbers = append(numbers, v)
	}
	if len(numbers) == 0 {
		return 0, false
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	return numbers[0], true
}
