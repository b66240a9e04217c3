package scraper

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// 1.234,56 / 949,06 / 500 - thousands "." and decimal ","
	trNumberPattern = regexp.MustCompile(`\d{1,3}(?:\.\d{3})*(?:,\d{2})?`)

	// same number, followed by the lira marker
	trCurrencyPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d{3})*(?:,\d{2})?)\s*(?:TL|₺)`)
)

// Bounds is an exclusive plausibility range for extracted prices
type Bounds struct {
	Min float64
	Max float64
}

// Contains reports whether min < v < max
func (b Bounds) Contains(v float64) bool {
	return v > b.Min && v < b.Max
}

// ParsePrice returns the first Turkish-formatted amount in text.
// It applies no plausibility bound; callers filter with their own Bounds.
func ParsePrice(text string) (float64, bool) {
	match := trNumberPattern.FindString(text)
	if match == "" {
		return 0, false
	}
	return normalizeNumber(match)
}

// ExtractAllPrices returns every currency-suffixed amount in text, in order
func ExtractAllPrices(text string) []float64 {
	var prices []float64
	for _, m := range trCurrencyPattern.FindAllStringSubmatch(text, -1) {
		if v, ok := normalizeNumber(m[1]); ok {
			prices = append(prices, v)
		}
	}
	return prices
}

// normalizeNumber converts 1.234,56 to 1234.56
func normalizeNumber(s string) (float64, bool) {
	clean := strings.ReplaceAll(s, ".", "")
	clean = strings.Replace(clean, ",", ".", 1)
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// parseStructuredPrice reads a price field of JSON-LD, which may be a number or string
func parseStructuredPrice(value interface{}) (float64, bool) {
	var v float64
	switch p := value.(type) {
	case float64:
		v = p
	case int:
		v = float64(p)
	case string:
		p = strings.TrimSpace(p)
		if p == "" {
			return 0, false
		}
		// schema.org prices use "." as decimal separator
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			// some pages still emit the localized form
			return ParsePrice(p)
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
