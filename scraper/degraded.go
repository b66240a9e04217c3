package scraper

// DegradedPrice is a deterministic stand-in used when no browser is available.
// It is not a real price and must never drive alerts.
func DegradedPrice(url string) float64 {
	return 100 + float64(len(url)%200)
}
