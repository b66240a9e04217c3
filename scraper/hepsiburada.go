package scraper

import (
	"pricetrack/config"
	"pricetrack/models"
)

var hepsiburadaSelectors = []string{
	`[data-test-id="default-price"] .z7kokklsVwh0K5zFWjIO span`,
	`[data-test-id="default-price"] span`,
	`.z7kokklsVwh0K5zFWjIO span`,
	`[data-test-id="price"] span`,
	`.foQSHpIYwZWy8nHeqapl span`,
	`.IMDzXKdZKh810YOI6k5Q span`,
}

// "price in cart" banners carry the real discounted price
var hepsiburadaPhrases = []string{
	"Sepete özel fiyat",
}

// HepsiburadaExtractor reads prices from hepsiburada.com product pages.
// Structured data wins over markup because the class names churn often.
type HepsiburadaExtractor struct {
	chain *strategyChain
}

func NewHepsiburadaExtractor(cfg config.ScraperConfig) *HepsiburadaExtractor {
	bounds := Bounds{Min: cfg.PriceLowerBound, Max: cfg.PriceUpperBound}
	fallback := Bounds{Min: cfg.FallbackLowerBound, Max: cfg.PriceUpperBound}
	noiseFloor := cfg.NoiseFloor

	chain := newStrategyChain(models.SiteHepsiburada,
		strategy{method: "structured_data", run: structuredDataStrategy(true, nil)},
		strategy{method: "selector", run: selectorStrategy(hepsiburadaSelectors, bounds)},
		strategy{method: "phrase", run: phraseStrategy(hepsiburadaPhrases, bounds)},
		strategy{method: "page_wide", run: func(page RenderedPage, tr *extractionTrace) (float64, error) {
			candidates := pageWideCandidates(page, fallback, tr)
			price, ok := selectAboveNoiseFloor(candidates, noiseFloor)
			if !ok {
				if len(tr.Rejected) > 0 {
					return 0, errOutOfBounds
				}
				return 0, errNoStrategyMatched
			}
			return price, nil
		}},
	)
	return &HepsiburadaExtractor{chain: chain}
}

func (e *HepsiburadaExtractor) Site() models.Site {
	return models.SiteHepsiburada
}

func (e *HepsiburadaExtractor) Matches(url string) bool {
	return matchesDomain(url, "hepsiburada.com")
}

func (e *HepsiburadaExtractor) Extract(page RenderedPage) (float64, error) {
	return e.chain.extract(page)
}

// selectAboveNoiseFloor takes the lowest candidate at or above floor.
// Small values are usually add-ons or shipping fees, so when nothing
// clears the floor the largest candidate is returned instead.
func selectAboveNoiseFloor(candidates []float64, floor float64) (float64, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	var kept []float64
	for _, c := range candidates {
		if c >= floor {
			kept = append(kept, c)
		}
	}
	if len(kept) > 0 {
		return minOf(kept), true
	}
	return maxOf(candidates), true
}
