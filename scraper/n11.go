package scraper

import (
	"pricetrack/config"
	"pricetrack/models"
)

var n11Selectors = []string{
	".newPrice",
	".priceContainer .newPrice",
	".unf-p-summary-price-current",
	".price",
	`[class*="price"]`,
	".productPrice",
	".currentPrice",
}

// N11Extractor reads prices from n11.com product pages.
// Its JSON-LD offers are often empty, so markup is tried first.
type N11Extractor struct {
	chain *strategyChain
}

func NewN11Extractor(cfg config.ScraperConfig) *N11Extractor {
	bounds := Bounds{Min: cfg.PriceLowerBound, Max: cfg.PriceUpperBound}
	fallback := Bounds{Min: cfg.FallbackLowerBound, Max: cfg.N11FallbackUpperBound}

	chain := newStrategyChain(models.SiteN11,
		strategy{method: "selector", run: selectorStrategy(n11Selectors, bounds)},
		strategy{method: "structured_data", run: structuredDataStrategy(false, &bounds)},
		strategy{method: "page_wide", run: func(page RenderedPage, tr *extractionTrace) (float64, error) {
			candidates := pageWideCandidates(page, fallback, tr)
			if len(candidates) == 0 {
				if len(tr.Rejected) > 0 {
					return 0, errOutOfBounds
				}
				return 0, errNoStrategyMatched
			}
			return minOf(candidates), nil
		}},
	)
	return &N11Extractor{chain: chain}
}

func (e *N11Extractor) Site() models.Site {
	return models.SiteN11
}

func (e *N11Extractor) Matches(url string) bool {
	return matchesDomain(url, "n11.com")
}

func (e *N11Extractor) Extract(page RenderedPage) (float64, error) {
	return e.chain.extract(page)
}
