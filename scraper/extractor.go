package scraper

import (
	"errors"
	"fmt"
	"strings"

	"pricetrack/models"

	"github.com/sirupsen/logrus"
)

// Extractor returns the single best-candidate price of a rendered product page
type Extractor interface {
	Site() models.Site
	Matches(url string) bool
	Extract(page RenderedPage) (float64, error)
}

// extractionTrace collects diagnostics of one strategy run; it never affects the result
type extractionTrace struct {
	Selector   string
	Candidates []float64
	Rejected   []float64
}

type strategyFunc func(page RenderedPage, tr *extractionTrace) (float64, error)

type strategy struct {
	method string
	run    strategyFunc
}

// strategyChain runs strategies in order, first success wins
type strategyChain struct {
	site       models.Site
	strategies []strategy
	logger     *logrus.Entry
}

func newStrategyChain(site models.Site, strategies ...strategy) *strategyChain {
	return &strategyChain{
		site:       site,
		strategies: strategies,
		logger:     logrus.WithField("site", string(site)),
	}
}

func (c *strategyChain) extract(page RenderedPage) (float64, error) {
	sawImplausible := false
	for _, s := range c.strategies {
		tr := &extractionTrace{}
		price, err := runStrategy(s, page, tr)

		fields := logrus.Fields{"method": s.method}
		if tr.Selector != "" {
			fields["selector"] = tr.Selector
		}
		if len(tr.Candidates) > 0 {
			fields["candidates"] = tr.Candidates
		}
		if len(tr.Rejected) > 0 {
			fields["rejected"] = tr.Rejected
		}

		if err == nil {
			fields["price"] = price
			c.logger.WithFields(fields).Info("🎯 Price extracted")
			return price, nil
		}
		if errors.Is(err, errOutOfBounds) {
			sawImplausible = true
		}
		c.logger.WithFields(fields).WithError(err).Debug("Strategy did not match, trying next")
	}

	if sawImplausible {
		return 0, fmt.Errorf("%s: %w", c.site, errOutOfBounds)
	}
	return 0, fmt.Errorf("%s: %w", c.site, errNoStrategyMatched)
}

// runStrategy swallows panics so a broken strategy only means "try the next one"
func runStrategy(s strategy, page RenderedPage, tr *extractionTrace) (price float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.method, r)
		}
	}()
	return s.run(page, tr)
}

// selectorStrategy tries selectors in order and accepts the first parse inside bounds
func selectorStrategy(selectors []string, bounds Bounds) strategyFunc {
	return func(page RenderedPage, tr *extractionTrace) (float64, error) {
		for _, selector := range selectors {
			text, ok := page.QueryText(selector)
			if !ok {
				continue
			}
			price, ok := ParsePrice(text)
			if !ok {
				continue
			}
			if !bounds.Contains(price) {
				tr.Rejected = append(tr.Rejected, price)
				continue
			}
			tr.Selector = selector
			return price, nil
		}
		if len(tr.Rejected) > 0 {
			return 0, errOutOfBounds
		}
		return 0, errNoStrategyMatched
	}
}

// structuredDataStrategy reads offers.price from JSON-LD objects.
// requireProduct limits the search to @type Product; bounds may be nil.
func structuredDataStrategy(requireProduct bool, bounds *Bounds) strategyFunc {
	return func(page RenderedPage, tr *extractionTrace) (float64, error) {
		for _, obj := range page.FindStructuredData() {
			if requireProduct && !isProductType(obj["@type"]) {
				continue
			}
			price, ok := offerPrice(obj["offers"])
			if !ok {
				continue
			}
			tr.Candidates = append(tr.Candidates, price)
			if bounds != nil && !bounds.Contains(price) {
				tr.Rejected = append(tr.Rejected, price)
				continue
			}
			return price, nil
		}
		if len(tr.Rejected) > 0 {
			return 0, errOutOfBounds
		}
		return 0, errNoStrategyMatched
	}
}

// phraseStrategy looks for currency amounts inside elements containing a marker phrase
func phraseStrategy(phrases []string, bounds Bounds) strategyFunc {
	return func(page RenderedPage, tr *extractionTrace) (float64, error) {
		for _, phrase := range phrases {
			for _, text := range textsContaining(page, phrase) {
				for _, price := range ExtractAllPrices(text) {
					if bounds.Contains(price) {
						tr.Selector = phrase
						return price, nil
					}
					tr.Rejected = append(tr.Rejected, price)
				}
			}
		}
		if len(tr.Rejected) > 0 {
			return 0, errOutOfBounds
		}
		return 0, errNoStrategyMatched
	}
}

// pageWideCandidates collects every currency amount of the page within bounds
func pageWideCandidates(page RenderedPage, bounds Bounds, tr *extractionTrace) []float64 {
	var candidates []float64
	for _, price := range ExtractAllPrices(page.FullText()) {
		if bounds.Contains(price) {
			candidates = append(candidates, price)
		} else {
			tr.Rejected = append(tr.Rejected, price)
		}
	}
	tr.Candidates = candidates
	return candidates
}

func isProductType(t interface{}) bool {
	switch v := t.(type) {
	case string:
		return strings.EqualFold(v, "Product")
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.EqualFold(s, "Product") {
				return true
			}
		}
	}
	return false
}

// offerPrice reads price (or lowPrice of an AggregateOffer) from an offers value
func offerPrice(offers interface{}) (float64, bool) {
	switch v := offers.(type) {
	case map[string]interface{}:
		if price, ok := parseStructuredPrice(v["price"]); ok {
			return price, true
		}
		return parseStructuredPrice(v["lowPrice"])
	case []interface{}:
		for _, item := range v {
			if price, ok := offerPrice(item); ok {
				return price, true
			}
		}
	}
	return 0, false
}

// matchesDomain is the cheap URL classification used before any fetch
func matchesDomain(url, domain string) bool {
	return strings.Contains(strings.ToLower(url), domain)
}
