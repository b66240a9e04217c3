package scraper

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"time"

	"pricetrack/config"
	"pricetrack/models"

	"github.com/sirupsen/logrus"
)

// Outcome is the tagged result of one scrape: either a price or an error kind
type Outcome struct {
	URL       string
	Site      models.Site
	Price     float64
	OK        bool
	Err       *ScrapeError
	CheckedAt time.Time
}

// Scraper dispatches a URL to the matching site extractor
type Scraper struct {
	fetcher    Fetcher
	extractors []Extractor
	profiles   map[models.Site]WaitProfile
	retry      RetryPolicy
	bounds     Bounds
	detector   *BotDetector
	logger     *logrus.Entry
}

// NewScraper wires both marketplace extractors to the given fetcher
func NewScraper(cfg config.ScraperConfig, fetcher Fetcher) *Scraper {
	return &Scraper{
		fetcher: fetcher,
		extractors: []Extractor{
			NewHepsiburadaExtractor(cfg),
			NewN11Extractor(cfg),
		},
		profiles: map[models.Site]WaitProfile{
			models.SiteHepsiburada: NewWaitProfile(cfg.Hepsiburada),
			models.SiteN11:         NewWaitProfile(cfg.N11),
		},
		retry:    RetryPolicy{MaxRetries: cfg.MaxRetries, Delay: cfg.RetryDelay},
		bounds:   Bounds{Min: cfg.PriceLowerBound, Max: cfg.PriceUpperBound},
		detector: NewBotDetector(),
		logger:   logrus.WithField("component", "scraper"),
	}
}

// ClassifySite returns the extractor responsible for url
func (s *Scraper) ClassifySite(url string) (Extractor, bool) {
	for _, e := range s.extractors {
		if e.Matches(url) {
			return e, true
		}
	}
	return nil, false
}

// Scrape never panics and never returns an error; failures are carried in the Outcome
func (s *Scraper) Scrape(ctx context.Context, url string) (out Outcome) {
	out = Outcome{URL: url, Site: models.SiteFromURL(url)}
	defer func() {
		if r := recover(); r != nil {
			out.OK = false
			out.Err = newScrapeError(KindUnknown, url, fmt.Errorf("scrape panicked: %v", r))
		}
		out.CheckedAt = time.Now()
	}()

	if err := validateURL(url); err != nil {
		out.Err = newScrapeError(KindInvalidURL, url, err)
		return out
	}

	extractor, ok := s.ClassifySite(url)
	if !ok {
		out.Err = newScrapeError(KindUnsupportedSite, url, nil)
		return out
	}
	out.Site = extractor.Site()

	var page RenderedPage
	err := s.retry.Do(ctx, url, func() error {
		p, err := s.fetcher.Fetch(ctx, url, s.profiles[extractor.Site()])
		if err != nil {
			return classifyFetchError(url, err)
		}
		page = p
		return nil
	})
	if err != nil {
		var se *ScrapeError
		if !errors.As(err, &se) {
			se = newScrapeError(KindUnknown, url, err)
		}
		out.Err = se
		return out
	}

	price, err := extractor.Extract(page)
	if err != nil {
		out.Err = s.extractionError(url, page, err)
		return out
	}
	// every extractor, structured data included, must stay inside the observation range
	if !s.bounds.Contains(price) {
		out.Err = newScrapeError(KindInvalidPrice, url, fmt.Errorf("%.2f: %w", price, errOutOfBounds))
		return out
	}

	out.Price = price
	out.OK = true
	return out
}

// ScrapePrice is the fire-and-forget variant: any failure becomes (0, false)
func (s *Scraper) ScrapePrice(ctx context.Context, url string) (float64, bool) {
	out := s.Scrape(ctx, url)
	if !out.OK {
		s.logger.WithFields(logrus.Fields{
			"url":  url,
			"kind": out.Err.Kind.String(),
		}).WithError(out.Err).Warn("⚠️ Price check produced no price")
		return 0, false
	}
	return out.Price, true
}

// ScrapePriceStrict is the interactive variant; failures carry a *ScrapeError
func (s *Scraper) ScrapePriceStrict(ctx context.Context, url string) (float64, error) {
	out := s.Scrape(ctx, url)
	if !out.OK {
		return 0, out.Err
	}
	return out.Price, nil
}

func (s *Scraper) extractionError(url string, page RenderedPage, err error) *ScrapeError {
	if errors.Is(err, errOutOfBounds) {
		return newScrapeError(KindInvalidPrice, url, err)
	}

	title := ""
	if titled, ok := page.(interface{ Title() string }); ok {
		title = titled.Title()
	}
	if verdict := s.detector.Inspect(page.FullText(), title); verdict.IsBotWall {
		s.logger.WithFields(logrus.Fields{
			"url":        url,
			"block_type": verdict.BlockType,
			"score":      verdict.Score,
		}).Warn("🤖 Bot wall detected")
		return newScrapeError(KindPriceNotFound, url, fmt.Errorf("%w (%s: %s)", err, verdict.BlockType, verdict.Reason))
	}
	return newScrapeError(KindPriceNotFound, url, err)
}

func validateURL(raw string) error {
	u, err := neturl.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
