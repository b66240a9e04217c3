package models

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

// Site identifies the marketplace a price was observed on
type Site string

const (
	SiteHepsiburada Site = "hepsiburada"
	SiteN11         Site = "n11"
	SiteGeneric     Site = "generic"
	// SiteDegraded tags observations produced by the pseudo-price generator
	SiteDegraded Site = "degraded"
)

// SiteFromURL infers the marketplace from the URL's domain
func SiteFromURL(url string) Site {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "hepsiburada.com"):
		return SiteHepsiburada
	case strings.Contains(lower, "n11.com"):
		return SiteN11
	default:
		return SiteGeneric
	}
}

// User is the owner of tracked products
type User struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TrackedProduct represents a product URL being monitored for a target price
type TrackedProduct struct {
	ID            int             `json:"id" db:"id"`
	UserID        int             `json:"user_id" db:"user_id"`
	Name          string          `json:"name" db:"name"`
	URL           string          `json:"url" db:"url"`
	TargetPrice   float64         `json:"target_price" db:"target_price"`
	RollingLowest sql.NullFloat64 `json:"rolling_lowest" db:"rolling_lowest_price"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// HasLowest returns true if at least one price has been observed
func (p *TrackedProduct) HasLowest() bool {
	return p.RollingLowest.Valid
}

// IsTargetReached reports whether an observed price satisfies the alert threshold
func (p *TrackedProduct) IsTargetReached(price float64) bool {
	return price <= p.TargetPrice
}

// MarshalJSON renders the nullable rolling lowest as a plain number or null
func (p *TrackedProduct) MarshalJSON() ([]byte, error) {
	type Alias TrackedProduct
	var lowest *float64
	if p.RollingLowest.Valid {
		v := p.RollingLowest.Float64
		lowest = &v
	}
	return json.Marshal(&struct {
		*Alias
		RollingLowest *float64 `json:"rolling_lowest"`
	}{
		Alias:         (*Alias)(p),
		RollingLowest: lowest,
	})
}

// PriceObservation is one successful scrape result, never mutated after insert
type PriceObservation struct {
	ID         int       `json:"id" db:"id"`
	ProductID  int       `json:"product_id" db:"product_id"`
	Site       Site      `json:"site" db:"site"`
	Price      float64   `json:"price" db:"price"`
	ObservedAt time.Time `json:"observed_at" db:"observed_at"`
}

// ScrapedObservations drops degraded pseudo-prices from a history
func ScrapedObservations(history []PriceObservation) []PriceObservation {
	scraped := make([]PriceObservation, 0, len(history))
	for _, obs := range history {
		if obs.Site != SiteDegraded {
			scraped = append(scraped, obs)
		}
	}
	return scraped
}

// DailyLowest is the minimum observed price of a single day
type DailyLowest struct {
	Day      time.Time `json:"day"`
	MinPrice float64   `json:"min_price"`
}

// LowestObservedPrice returns the minimum price of the history, independent of order
func LowestObservedPrice(history []PriceObservation) (float64, bool) {
	if len(history) == 0 {
		return 0, false
	}
	lowest := history[0].Price
	for _, obs := range history[1:] {
		if obs.Price < lowest {
			lowest = obs.Price
		}
	}
	return lowest, true
}

// AddProductRequest represents the request to start tracking a product
type AddProductRequest struct {
	UserID      int     `json:"user_id"`
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	TargetPrice float64 `json:"target_price"`
}

// ScrapeRequest represents an on-demand scrape of a single URL
type ScrapeRequest struct {
	URL string `json:"url"`
}

// ScrapeResponse is returned by the interactive scrape endpoint
type ScrapeResponse struct {
	URL       string    `json:"url"`
	Site      Site      `json:"site"`
	Price     float64   `json:"price"`
	CheckedAt time.Time `json:"checked_at"`
}

// CheckResult summarises one product check of the scheduler
type CheckResult struct {
	ProductID     int      `json:"product_id"`
	Price         *float64 `json:"price"`
	Site          Site     `json:"site"`
	Degraded      bool     `json:"degraded"`
	RollingLowest *float64 `json:"rolling_lowest,omitempty"`
	AlertSent     bool     `json:"alert_sent"`
	Error         string   `json:"error,omitempty"`
}
