package scraper

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a scrape produced no price
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUnsupportedSite
	KindInvalidURL
	KindTimeout
	KindNetworkError
	KindPriceNotFound
	KindInvalidPrice
	KindLaunchError
)

var kindNames = map[ErrorKind]string{
	KindUnknown:         "unknown",
	KindUnsupportedSite: "unsupported_site",
	KindInvalidURL:      "invalid_url",
	KindTimeout:         "timeout",
	KindNetworkError:    "network_error",
	KindPriceNotFound:   "price_not_found",
	KindInvalidPrice:    "invalid_price",
	KindLaunchError:     "launch_error",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Message returns the user-facing text for the error category
func (k ErrorKind) Message() string {
	switch k {
	case KindUnsupportedSite:
		return "This site is not supported. Only Hepsiburada and N11 product pages can be tracked."
	case KindInvalidURL:
		return "The URL is not a valid http(s) address."
	case KindTimeout:
		return "The product page took too long to load. Please try again later."
	case KindNetworkError:
		return "The product page could not be reached."
	case KindPriceNotFound:
		return "The page loaded but no price could be found on it."
	case KindInvalidPrice:
		return "A price was found but it is outside the plausible range."
	case KindLaunchError:
		return "The browser could not be started."
	default:
		return "Price check failed."
	}
}

// Retryable reports whether the failure is transient
func (k ErrorKind) Retryable() bool {
	return k == KindTimeout || k == KindNetworkError
}

// ScrapeError is the typed failure surfaced by the interactive path
type ScrapeError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.URL)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

func newScrapeError(kind ErrorKind, url string, err error) *ScrapeError {
	return &ScrapeError{Kind: kind, URL: url, Err: err}
}

// KindOf extracts the error kind from any error chain
func KindOf(err error) ErrorKind {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

var (
	errNoStrategyMatched = errors.New("no extraction strategy matched")
	errOutOfBounds       = errors.New("value outside plausibility bounds")
)
