package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pricetrack/config"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"
)

// WaitProfile describes how long and how to wait for a site to render
type WaitProfile struct {
	NavigationTimeout time.Duration
	WaitUntil         proto.PageLifecycleEventName
	BannerDelay       time.Duration
	SettleDelay       time.Duration
}

// NewWaitProfile converts the configured site settings
func NewWaitProfile(sp config.SiteProfile) WaitProfile {
	wait := proto.PageLifecycleEventNameNetworkAlmostIdle
	if sp.WaitNetworkIdle {
		wait = proto.PageLifecycleEventNameNetworkIdle
	}
	return WaitProfile{
		NavigationTimeout: sp.NavigationTimeout,
		WaitUntil:         wait,
		BannerDelay:       sp.BannerDelay,
		SettleDelay:       sp.SettleDelay,
	}
}

// Fetcher produces a fully rendered page for a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string, profile WaitProfile) (RenderedPage, error)
}

// consent banner accept phrases, matched case-insensitively
var consentPhrases = []string{"kabul", "accept", "onayla"}

const clickScript = `(phrase) => {
	const nodes = document.querySelectorAll("button, [role='button'], a");
	for (const el of nodes) {
		const text = (el.innerText || el.textContent || "").toLowerCase();
		if (text.includes(phrase)) {
			el.click();
			return true;
		}
	}
	return false;
}`

const innerTextScript = `() => document.body ? document.body.innerText : ""`

// BrowserFetcher launches a fresh headless browser for every fetch
type BrowserFetcher struct {
	cfg    config.ScraperConfig
	logger *logrus.Entry
}

func NewBrowserFetcher(cfg config.ScraperConfig) *BrowserFetcher {
	return &BrowserFetcher{
		cfg:    cfg,
		logger: logrus.WithField("component", "fetcher"),
	}
}

// Fetch navigates, dismisses consent banners, waits for client rendering and
// returns a snapshot. The browser process is gone when Fetch returns.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string, profile WaitProfile) (RenderedPage, error) {
	start := time.Now()

	l := launcher.New().
		Headless(f.cfg.Headless).
		NoSandbox(true).
		Leakless(false).
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", fmt.Sprintf("%d,%d", f.cfg.ViewportWidth, f.cfg.ViewportHeight))
	if f.cfg.BrowserBin != "" {
		l = l.Bin(f.cfg.BrowserBin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, newScrapeError(KindLaunchError, url, fmt.Errorf("failed to launch browser: %w", err))
	}
	defer l.Cleanup()
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, newScrapeError(KindLaunchError, url, fmt.Errorf("failed to connect to browser: %w", err))
	}
	defer browser.Close()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, newScrapeError(KindLaunchError, url, fmt.Errorf("failed to open page: %w", err))
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.cfg.UserAgent}); err != nil {
		return nil, newScrapeError(KindLaunchError, url, fmt.Errorf("failed to set user agent: %w", err))
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             f.cfg.ViewportWidth,
		Height:            f.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, newScrapeError(KindLaunchError, url, fmt.Errorf("failed to set viewport: %w", err))
	}

	if err := f.navigate(ctx, page, url, profile); err != nil {
		return nil, err
	}

	live := &livePage{page: page.Context(ctx)}
	for _, phrase := range consentPhrases {
		if live.Click(phrase) {
			f.logger.WithFields(logrus.Fields{"url": url, "phrase": phrase}).Debug("🍪 Consent banner dismissed")
			if err := sleepContext(ctx, profile.BannerDelay); err != nil {
				return nil, classifyFetchError(url, err)
			}
			break
		}
	}

	if err := sleepContext(ctx, profile.SettleDelay); err != nil {
		return nil, classifyFetchError(url, err)
	}

	snapshot, err := live.snapshot(url)
	if err != nil {
		return nil, classifyFetchError(url, err)
	}

	f.logger.WithFields(logrus.Fields{
		"url":      url,
		"duration": time.Since(start).String(),
	}).Info("📄 Page rendered")
	return snapshot, nil
}

func (f *BrowserFetcher) navigate(ctx context.Context, page *rod.Page, url string, profile WaitProfile) error {
	navCtx, cancel := context.WithTimeout(ctx, profile.NavigationTimeout)
	defer cancel()

	p := page.Context(navCtx)
	wait := p.WaitNavigation(profile.WaitUntil)
	if err := p.Navigate(url); err != nil {
		return classifyFetchError(url, err)
	}
	wait()

	// the wait helper swallows its own errors, so the deadline is checked directly
	if err := navCtx.Err(); err != nil {
		return classifyFetchError(url, err)
	}
	return nil
}

// classifyFetchError maps browser failures to Timeout or NetworkError
func classifyFetchError(url string, err error) error {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newScrapeError(KindTimeout, url, err)
	}
	var navErr *rod.NavigationError
	if errors.As(err, &navErr) {
		return newScrapeError(KindNetworkError, url, fmt.Errorf("navigation failed: %s", navErr.Reason))
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return newScrapeError(KindTimeout, url, err)
	}
	return newScrapeError(KindNetworkError, url, err)
}

// livePage wraps a rod page for the interactions that need a real browser
type livePage struct {
	page *rod.Page
}

func (p *livePage) Click(matchingText string) bool {
	res, err := p.page.Eval(clickScript, strings.ToLower(matchingText))
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

// snapshot freezes the current DOM and rendered text into an HTMLPage
func (p *livePage) snapshot(url string) (*HTMLPage, error) {
	html, err := p.page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read page html: %w", err)
	}

	innerText := ""
	if res, err := p.page.Eval(innerTextScript); err == nil {
		innerText = res.Value.Str()
	}

	return NewHTMLPage(url, html, innerText)
}
