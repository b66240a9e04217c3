package scraper

import (
	"testing"

	"pricetrack/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func n11Page(t *testing.T, body string) *HTMLPage {
	t.Helper()
	page, err := NewHTMLPage("https://www.n11.com/urun/mouse-123", "<html><head></head><body>"+body+"</body></html>", "")
	require.NoError(t, err)
	return page
}

func TestN11SelectorsBeforeStructuredData(t *testing.T) {
	e := NewN11Extractor(config.DefaultScraperConfig())
	page := n11Page(t, `
		<script type="application/ld+json">{"@type":"Product","offers":{"price":"1999.00"}}</script>
		<div class="newPrice"><ins>2.499,00 TL</ins></div>`)

	price, err := e.Extract(page)
	require.NoError(t, err)
	assert.InDelta(t, 2499.0, price, 0.001)
}

func TestN11StructuredData(t *testing.T) {
	e := NewN11Extractor(config.DefaultScraperConfig())
	page := n11Page(t, `
		<script type="application/ld+json">{"offers":{"price":1999}}</script>
		<h1>Mouse</h1>`)

	price, err := e.Extract(page)
	require.NoError(t, err)
	assert.InDelta(t, 1999.0, price, 0.001)
}

func TestN11StructuredDataIsBounded(t *testing.T) {
	e := NewN11Extractor(config.DefaultScraperConfig())
	page := n11Page(t, `<script type="application/ld+json">{"offers":{"price":75000}}</script><h1>Mouse</h1>`)

	_, err := e.Extract(page)
	assert.ErrorIs(t, err, errOutOfBounds)
}

func TestN11PageWideTakesMinimum(t *testing.T) {
	e := NewN11Extractor(config.DefaultScraperConfig())
	page := n11Page(t, `<p>Satıcı A 1.250,00 TL</p><p>Satıcı B 999,00 TL</p><p>Set 12.000,00 TL</p><p>Kargo 39,90 TL</p>`)

	price, err := e.Extract(page)
	require.NoError(t, err)
	assert.InDelta(t, 999.0, price, 0.001)
}

func TestN11NotFound(t *testing.T) {
	e := NewN11Extractor(config.DefaultScraperConfig())

	_, err := e.Extract(n11Page(t, `<h1>Aradığınız sayfa bulunamadı</h1>`))
	assert.ErrorIs(t, err, errNoStrategyMatched)
}
