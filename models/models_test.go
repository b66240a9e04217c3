package models

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiteFromURL(t *testing.T) {
	assert.Equal(t, SiteHepsiburada, SiteFromURL("https://www.hepsiburada.com/mouse-p-HBV00000V8BC3"))
	assert.Equal(t, SiteN11, SiteFromURL("https://www.N11.com/urun/klavye-123"))
	assert.Equal(t, SiteGeneric, SiteFromURL("https://example.com/product"))
}

func TestLowestObservedPriceIsOrderIndependent(t *testing.T) {
	orders := [][]float64{
		{300, 250, 280},
		{280, 300, 250},
		{250, 280, 300},
	}
	for _, prices := range orders {
		var history []PriceObservation
		for _, p := range prices {
			history = append(history, PriceObservation{Price: p})
		}
		lowest, ok := LowestObservedPrice(history)
		require.True(t, ok)
		assert.Equal(t, 250.0, lowest)
	}

	_, ok := LowestObservedPrice(nil)
	assert.False(t, ok)
}

func TestTrackedProductJSON(t *testing.T) {
	p := &TrackedProduct{ID: 1, Name: "Mouse", TargetPrice: 800}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rolling_lowest":null`)

	p.RollingLowest = sql.NullFloat64{Float64: 749.9, Valid: true}
	data, err = json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rolling_lowest":749.9`)
}

func TestIsTargetReached(t *testing.T) {
	p := &TrackedProduct{TargetPrice: 1000}
	assert.True(t, p.IsTargetReached(1000))
	assert.True(t, p.IsTargetReached(999.99))
	assert.False(t, p.IsTargetReached(1000.01))
}

func TestScrapedObservationsDropsDegraded(t *testing.T) {
	history := []PriceObservation{
		{Site: SiteHepsiburada, Price: 1500},
		{Site: SiteDegraded, Price: 133},
		{Site: SiteHepsiburada, Price: 1450},
	}

	scraped := ScrapedObservations(history)
	require.Len(t, scraped, 2)

	lowest, ok := LowestObservedPrice(scraped)
	require.True(t, ok)
	assert.Equal(t, 1450.0, lowest)

	_, ok = LowestObservedPrice(ScrapedObservations([]PriceObservation{{Site: SiteDegraded, Price: 133}}))
	assert.False(t, ok)
}
