package scraper

import (
	"testing"

	"pricetrack/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyChainRecoversPanics(t *testing.T) {
	chain := newStrategyChain(models.SiteGeneric,
		strategy{method: "broken", run: func(RenderedPage, *extractionTrace) (float64, error) {
			panic("selector engine exploded")
		}},
		strategy{method: "fixed", run: func(RenderedPage, *extractionTrace) (float64, error) {
			return 42, nil
		}},
	)

	price, err := chain.extract(hbPage(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 42.0, price)
}

func TestStrategyChainFirstSuccessWins(t *testing.T) {
	calls := 0
	chain := newStrategyChain(models.SiteGeneric,
		strategy{method: "first", run: func(RenderedPage, *extractionTrace) (float64, error) {
			calls++
			return 100, nil
		}},
		strategy{method: "second", run: func(RenderedPage, *extractionTrace) (float64, error) {
			calls++
			return 200, nil
		}},
	)

	price, err := chain.extract(hbPage(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 100.0, price)
	assert.Equal(t, 1, calls)
}

func TestOfferPrice(t *testing.T) {
	price, ok := offerPrice(map[string]interface{}{"@type": "AggregateOffer", "lowPrice": "499.00"})
	require.True(t, ok)
	assert.Equal(t, 499.0, price)

	price, ok = offerPrice([]interface{}{
		map[string]interface{}{"availability": "OutOfStock"},
		map[string]interface{}{"price": 650.5},
	})
	require.True(t, ok)
	assert.Equal(t, 650.5, price)

	_, ok = offerPrice("free")
	assert.False(t, ok)
}

func TestIsProductType(t *testing.T) {
	assert.True(t, isProductType("Product"))
	assert.True(t, isProductType([]interface{}{"Thing", "Product"}))
	assert.False(t, isProductType("Offer"))
	assert.False(t, isProductType(nil))
}
