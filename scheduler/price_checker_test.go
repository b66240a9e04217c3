package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"pricetrack/models"
	"pricetrack/repository"
	"pricetrack/scraper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id int, url string, target float64) models.TrackedProduct {
	return models.TrackedProduct{ID: id, UserID: 1, Name: "Ürün " + url, URL: url, TargetPrice: target}
}

const (
	urlA = "https://www.hepsiburada.com/a-p-1"
	urlB = "https://www.n11.com/urun/b"
	urlC = "https://www.hepsiburada.com/c-p-3"
)

func newTestPriceChecker(source PriceSource, store ProductStore, mailer *fakeMailer, degraded bool) *PriceChecker {
	return NewPriceChecker(source, store, fakeUsers{1: "ayse@example.com"}, mailer, PriceCheckerOptions{
		Interval:         time.Hour,
		DegradedFallback: degraded,
	})
}

func TestRunOnceIsolatesProductFailures(t *testing.T) {
	source := newFakeSource()
	source.prices[urlA] = []float64{1000}
	source.panics[urlB] = true
	source.prices[urlC] = []float64{2000}
	store := newFakeStore(product(1, urlA, 10), product(2, urlB, 10), product(3, urlC, 10))

	pc := newTestPriceChecker(source, store, &fakeMailer{}, false)
	results, err := pc.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Empty(t, results[0].Error)
	assert.Contains(t, results[1].Error, "panicked")
	assert.Empty(t, results[2].Error)

	assert.Len(t, store.observations[1], 1)
	assert.Empty(t, store.observations[2])
	assert.Len(t, store.observations[3], 1)
	assert.Equal(t, []string{urlA, urlB, urlC}, source.calls)
	assert.False(t, pc.IsRunning())
}

func TestRunOnceSkipsProductsWithoutPrice(t *testing.T) {
	source := newFakeSource()
	source.prices[urlA] = []float64{1000}
	store := newFakeStore(product(1, urlA, 10), product(2, urlB, 10))

	pc := newTestPriceChecker(source, store, &fakeMailer{}, false)
	results, err := pc.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Nil(t, results[1].Price)
	assert.Contains(t, results[1].Error, "price_not_found")
	assert.Empty(t, store.observations[2])
	_, hasLowest := store.rolling[2]
	assert.False(t, hasLowest)
}

func TestAlertSentOnlyWhenTargetReached(t *testing.T) {
	source := newFakeSource()
	source.prices[urlA] = []float64{850}
	source.prices[urlB] = []float64{950}
	source.prices[urlC] = []float64{900}
	store := newFakeStore(product(1, urlA, 900), product(2, urlB, 900), product(3, urlC, 900))
	mailer := &fakeMailer{}

	pc := newTestPriceChecker(source, store, mailer, false)
	results, err := pc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, results[0].AlertSent)
	assert.False(t, results[1].AlertSent)
	assert.True(t, results[2].AlertSent)

	require.Equal(t, 2, mailer.count())
	assert.Equal(t, "ayse@example.com", mailer.sent[0].to)
	assert.Equal(t, "Fiyat Alarmı: Ürün "+urlA, mailer.sent[0].subject)
	assert.Contains(t, mailer.sent[0].body, "850,00 TL")
	assert.Contains(t, mailer.sent[0].body, urlA)
}

func TestAlertOwnerMissingIsNotFatal(t *testing.T) {
	source := newFakeSource()
	source.prices[urlA] = []float64{100}
	p := product(1, urlA, 900)
	p.UserID = 42
	store := newFakeStore(p)
	mailer := &fakeMailer{}

	pc := newTestPriceChecker(source, store, mailer, false)
	results, err := pc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Empty(t, results[0].Error)
	assert.False(t, results[0].AlertSent)
	assert.Equal(t, 0, mailer.count())
	assert.Len(t, store.observations[1], 1)
}

func TestMailFailureDoesNotStopCycle(t *testing.T) {
	source := newFakeSource()
	source.prices[urlA] = []float64{100}
	source.prices[urlC] = []float64{100}
	store := newFakeStore(product(1, urlA, 900), product(3, urlC, 900))
	mailer := &fakeMailer{err: errors.New("smtp down")}

	pc := newTestPriceChecker(source, store, mailer, false)
	results, err := pc.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.False(t, results[0].AlertSent)
	assert.Len(t, store.observations[3], 1)
}

func TestRollingLowestRecomputedFromHistory(t *testing.T) {
	source := newFakeSource()
	source.prices[urlA] = []float64{300, 250, 280}
	store := newFakeStore(product(1, urlA, 10))

	pc := newTestPriceChecker(source, store, &fakeMailer{}, false)
	for i := 0; i < 3; i++ {
		_, err := pc.RunOnce(context.Background())
		require.NoError(t, err)
	}

	assert.Len(t, store.observations[1], 3)
	assert.Equal(t, 250.0, store.rolling[1])
}

func TestOverlappingCycleIsSkipped(t *testing.T) {
	source := newFakeSource()
	source.prices[urlA] = []float64{1000}
	source.entered = make(chan struct{}, 1)
	source.release = make(chan struct{})
	store := newFakeStore(product(1, urlA, 10))

	pc := newTestPriceChecker(source, store, &fakeMailer{}, false)

	done := make(chan error, 1)
	go func() {
		_, err := pc.RunOnce(context.Background())
		done <- err
	}()

	<-source.entered
	assert.True(t, pc.IsRunning())

	_, err := pc.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)

	pc.tick()

	close(source.release)
	require.NoError(t, <-done)
	assert.False(t, pc.IsRunning())
	assert.Len(t, store.observations[1], 1)
}

func TestDegradedFallbackOnlyWhenBrowserUnavailable(t *testing.T) {
	source := newFakeSource()
	source.kinds[urlA] = scraper.KindLaunchError
	store := newFakeStore(product(1, urlA, 100000))
	mailer := &fakeMailer{}

	pc := newTestPriceChecker(source, store, mailer, true)
	results, err := pc.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.True(t, results[0].Degraded)
	require.Len(t, store.observations[1], 1)
	assert.Equal(t, models.SiteDegraded, store.observations[1][0].Site)
	assert.Equal(t, scraper.DegradedPrice(urlA), store.observations[1][0].Price)
	assert.Equal(t, 0, mailer.count())
	_, hasLowest := store.rolling[1]
	assert.False(t, hasLowest)
}

func TestDegradedFallbackIgnoresOtherFailures(t *testing.T) {
	const unsupported = "https://www.amazon.com.tr/dp/B0TEST"

	tests := []struct {
		name string
		url  string
		kind scraper.ErrorKind
	}{
		{"unsupported site", unsupported, scraper.KindUnsupportedSite},
		{"invalid url", "hepsiburada.com/x", scraper.KindInvalidURL},
		{"price not found", urlA, scraper.KindPriceNotFound},
		{"invalid price", urlA, scraper.KindInvalidPrice},
		{"timeout", urlA, scraper.KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newFakeSource()
			source.kinds[tt.url] = tt.kind
			store := newFakeStore(product(1, tt.url, 100000))

			pc := newTestPriceChecker(source, store, &fakeMailer{}, true)
			results, err := pc.RunOnce(context.Background())
			require.NoError(t, err)

			require.Len(t, results, 1)
			assert.False(t, results[0].Degraded)
			assert.Nil(t, results[0].Price)
			assert.Contains(t, results[0].Error, tt.kind.String())
			assert.Empty(t, store.observations[1])
		})
	}
}

func TestDegradedObservationsDoNotLowerRollingLowest(t *testing.T) {
	source := newFakeSource()
	source.prices[urlA] = []float64{1500}
	store := newFakeStore(product(1, urlA, 10))

	pc := newTestPriceChecker(source, store, &fakeMailer{}, true)
	_, err := pc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1500.0, store.rolling[1])

	source.prices[urlA] = nil
	source.kinds[urlA] = scraper.KindPriceNotFound
	_, err = pc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, store.observations[1], 1)
	assert.Equal(t, 1500.0, store.rolling[1])

	source.kinds[urlA] = scraper.KindLaunchError
	results, err := pc.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, results[0].Degraded)
	assert.Len(t, store.observations[1], 2)
	assert.Equal(t, 1500.0, store.rolling[1])
}

func TestObservationSiteInferredFromURL(t *testing.T) {
	source := newFakeSource()
	source.prices[urlB] = []float64{1500}
	store := newFakeStore(product(2, urlB, 10))

	pc := newTestPriceChecker(source, store, &fakeMailer{}, false)
	_, err := pc.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, store.observations[2], 1)
	assert.Equal(t, models.SiteN11, store.observations[2][0].Site)
}

func TestCheckProductByID(t *testing.T) {
	source := newFakeSource()
	source.prices[urlA] = []float64{1000}
	store := newFakeStore(product(1, urlA, 10))
	pc := newTestPriceChecker(source, store, &fakeMailer{}, false)

	result, err := pc.CheckProductByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, result.Price)
	assert.Equal(t, 1000.0, *result.Price)
	require.NotNil(t, result.RollingLowest)
	assert.Equal(t, 1000.0, *result.RollingLowest)

	_, err = pc.CheckProductByID(context.Background(), 9)
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestStartSchedulesCycle(t *testing.T) {
	pc := newTestPriceChecker(newFakeSource(), newFakeStore(), &fakeMailer{}, false)

	require.NoError(t, pc.Start())
	<-pc.Stop().Done()
}
