package scheduler

import (
	"context"
	"sync"

	"pricetrack/models"
	"pricetrack/repository"
	"pricetrack/scraper"
)

type fakeSource struct {
	mu      sync.Mutex
	prices  map[string][]float64
	panics  map[string]bool
	kinds   map[string]scraper.ErrorKind
	calls   []string
	release chan struct{}
	entered chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		prices: map[string][]float64{},
		panics: map[string]bool{},
		kinds:  map[string]scraper.ErrorKind{},
	}
}

func (f *fakeSource) Scrape(_ context.Context, url string) scraper.Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	panics := f.panics[url]
	kind, hasKind := f.kinds[url]
	var price float64
	ok := false
	if queue := f.prices[url]; len(queue) > 0 {
		price, ok = queue[0], true
		if len(queue) > 1 {
			f.prices[url] = queue[1:]
		}
	}
	release, entered := f.release, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if panics {
		panic("extraction exploded")
	}
	if !ok {
		if !hasKind {
			kind = scraper.KindPriceNotFound
		}
		return scraper.Outcome{URL: url, Err: &scraper.ScrapeError{Kind: kind, URL: url}}
	}
	return scraper.Outcome{URL: url, Site: models.SiteFromURL(url), Price: price, OK: true}
}

func (f *fakeSource) ScrapePrice(ctx context.Context, url string) (float64, bool) {
	out := f.Scrape(ctx, url)
	return out.Price, out.OK
}

type fakeStore struct {
	mu           sync.Mutex
	products     []models.TrackedProduct
	observations map[int][]models.PriceObservation
	rolling      map[int]float64
}

func newFakeStore(products ...models.TrackedProduct) *fakeStore {
	return &fakeStore{
		products:     products,
		observations: map[int][]models.PriceObservation{},
		rolling:      map[int]float64{},
	}
}

func (s *fakeStore) GetTrackedProducts(context.Context) ([]models.TrackedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TrackedProduct(nil), s.products...), nil
}

func (s *fakeStore) GetProductByID(_ context.Context, id int) (*models.TrackedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (s *fakeStore) AddObservation(_ context.Context, obs *models.PriceObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs.ID = len(s.observations[obs.ProductID]) + 1
	s.observations[obs.ProductID] = append(s.observations[obs.ProductID], *obs)
	return nil
}

func (s *fakeStore) GetObservations(_ context.Context, productID int) ([]models.PriceObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PriceObservation(nil), s.observations[productID]...), nil
}

func (s *fakeStore) UpdateRollingLowest(_ context.Context, productID int, lowest float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolling[productID] = lowest
	return nil
}

type fakeUsers map[int]string

func (u fakeUsers) GetUserEmail(_ context.Context, userID int) (string, error) {
	email, ok := u[userID]
	if !ok {
		return "", repository.ErrUserNotFound
	}
	return email, nil
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendMail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
