package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"pricetrack/models"
	"pricetrack/scraper"
	"pricetrack/services"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrCycleInProgress is returned when a check cycle is requested while one is running
var ErrCycleInProgress = errors.New("price check cycle already in progress")

// PriceSource produces a tagged scrape outcome for a URL
type PriceSource interface {
	Scrape(ctx context.Context, url string) scraper.Outcome
}

// ProductStore is the persistence the checker needs
type ProductStore interface {
	GetTrackedProducts(ctx context.Context) ([]models.TrackedProduct, error)
	GetProductByID(ctx context.Context, id int) (*models.TrackedProduct, error)
	AddObservation(ctx context.Context, obs *models.PriceObservation) error
	GetObservations(ctx context.Context, productID int) ([]models.PriceObservation, error)
	UpdateRollingLowest(ctx context.Context, productID int, lowest float64) error
}

// UserStore resolves alert recipients
type UserStore interface {
	GetUserEmail(ctx context.Context, userID int) (string, error)
}

// PriceChecker re-checks every tracked product on a fixed interval
type PriceChecker struct {
	cron     *cron.Cron
	interval time.Duration
	source   PriceSource
	products ProductStore
	users    UserStore
	mailer   services.Mailer

	degradedFallback bool
	runOnStart       bool

	running atomic.Bool
	logger  *logrus.Entry
}

// PriceCheckerOptions tunes the checker
type PriceCheckerOptions struct {
	Interval         time.Duration
	DegradedFallback bool
	RunOnStart       bool
}

func NewPriceChecker(source PriceSource, products ProductStore, users UserStore, mailer services.Mailer, opts PriceCheckerOptions) *PriceChecker {
	return &PriceChecker{
		cron:             cron.New(cron.WithSeconds()),
		interval:         opts.Interval,
		source:           source,
		products:         products,
		users:            users,
		mailer:           mailer,
		degradedFallback: opts.DegradedFallback,
		runOnStart:       opts.RunOnStart,
		logger:           logrus.WithField("component", "price_checker"),
	}
}

// Start starts the scheduled price checking
func (pc *PriceChecker) Start() error {
	schedule := fmt.Sprintf("@every %s", pc.interval)
	if _, err := pc.cron.AddFunc(schedule, pc.tick); err != nil {
		return fmt.Errorf("failed to schedule price checker: %w", err)
	}

	if pc.runOnStart {
		go pc.tick()
	}

	pc.cron.Start()
	pc.logger.WithField("interval", pc.interval.String()).Info("⏰ Price checker scheduled")
	return nil
}

// Stop stops scheduling new cycles. The returned context is done once a
// running cycle has finished.
func (pc *PriceChecker) Stop() context.Context {
	return pc.cron.Stop()
}

// IsRunning reports whether a cycle is in progress
func (pc *PriceChecker) IsRunning() bool {
	return pc.running.Load()
}

func (pc *PriceChecker) tick() {
	if _, err := pc.RunOnce(context.Background()); errors.Is(err, ErrCycleInProgress) {
		pc.logger.Warn("⏭️ Previous cycle still running, skipping this tick")
	}
}

// RunOnce checks every tracked product sequentially in creation order.
// A cycle never overlaps another one; the late caller gets ErrCycleInProgress.
func (pc *PriceChecker) RunOnce(ctx context.Context) ([]models.CheckResult, error) {
	if !pc.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer pc.running.Store(false)

	start := time.Now()
	pc.logger.Info("🔄 Starting scheduled price check")

	products, err := pc.products.GetTrackedProducts(ctx)
	if err != nil {
		pc.logger.WithError(err).Error("Failed to load tracked products")
		return nil, err
	}

	if len(products) == 0 {
		pc.logger.Info("No products to check")
		return nil, nil
	}

	results := make([]models.CheckResult, 0, len(products))
	failed := 0
	for _, product := range products {
		if ctx.Err() != nil {
			break
		}
		result := pc.CheckProduct(ctx, product)
		if result.Error != "" {
			failed++
		}
		results = append(results, result)
	}

	pc.logger.WithFields(logrus.Fields{
		"products": len(products),
		"checked":  len(results),
		"failed":   failed,
		"duration": time.Since(start).String(),
	}).Info("✅ Price check cycle completed")
	return results, nil
}

// CheckProductByID runs a single product through the check pipeline
func (pc *PriceChecker) CheckProductByID(ctx context.Context, id int) (models.CheckResult, error) {
	product, err := pc.products.GetProductByID(ctx, id)
	if err != nil {
		return models.CheckResult{ProductID: id}, err
	}
	return pc.CheckProduct(ctx, *product), nil
}

// CheckProduct scrapes, records and alerts for one product. It never panics;
// every failure is logged and reported in the result.
func (pc *PriceChecker) CheckProduct(ctx context.Context, product models.TrackedProduct) (result models.CheckResult) {
	result = models.CheckResult{ProductID: product.ID}
	logger := pc.logger.WithFields(logrus.Fields{"product_id": product.ID, "url": product.URL})

	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Sprintf("check panicked: %v", r)
			logger.WithField("panic", r).Error("❌ Product check crashed")
		}
	}()

	outcome := pc.source.Scrape(ctx, product.URL)

	var price float64
	var site models.Site
	switch {
	case outcome.OK:
		price = outcome.Price
		site = models.SiteFromURL(product.URL)
	case pc.degradedFallback && outcome.Err != nil && outcome.Err.Kind == scraper.KindLaunchError:
		price = scraper.DegradedPrice(product.URL)
		site = models.SiteDegraded
		result.Degraded = true
		logger.WithField("price", price).Warn("🧪 Using degraded pseudo-price, browser unavailable")
	default:
		result.Error = outcome.Err.Error()
		logger.WithField("kind", outcome.Err.Kind.String()).WithError(outcome.Err).Warn("⚠️ No price for product, skipping")
		return result
	}
	result.Price = &price
	result.Site = site

	obs := &models.PriceObservation{
		ProductID:  product.ID,
		Site:       site,
		Price:      price,
		ObservedAt: time.Now(),
	}
	if err := pc.products.AddObservation(ctx, obs); err != nil {
		result.Error = err.Error()
		logger.WithError(err).Error("Failed to record observation")
		return result
	}

	history, err := pc.products.GetObservations(ctx, product.ID)
	if err != nil {
		logger.WithError(err).Error("Failed to load price history")
	} else if lowest, ok := models.LowestObservedPrice(models.ScrapedObservations(history)); ok {
		if err := pc.products.UpdateRollingLowest(ctx, product.ID, lowest); err != nil {
			logger.WithError(err).Error("Failed to update rolling lowest")
		} else {
			result.RollingLowest = &lowest
		}
	}

	logger.WithFields(logrus.Fields{"price": price, "site": site}).Info("💰 Price recorded")

	if result.Degraded || !product.IsTargetReached(price) {
		return result
	}

	email, err := pc.users.GetUserEmail(ctx, product.UserID)
	if err != nil || email == "" {
		logger.WithField("user_id", product.UserID).WithError(err).Warn("Alert owner could not be resolved, skipping mail")
		return result
	}

	subject, body := services.AlertMail(product, price)
	if err := pc.mailer.SendMail(ctx, email, subject, body); err != nil {
		logger.WithError(err).Error("Failed to send price alert")
		return result
	}

	result.AlertSent = true
	logger.WithFields(logrus.Fields{"to": email, "price": price, "target": product.TargetPrice}).Info("🔔 Price alert sent")
	return result
}
