package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"pricetrack/models"
	"pricetrack/repository"
	"pricetrack/scheduler"
	"pricetrack/scraper"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const defaultHistoryDays = 30

// ProductStore is the product persistence the API needs
type ProductStore interface {
	AddProduct(ctx context.Context, req models.AddProductRequest) (*models.TrackedProduct, error)
	GetTrackedProducts(ctx context.Context) ([]models.TrackedProduct, error)
	GetProductByID(ctx context.Context, id int) (*models.TrackedProduct, error)
	DeleteProduct(ctx context.Context, id int) error
	GetObservations(ctx context.Context, productID int) ([]models.PriceObservation, error)
	GetDailyLowest(ctx context.Context, productID, days int) ([]models.DailyLowest, error)
}

// UserStore creates and resolves users
type UserStore interface {
	CreateUser(ctx context.Context, name, email string) (*models.User, error)
	GetUserEmail(ctx context.Context, userID int) (string, error)
}

// ProductChecker runs the scheduled check pipeline on demand
type ProductChecker interface {
	CheckProductByID(ctx context.Context, id int) (models.CheckResult, error)
	IsRunning() bool
}

// PriceScraper is the interactive scrape entry point; failures carry a typed kind
type PriceScraper interface {
	ScrapePriceStrict(ctx context.Context, url string) (float64, error)
}

// TestRunner controls the test-mode checker
type TestRunner interface {
	Start(testURL, email string) error
	Stop() error
	Status() models.CheckerStatus
}

type Handlers struct {
	scraper    PriceScraper
	products   ProductStore
	users      UserStore
	checker    ProductChecker
	testRunner TestRunner
	startedAt  time.Time
	logger     *logrus.Entry
}

func NewHandlers(source PriceScraper, products ProductStore, users UserStore, checker ProductChecker, testRunner TestRunner) *Handlers {
	return &Handlers{
		scraper:    source,
		products:   products,
		users:      users,
		checker:    checker,
		testRunner: testRunner,
		startedAt:  time.Now(),
		logger:     logrus.WithField("component", "api"),
	}
}

// RegisterRoutes mounts every endpoint on r. scrapeLimit wraps the
// browser-backed interactive scrape route.
func (h *Handlers) RegisterRoutes(r *mux.Router, scrapeLimit func(http.Handler) http.Handler) {
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/status", h.Status).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()

	apiV1.HandleFunc("/users", h.CreateUser).Methods("POST")

	apiV1.HandleFunc("/products", h.AddProduct).Methods("POST")
	apiV1.HandleFunc("/products", h.ListProducts).Methods("GET")
	apiV1.HandleFunc("/products/{id}", h.GetProduct).Methods("GET")
	apiV1.HandleFunc("/products/{id}", h.DeleteProduct).Methods("DELETE")
	apiV1.HandleFunc("/products/{id}/history", h.GetPriceHistory).Methods("GET")
	apiV1.HandleFunc("/products/{id}/observations", h.GetObservations).Methods("GET")
	apiV1.HandleFunc("/products/{id}/check", h.CheckProductNow).Methods("POST")

	var scrape http.Handler = http.HandlerFunc(h.ScrapeNow)
	if scrapeLimit != nil {
		scrape = scrapeLimit(scrape)
	}
	apiV1.Handle("/scrape", scrape).Methods("POST")

	apiV1.HandleFunc("/test/start", h.StartTestChecker).Methods("POST")
	apiV1.HandleFunc("/test/stop", h.StopTestChecker).Methods("POST")
	apiV1.HandleFunc("/test/status", h.TestCheckerStatus).Methods("GET")
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "pricetrack",
	}
	writeJSON(w, http.StatusOK, response)
}

// Status reports the tracked product count and checker activity
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.GetTrackedProducts(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to count tracked products")
		writeError(w, http.StatusInternalServerError, "Failed to get status")
		return
	}

	withLowest := 0
	for i := range products {
		if products[i].HasLowest() {
			withLowest++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timestamp":            time.Now(),
		"uptime":               time.Since(h.startedAt).Round(time.Second).String(),
		"tracked_products":     len(products),
		"products_with_lowest": withLowest,
		"check_cycle_running":  h.checker.IsRunning(),
		"test_checker_running": h.testRunner.Status().IsRunning,
	})
}

// CreateUser registers an alert recipient
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Name and email are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid email address")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Name, req.Email)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create user")
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// AddProduct starts tracking a product and records an initial price in the background
func (h *Handlers) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req models.AddProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.URL = strings.TrimSpace(req.URL)
	if req.Name == "" || req.URL == "" || req.TargetPrice <= 0 {
		writeError(w, http.StatusBadRequest, "Name, URL and a positive target price are required")
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	if _, err := h.users.GetUserEmail(r.Context(), req.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.WithError(err).Error("Failed to resolve product owner")
		writeError(w, http.StatusInternalServerError, "Failed to add product")
		return
	}

	product, err := h.products.AddProduct(r.Context(), req)
	if err != nil {
		h.logger.WithError(err).Error("Failed to add product")
		writeError(w, http.StatusInternalServerError, "Failed to add product")
		return
	}

	go func(id int) {
		result, err := h.checker.CheckProductByID(context.Background(), id)
		if err != nil {
			h.logger.WithField("product_id", id).WithError(err).Warn("Initial price check failed")
			return
		}
		if result.Price != nil {
			h.logger.WithFields(logrus.Fields{"product_id": id, "price": *result.Price}).Info("Initial price recorded")
		}
	}(product.ID)

	writeJSON(w, http.StatusCreated, product)
}

// ListProducts returns all tracked products
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.GetTrackedProducts(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get tracked products")
		writeError(w, http.StatusInternalServerError, "Failed to get tracked products")
		return
	}

	if products == nil {
		products = []models.TrackedProduct{}
	}

	writeJSON(w, http.StatusOK, products)
}

// GetProduct returns a single tracked product
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	product, err := h.products.GetProductByID(r.Context(), id)
	if err != nil {
		h.productError(w, err, "Failed to get product")
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// DeleteProduct stops tracking a product; its history goes with it
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := h.products.DeleteProduct(r.Context(), id); err != nil {
		h.productError(w, err, "Failed to delete product")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

// GetPriceHistory returns the lowest price per day, ?days= defaults to 30
func (h *Handlers) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	days := defaultHistoryDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 {
			days = d
		}
	}

	if _, err := h.products.GetProductByID(r.Context(), id); err != nil {
		h.productError(w, err, "Failed to get price history")
		return
	}

	history, err := h.products.GetDailyLowest(r.Context(), id, days)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get price history")
		writeError(w, http.StatusInternalServerError, "Failed to get price history")
		return
	}
	if history == nil {
		history = []models.DailyLowest{}
	}

	writeJSON(w, http.StatusOK, history)
}

// GetObservations returns every raw observation of a product, oldest first
func (h *Handlers) GetObservations(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if _, err := h.products.GetProductByID(r.Context(), id); err != nil {
		h.productError(w, err, "Failed to get observations")
		return
	}

	observations, err := h.products.GetObservations(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get observations")
		writeError(w, http.StatusInternalServerError, "Failed to get observations")
		return
	}
	if observations == nil {
		observations = []models.PriceObservation{}
	}

	writeJSON(w, http.StatusOK, observations)
}

// CheckProductNow runs the full check pipeline for one product synchronously
func (h *Handlers) CheckProductNow(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	result, err := h.checker.CheckProductByID(r.Context(), id)
	if err != nil {
		h.productError(w, err, "Failed to check product")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ScrapeNow scrapes an arbitrary supported URL without recording anything
func (h *Handlers) ScrapeNow(w http.ResponseWriter, r *http.Request) {
	var req models.ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	price, err := h.scraper.ScrapePriceStrict(r.Context(), req.URL)
	if err != nil {
		kind := scraper.KindOf(err)
		h.logger.WithFields(logrus.Fields{"url": req.URL, "kind": kind.String()}).WithError(err).Warn("Interactive scrape failed")
		writeJSON(w, scrapeStatus(kind), map[string]string{
			"error": kind.Message(),
			"kind":  kind.String(),
		})
		return
	}

	writeJSON(w, http.StatusOK, models.ScrapeResponse{
		URL:       req.URL,
		Site:      models.SiteFromURL(req.URL),
		Price:     price,
		CheckedAt: time.Now(),
	})
}

// StartTestChecker starts the test-mode checker for one URL and recipient
func (h *Handlers) StartTestChecker(w http.ResponseWriter, r *http.Request) {
	var req models.StartCheckerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "URL and email are required")
		return
	}

	if err := h.testRunner.Start(req.URL, req.Email); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			writeError(w, http.StatusBadRequest, "Test checker is already running")
			return
		}
		h.logger.WithError(err).Error("Failed to start test checker")
		writeError(w, http.StatusInternalServerError, "Failed to start test checker")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Test checker started",
		"status":  h.testRunner.Status(),
	})
}

// StopTestChecker stops the test-mode checker
func (h *Handlers) StopTestChecker(w http.ResponseWriter, r *http.Request) {
	if err := h.testRunner.Stop(); err != nil {
		if errors.Is(err, scheduler.ErrNotRunning) {
			writeError(w, http.StatusBadRequest, "Test checker is not running")
			return
		}
		h.logger.WithError(err).Error("Failed to stop test checker")
		writeError(w, http.StatusInternalServerError, "Failed to stop test checker")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Test checker stopped",
		"status":  h.testRunner.Status(),
	})
}

func (h *Handlers) TestCheckerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.testRunner.Status())
}

func (h *Handlers) productError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, repository.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	h.logger.WithError(err).Error(message)
	writeError(w, http.StatusInternalServerError, message)
}

func productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid product ID")
		return 0, false
	}
	return id, true
}

func scrapeStatus(kind scraper.ErrorKind) int {
	switch kind {
	case scraper.KindUnsupportedSite, scraper.KindInvalidURL:
		return http.StatusBadRequest
	case scraper.KindPriceNotFound, scraper.KindInvalidPrice:
		return http.StatusUnprocessableEntity
	case scraper.KindTimeout:
		return http.StatusGatewayTimeout
	case scraper.KindNetworkError, scraper.KindLaunchError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
