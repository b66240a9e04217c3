package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pricetrack/config"
	"pricetrack/database"
	"pricetrack/handlers"
	"pricetrack/middleware"
	"pricetrack/repository"
	"pricetrack/scheduler"
	"pricetrack/scraper"
	"pricetrack/services"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg := config.Load()
	setupLogging(cfg.Log)

	// Initialize database
	if err := database.InitDatabase(); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.CloseDatabase()

	// Create tables
	if err := database.CreateTables(); err != nil {
		logrus.WithError(err).Fatal("Failed to create tables")
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(database.DB)
	userRepo := repository.NewUserRepository(database.DB)

	priceScraper := scraper.NewScraper(cfg.Scraper, scraper.NewBrowserFetcher(cfg.Scraper))
	mailer := services.NewSMTPMailer(cfg.Mail)

	// Initialize and start price checker
	priceChecker := scheduler.NewPriceChecker(priceScraper, productRepo, userRepo, mailer, scheduler.PriceCheckerOptions{
		Interval:         cfg.Scheduler.CheckInterval,
		DegradedFallback: cfg.Scheduler.DegradedFallback,
		RunOnStart:       cfg.Scheduler.RunOnStart,
	})
	if err := priceChecker.Start(); err != nil {
		logrus.WithError(err).Fatal("Failed to start price checker")
	}

	testChecker := scheduler.NewTestChecker(priceScraper, mailer, cfg.Scheduler.TestCheckInterval, cfg.Scheduler.TestMailInterval)

	h := handlers.NewHandlers(priceScraper, productRepo, userRepo, priceChecker, testChecker)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.LoggingMiddleware)
	h.RegisterRoutes(r, middleware.ScrapeRateLimit(cfg.Server.ScrapeRateLimit))

	c := cors.New(cors.Options{
		AllowedOrigins:   splitOrigins(cfg.Server.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("addr", srv.Addr).Info("🌐 Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logrus.Info("🛑 Shutting down")
	if err := testChecker.Stop(); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
		logrus.WithError(err).Warn("Failed to stop test checker")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
	}

	select {
	case <-priceChecker.Stop().Done():
	case <-ctx.Done():
		logrus.Warn("Price check cycle still running at shutdown")
	}
}

func setupLogging(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
