package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every runtime setting of the service
type Config struct {
	Scraper   ScraperConfig
	Scheduler SchedulerConfig
	Mail      MailConfig
	Server    ServerConfig
	Log       LogConfig
}

// SiteProfile holds the per-marketplace page load settings
type SiteProfile struct {
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	BannerDelay       time.Duration
	// WaitNetworkIdle waits for full network idle instead of "almost idle"
	WaitNetworkIdle bool
}

// ScraperConfig holds browser and extraction settings
type ScraperConfig struct {
	Hepsiburada SiteProfile
	N11         SiteProfile

	PriceLowerBound       float64
	PriceUpperBound       float64
	FallbackLowerBound    float64
	N11FallbackUpperBound float64
	NoiseFloor            float64

	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	BrowserBin     string
	Headless       bool

	MaxRetries int
	RetryDelay time.Duration
}

// SchedulerConfig holds the periodic checker settings
type SchedulerConfig struct {
	CheckInterval     time.Duration
	TestCheckInterval time.Duration
	TestMailInterval  time.Duration
	DegradedFallback  bool
	RunOnStart        bool
}

// MailConfig holds SMTP settings
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Host           string
	Port           string
	AllowedOrigins string
	// ScrapeRateLimit is the allowed interactive scrapes per second per client
	ScrapeRateLimit float64
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// DefaultScraperConfig returns scraper settings tuned for the two marketplaces
func DefaultScraperConfig() ScraperConfig {
	return ScraperConfig{
		Hepsiburada: SiteProfile{
			NavigationTimeout: 45 * time.Second,
			SettleDelay:       2 * time.Second,
			BannerDelay:       1 * time.Second,
			WaitNetworkIdle:   true,
		},
		N11: SiteProfile{
			NavigationTimeout: 30 * time.Second,
			SettleDelay:       3 * time.Second,
			BannerDelay:       2 * time.Second,
			WaitNetworkIdle:   false,
		},
		PriceLowerBound:       10,
		PriceUpperBound:       50000,
		FallbackLowerBound:    100,
		N11FallbackUpperBound: 10000,
		NoiseFloor:            500,
		UserAgent:             "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		ViewportWidth:         1366,
		ViewportHeight:        768,
		Headless:              true,
		MaxRetries:            0,
		RetryDelay:            5 * time.Second,
	}
}

// DefaultSchedulerConfig returns the production and test-mode intervals
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		CheckInterval:     10 * time.Minute,
		TestCheckInterval: 20 * time.Second,
		TestMailInterval:  40 * time.Second,
		DegradedFallback:  false,
		RunOnStart:        true,
	}
}

// Load reads the configuration from environment variables
func Load() *Config {
	sc := DefaultScraperConfig()
	sc.Hepsiburada.NavigationTimeout = getEnvDuration("HEPSIBURADA_NAV_TIMEOUT", sc.Hepsiburada.NavigationTimeout)
	sc.Hepsiburada.SettleDelay = getEnvDuration("HEPSIBURADA_SETTLE_DELAY", sc.Hepsiburada.SettleDelay)
	sc.N11.NavigationTimeout = getEnvDuration("N11_NAV_TIMEOUT", sc.N11.NavigationTimeout)
	sc.N11.SettleDelay = getEnvDuration("N11_SETTLE_DELAY", sc.N11.SettleDelay)
	sc.PriceLowerBound = getEnvFloat("PRICE_LOWER_BOUND", sc.PriceLowerBound)
	sc.PriceUpperBound = getEnvFloat("PRICE_UPPER_BOUND", sc.PriceUpperBound)
	sc.NoiseFloor = getEnvFloat("NOISE_FLOOR", sc.NoiseFloor)
	sc.UserAgent = getEnv("SCRAPER_USER_AGENT", sc.UserAgent)
	sc.BrowserBin = getEnv("BROWSER_BIN", sc.BrowserBin)
	sc.Headless = getEnvBool("BROWSER_HEADLESS", sc.Headless)
	sc.MaxRetries = getEnvInt("SCRAPE_MAX_RETRIES", sc.MaxRetries)
	sc.RetryDelay = getEnvDuration("SCRAPE_RETRY_DELAY", sc.RetryDelay)

	sched := DefaultSchedulerConfig()
	if minutes := getEnvInt("CHECK_INTERVAL_MINUTES", 0); minutes > 0 {
		sched.CheckInterval = time.Duration(minutes) * time.Minute
	}
	sched.TestCheckInterval = getEnvDuration("TEST_CHECK_INTERVAL", sched.TestCheckInterval)
	sched.TestMailInterval = getEnvDuration("TEST_MAIL_INTERVAL", sched.TestMailInterval)
	sched.DegradedFallback = getEnvBool("DEGRADED_FALLBACK", sched.DegradedFallback)
	sched.RunOnStart = getEnvBool("CHECK_ON_START", sched.RunOnStart)

	mail := MailConfig{
		Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		Port:     getEnvInt("SMTP_PORT", 587),
		Username: os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASS"),
	}
	mail.From = getEnv("SMTP_FROM", mail.Username)
	if mail.From == "" {
		mail.From = "noreply@example.com"
	}

	return &Config{
		Scraper:   sc,
		Scheduler: sched,
		Mail:      mail,
		Server: ServerConfig{
			Host:            getEnv("HOST", "0.0.0.0"),
			Port:            getEnv("PORT", "8080"),
			AllowedOrigins:  getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
			ScrapeRateLimit: getEnvFloat("SCRAPE_RATE_LIMIT", 0.2),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
