package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pricetrack/models"
	"pricetrack/services"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	ErrAlreadyRunning = errors.New("test checker is already running")
	ErrNotRunning     = errors.New("test checker is not running")
)

const (
	maxCheckerLogs  = 50
	statusLogWindow = 20
)

// CheckerState is the mutable state of one test-mode run
type CheckerState struct {
	TestURL   string
	Email     string
	RunCount  int
	MailCount int
	Logs      []string
	IsRunning bool
	StartedAt time.Time
}

// LenientSource reports only whether a price was found; failure details are logged by the source
type LenientSource interface {
	ScrapePrice(ctx context.Context, url string) (float64, bool)
}

// TestChecker scrapes a single URL on a short interval and mails status
// reports, so an operator can verify scraping and mail delivery end to end.
type TestChecker struct {
	mu    sync.Mutex
	state CheckerState
	cron  *cron.Cron

	source        LenientSource
	mailer        services.Mailer
	checkInterval time.Duration
	mailInterval  time.Duration

	checking atomic.Bool
	now      func() time.Time
	logger   *logrus.Entry
}

func NewTestChecker(source LenientSource, mailer services.Mailer, checkInterval, mailInterval time.Duration) *TestChecker {
	return &TestChecker{
		source:        source,
		mailer:        mailer,
		checkInterval: checkInterval,
		mailInterval:  mailInterval,
		now:           time.Now,
		logger:        logrus.WithField("component", "test_checker"),
	}
}

// Start resets the state and schedules both jobs
func (tc *TestChecker) Start(testURL, email string) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.state.IsRunning {
		tc.logLocked("⚠️ Test is already running")
		return ErrAlreadyRunning
	}
	if strings.TrimSpace(testURL) == "" || strings.TrimSpace(email) == "" {
		return fmt.Errorf("test url and email are required")
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", tc.checkInterval), func() { tc.checkPrice(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule test price check: %w", err)
	}
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", tc.mailInterval), func() { tc.sendReport(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule test report mail: %w", err)
	}

	tc.state = CheckerState{
		TestURL:   testURL,
		Email:     email,
		IsRunning: true,
		StartedAt: tc.now(),
	}
	tc.cron = c

	tc.logLocked("🚀 Test started")
	tc.logLocked("URL: " + testURL)
	tc.logLocked("Email: " + email)

	c.Start()
	tc.logLocked(fmt.Sprintf("✅ Jobs scheduled (%s price check, %s mail)", tc.checkInterval, tc.mailInterval))
	return nil
}

// Stop removes both jobs at once. A check already in flight finishes on its own.
func (tc *TestChecker) Stop() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if !tc.state.IsRunning {
		tc.logLocked("⚠️ Test is already stopped")
		return ErrNotRunning
	}

	if tc.cron != nil {
		tc.cron.Stop()
		tc.cron = nil
	}
	tc.state.IsRunning = false

	tc.logLocked("🛑 Test stopped")
	tc.logLocked("Total uptime: " + tc.uptimeLocked())
	tc.logLocked(fmt.Sprintf("Total checks: %d", tc.state.RunCount))
	tc.logLocked(fmt.Sprintf("Total mails: %d", tc.state.MailCount))
	return nil
}

// Status returns a snapshot with the latest log lines
func (tc *TestChecker) Status() models.CheckerStatus {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.statusLocked(statusLogWindow)
}

// Logs returns the whole retained log buffer
func (tc *TestChecker) Logs() []string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]string(nil), tc.state.Logs...)
}

func (tc *TestChecker) checkPrice(ctx context.Context) {
	if !tc.checking.CompareAndSwap(false, true) {
		tc.log("⏭️ Previous check still running, skipping")
		return
	}
	defer tc.checking.Store(false)

	tc.mu.Lock()
	tc.state.RunCount++
	run := tc.state.RunCount
	url := tc.state.TestURL
	tc.logLocked(fmt.Sprintf("Check #%d started", run))
	tc.mu.Unlock()

	tc.log("Checking URL: " + url)
	if price, ok := tc.source.ScrapePrice(ctx, url); ok {
		tc.log(fmt.Sprintf("✅ Price fetched: %s", services.FormatPrice(price)))
	} else {
		tc.log("⚠️ Price could not be fetched")
	}

	tc.log(fmt.Sprintf("Check #%d finished", run))
}

func (tc *TestChecker) sendReport(ctx context.Context) {
	tc.mu.Lock()
	tc.state.MailCount++
	email := tc.state.Email
	status := tc.statusLocked(maxCheckerLogs)
	tc.mu.Unlock()

	subject, body := services.StatusReportMail(status, tc.now())
	if err := tc.mailer.SendMail(ctx, email, subject, body); err != nil {
		tc.log("❌ Failed to send report mail: " + err.Error())
		return
	}
	tc.log(fmt.Sprintf("📧 Report mail #%d sent to %s", status.MailCount, email))
}

func (tc *TestChecker) log(message string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.logLocked(message)
}

func (tc *TestChecker) logLocked(message string) {
	line := fmt.Sprintf("[%s] %s", tc.now().Format(time.RFC3339), message)
	tc.state.Logs = append(tc.state.Logs, line)
	if len(tc.state.Logs) > maxCheckerLogs {
		tc.state.Logs = tc.state.Logs[len(tc.state.Logs)-maxCheckerLogs:]
	}
	tc.logger.Info(message)
}

func (tc *TestChecker) uptimeLocked() string {
	if tc.state.StartedAt.IsZero() {
		return "0s"
	}
	return tc.now().Sub(tc.state.StartedAt).Round(time.Second).String()
}

func (tc *TestChecker) statusLocked(window int) models.CheckerStatus {
	logs := tc.state.Logs
	if len(logs) > window {
		logs = logs[len(logs)-window:]
	}

	status := models.CheckerStatus{
		IsRunning: tc.state.IsRunning,
		TestURL:   tc.state.TestURL,
		RunCount:  tc.state.RunCount,
		MailCount: tc.state.MailCount,
		Uptime:    tc.uptimeLocked(),
		Logs:      append([]string{}, logs...),
	}
	if !tc.state.StartedAt.IsZero() {
		started := tc.state.StartedAt
		status.StartedAt = &started
	}
	if n := len(tc.state.Logs); n > 0 {
		status.LastLog = tc.state.Logs[n-1]
	}
	return status
}
