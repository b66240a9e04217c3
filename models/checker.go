package models

import "time"

// CheckerStatus is a snapshot of the test-mode checker state
type CheckerStatus struct {
	IsRunning bool       `json:"is_running"`
	TestURL   string     `json:"test_url"`
	RunCount  int        `json:"run_count"`
	MailCount int        `json:"mail_count"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Uptime    string     `json:"uptime"`
	Logs      []string   `json:"logs"`
	LastLog   string     `json:"last_log,omitempty"`
}

// StartCheckerRequest starts the test-mode checker
type StartCheckerRequest struct {
	URL   string `json:"url"`
	Email string `json:"email"`
}
