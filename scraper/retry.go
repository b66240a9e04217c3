package scraper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy retries transient fetch failures. Zero MaxRetries disables it.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// Do runs op until it succeeds, fails with a permanent kind, or retries run out
func (p RetryPolicy) Do(ctx context.Context, url string, op func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || !KindOf(err).Retryable() {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"url":     url,
			"attempt": attempt + 1,
			"kind":    KindOf(err).String(),
		}).Warn("🔄 Transient fetch failure, retrying")

		if sleepErr := sleepContext(ctx, p.Delay*time.Duration(attempt+1)); sleepErr != nil {
			return err
		}
	}
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
