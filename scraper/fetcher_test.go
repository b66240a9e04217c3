package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pricetrack/config"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
)

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline", fmt.Errorf("navigate: %w", context.DeadlineExceeded), KindTimeout},
		{"navigation", &rod.NavigationError{Reason: "net::ERR_NAME_NOT_RESOLVED"}, KindNetworkError},
		{"timeout text", errors.New("cdp: operation timeout"), KindTimeout},
		{"other", errors.New("websocket closed"), KindNetworkError},
		{"already typed", newScrapeError(KindLaunchError, "u", nil), KindLaunchError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(classifyFetchError("u", tt.err)))
		})
	}
}

func TestNewWaitProfile(t *testing.T) {
	cfg := config.DefaultScraperConfig()

	hb := NewWaitProfile(cfg.Hepsiburada)
	assert.Equal(t, 45*time.Second, hb.NavigationTimeout)
	assert.Equal(t, proto.PageLifecycleEventNameNetworkIdle, hb.WaitUntil)
	assert.Equal(t, time.Second, hb.BannerDelay)
	assert.Equal(t, 2*time.Second, hb.SettleDelay)

	n11 := NewWaitProfile(cfg.N11)
	assert.Equal(t, 30*time.Second, n11.NavigationTimeout)
	assert.Equal(t, proto.PageLifecycleEventNameNetworkAlmostIdle, n11.WaitUntil)
}
