package services

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hc-nolan/ratingrelay/internal/shared"
	"golang.org/x/time/rate"
)

// rateLimitCooldown is how long an adapter waits after an explicit
// rate-limit response before its single retry.
const rateLimitCooldown = 60 * time.Second

// throttle enforces a minimum delay between mutating calls to one service
// and implements the bounded retry policy for explicit rate-limit errors.
type throttle struct {
	limiter  *rate.Limiter
	cooldown time.Duration
	logger   *log.Logger
}

// newThrottle creates a throttle with the given minimum inter-request
// delay. The delay is adapter-specific and fixed.
func newThrottle(minDelay time.Duration, logger *log.Logger) *throttle {
	return &throttle{
		limiter:  rate.NewLimiter(rate.Every(minDelay), 1),
		cooldown: rateLimitCooldown,
		logger:   logger,
	}
}

// do runs one mutating call under the rate policy: wait out the
// inter-request delay, then call fn. On [shared.ErrRateLimited], wait the
// cooldown once and retry exactly once; a second failure propagates.
func (th *throttle) do(ctx context.Context, fn func() error) error {
	if err := th.limiter.Wait(ctx); err != nil {
		return err
	}

	err := fn()
	if !errors.Is(err, shared.ErrRateLimited) {
		return err
	}

	th.logger.Warn("rate limited, waiting before retry", "cooldown", th.cooldown)
	select {
	case <-time.After(th.cooldown):
	case <-ctx.Done():
		return ctx.Err()
	}

	return fn()
}
