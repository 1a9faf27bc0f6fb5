package platform

import (
	"context"
	"fmt"
	"math"

	"github.com/gamma-omg/market-indicators/internal/market"
	"github.com/gamma-omg/market-indicators/internal/pipeline"
	"golang.org/x/time/rate"
)

// RateLimited throttles calls to the wrapped provider.
type RateLimited struct {
	next    pipeline.Provider
	limiter *rate.Limiter
}

// NewRateLimited allows rps requests per second. A burst below one is
// raised to ceil(rps).
func NewRateLimited(next pipeline.Provider, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = max(1, int(math.Ceil(rps)))
	}

	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) GetBars(ctx context.Context, q pipeline.BarsQuery) ([]market.RawBar, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	return r.next.GetBars(ctx, q)
}
