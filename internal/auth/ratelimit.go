package auth

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a directory with a token bucket shared by every caller.
// Lookups beyond the budget fail immediately with ErrRateLimited.
type RateLimited struct {
	dir     Directory
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond lookups with the given burst. A
// non-positive perSecond disables limiting.
func NewRateLimited(dir Directory, perSecond float64, burst int) Directory {
	if perSecond <= 0 {
		return dir
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{dir: dir, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Lookup forwards to the wrapped directory if a token is available.
func (r *RateLimited) Lookup(ctx context.Context, pin string) (DirectoryRecord, error) {
	if !r.limiter.Allow() {
		return DirectoryRecord{}, ErrRateLimited
	}
	return r.dir.Lookup(ctx, pin)
}
