// Package ratelimit throttles requests to the catalog.
//
// Two algorithms implement the Limiter interface:
//
// Token Bucket:
//   - Fixed capacity bucket that refills after a specified period
//   - Default for the HTTP catalog surface (requests_per_minute)
//
// Sliding Window:
//   - Tracks requests within a moving time window
//   - Smoother over time, used to space out download triggers
//
// Both take a clockwork.Clock so tests can advance time, and Wait honours
// context cancellation.
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
