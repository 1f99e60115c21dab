// Package retry retries transient failures of catalog requests with
// exponential backoff.
//
// Errors are classified through pkg/errors: network, rate_limit and
// server_error are retried, everything else returns immediately. Rate limit
// errors get their own, much slower, backoff.
//
//	cfg := retry.FromRateLimit(&appCfg.RateLimit, log)
//	page, err := retry.DoWithResult(ctx, func(ctx context.Context) (*Page, error) {
//		return client.FetchPage(ctx, n)
//	}, cfg)
//
// Per-entry download failures are never retried here; the traversal engine
// skips them instead.
package retry
