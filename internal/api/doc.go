// Package api provides the CoinGecko REST client used by the ingest job.
//
// REST endpoints:
//   - Public: https://api.coingecko.com/api/v3
//   - Pro:    https://pro-api.coingecko.com/api/v3
//
// Every request passes through a sliding-window rate limiter (40 calls per
// minute by default, the public tier's budget). Callers are delayed, never
// rejected, when the window is full.
//
// Key endpoint: /coins/markets, paginated by page number until an empty page.
package api
