// Package api hosts the HTTP server, middleware, and handlers for the search
// gateway. Notable routes:
//   - GET /search, /news, /images, /videos for paginated search surfaces.
//   - GET /suggest and /mix for autocomplete and combined results.
//   - GET /extract, POST /extract/batch for page content extraction.
//   - GET /transcript for video captions.
//   - GET /healthz, /readyz for health checks and /metrics for Prometheus scraping.
//
// Only the search and content routes are subject to per-client admission.
package api
