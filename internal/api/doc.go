// Package api hosts the HTTP trigger for scheduled stock checks. Routes:
//   - POST /v1/check runs one check; the scheduler's event payload is only
//     logged.
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
package api
