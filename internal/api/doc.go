// Package api serves lumen's read-only status API.
//
// Endpoints:
//
//	GET /api/v1/health       component health, 503 when any check fails
//	GET /api/v1/status       latest decision, signals and counters
//	GET /api/v1/preferences  learned preference table
//	GET /api/v1/overrides    recent manual adjustments, newest first (?limit=)
//	GET /metrics             Prometheus exposition
//
// The server binds to 127.0.0.1 by default and has no authentication; it
// exposes nothing that can change brightness.
package api
