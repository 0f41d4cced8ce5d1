// Package httputil provides shared JSON response helpers for handlers.
// Handlers use these instead of raw http.ResponseWriter calls so the
// error envelope stays consistent across all endpoints.
package httputil
