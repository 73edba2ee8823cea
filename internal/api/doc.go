// Package api implements the HTTP query surface and WebSocket fan-out for
// SSC receiver state.
//
// This package provides:
//   - Read-only REST endpoints for receivers, channels and single attributes
//   - A WebSocket hub that pushes the full receiver snapshot on every change
//   - Health and metrics endpoints
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server reads from the state store and never mutates it. The hub is
// registered as a store listener, so every reconciled update is pushed to
// connected clients. A new client receives the current snapshot first.
//
// # Attribute Lookups
//
// An attribute that has never been reported is a 404, not a sentinel value.
// A reported empty value (for example an empty warnings list) is returned
// as "" with 200.
package api
