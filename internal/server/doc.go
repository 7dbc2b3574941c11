// Package server implements the presence-aware real-time delivery core: the
// connection registry, the hub lifecycle loop that keeps online/offline
// transitions consistent, and the relay, typing, and read-receipt components
// that fan events out to live connections.
//
// The implementation is split into specialized files per concern (registry,
// hub, client pumps, relay, typing, receipts, origin policy, rate limiting)
// to keep each piece independently testable.
package server
