// Package authcore is the device-bound session authentication and adaptive
// abuse-defense core for a multi-tenant business application. It enforces
// exactly one live device session per account, rotates and revokes
// long-lived credentials safely under concurrency, and throttles
// brute-force and credential-stuffing login patterns across four
// independent dimensions with graceful degradation when the shared counter
// store is unreachable.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// sentinel errors, and activity sinks. The limiter and CSRF internals live
// under internal/ and are never exported. Record persistence is the host
// application's business: it implements the interfaces in the store
// package, or uses the shipped memory/postgres variants.
//
// # What this package must NOT do
//
//   - Expose Redis clients, counter stores, or key layouts in its public API.
//   - Let an activity-log failure propagate into a login result.
//   - Cache account records per instance; device-binding checks always read
//     the account fresh.
package authcore
