// Package payload implements the factory's payload store: the single mutable
// binary blob that gets installed into every provisioned child context.
//
// The store is owned by the factory's own context identity. Replacement is
// whole-value and restricted to the owner; reads return the payload by value.
// The store performs no structural validation of the payload's internal
// format; whether the bytes are deployable is the platform's concern.
//
// # Persistence
//
// An optional backend persists the payload across restarts. Backends are
// created from a location URI:
//
//   - file:///var/lib/factory/payload
//   - s3://bucket-name/prefix/?region=us-west-2
//   - vault://vault.example.com:8200/secret/factory?token=...
//   - ipfs://ipfs.example.com:5001/factory/payload
//
// Persistence is best-effort: a failed save is logged but does not roll back
// the in-memory replacement, which remains the authoritative value.
package payload
