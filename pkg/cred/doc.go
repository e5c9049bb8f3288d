// Package cred is the device's credential store: the attestation key
// pair and certificate chain, and the table of fabrics the device has
// been commissioned into.
//
// The store is the only shared mutable state in the commissioning
// engine. All mutations are serialized behind a single mutex so that
// two racing commits can never both pass the capacity check.
//
// # Durability
//
// CommitFabric persists the fabric table before acknowledging success:
// an acknowledged AddNOC that is lost on crash would leave the
// commissioner believing commissioning succeeded. State is written to
// a temporary file and renamed into place so a crash mid-write never
// leaves a half-written trust table. The attestation private key lives
// in a separate owner-only key file and is never exported; callers
// sign through the store.
package cred
