// Package failsafe implements the commissioning fail-safe timer.
//
// A commissioning attempt must complete within a bounded window or be
// discarded: the session is destroyed, the pending operational key is
// dropped, and any partially received root certificate is forgotten.
// No partial fabric is ever persisted.
//
// Each phase transition rearms the window. Reaching a terminal phase
// cancels the timer permanently for that session. Expiry is safe to
// race against a concurrently arriving command: whichever completes
// first wins, and the session owner re-checks liveness immediately
// before any durable commit.
package failsafe
