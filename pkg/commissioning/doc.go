// Package commissioning implements the device-side commissioning state
// machine.
//
// One Session tracks a single commissioning attempt on one
// authenticated channel: serving the attestation certificate chain,
// answering attestation and CSR requests, accepting the commissioner's
// trusted root, and finally committing the operational credentials to
// the credential store on AddNOC.
//
// The session owns a fail-safe timer. Every phase transition rearms
// it; if the window elapses before the attempt commits, the session
// aborts, the pending operational key is destroyed, and no partial
// fabric is persisted. A failed attempt leaves the device exactly as
// it was before the attempt started.
package commissioning
