// Package attestation builds and signs the structures that prove
// device identity during commissioning: the certification declaration,
// the attestation elements echoing the commissioner's nonce, and the
// CSR elements carrying a fresh operational public key.
//
// All structures are TLV-encoded. The certification declaration has a
// hard 64-byte encoded budget because the downstream transport frames
// it into a fixed field width; exceeding it is a device configuration
// defect and fails fast rather than emitting a truncated declaration.
//
// Signatures are ECDSA P-256 over SHA-256, produced through the
// credential store so the attestation private key never leaves it. A
// signature always verifies against the cached DAC, which is what the
// commissioner validates the chain with.
package attestation
