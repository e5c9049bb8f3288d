// Package cert generates and verifies the attestation certificates the
// commissioning engine presents to a commissioner.
//
// The device holds a two-certificate attestation chain: a product
// attestation intermediate (PAI) acting as the issuing CA, and a device
// attestation certificate (DAC) carrying the device's attestation
// public key. Both are self-issued development-grade certificates;
// there is no external CA. The commissioner's own CA signs the node
// operational certificate (NOC), never this package.
//
// Certificates are standard X.509/DER, ECDSA on P-256, with vendor and
// product identifiers embedded in the subject.
package cert
